package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"
)

func writeSSHTestConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	keys := filepath.Join(dir, "authorized_keys")
	data := "config_version: 1\n" +
		"profile_dir: " + filepath.Join(dir, "profile") + "\n" +
		"ssh:\n" +
		"  host_key_path: " + filepath.Join(dir, "host_key") + "\n" +
		"  authorized_keys: " + keys + "\n"
	if err := os.WriteFile(cfgPath, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath, keys
}

func TestSSHAuthorizeAndList(t *testing.T) {
	cfgPath, keysPath := writeSSHTestConfig(t)
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("public key: %v", err)
	}
	keyFile := filepath.Join(t.TempDir(), "id_ed25519.pub")
	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub))) + " alice@laptop\n"
	if err := os.WriteFile(keyFile, []byte(line), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	fingerprint := ssh.FingerprintSHA256(sshPub)

	out, err := execute(t, "ssh", "-c", cfgPath, "authorize", keyFile)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if strings.TrimSpace(out) != "authorized "+fingerprint {
		t.Fatalf("unexpected authorize output %q", out)
	}
	out, err = execute(t, "ssh", "-c", cfgPath, "authorize", keyFile)
	if err != nil {
		t.Fatalf("authorize again: %v", err)
	}
	if !strings.HasPrefix(out, "already authorized") {
		t.Fatalf("expected duplicate to be skipped, got %q", out)
	}
	data, err := os.ReadFile(keysPath)
	if err != nil {
		t.Fatalf("read keys: %v", err)
	}
	if strings.Count(string(data), "\n") != 1 || !strings.Contains(string(data), "alice@laptop") {
		t.Fatalf("unexpected authorized_keys %q", data)
	}

	out, err = execute(t, "ssh", "-c", cfgPath, "keys")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if strings.TrimSpace(out) != "ssh-ed25519\t"+fingerprint {
		t.Fatalf("unexpected keys output %q", out)
	}
}

func TestSSHAuthorizeRejectsGarbage(t *testing.T) {
	cfgPath, _ := writeSSHTestConfig(t)
	keyFile := filepath.Join(t.TempDir(), "junk.pub")
	if err := os.WriteFile(keyFile, []byte("not a key\n"), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	if _, err := execute(t, "ssh", "-c", cfgPath, "authorize", keyFile); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSSHHostKeyIsStable(t *testing.T) {
	cfgPath, _ := writeSSHTestConfig(t)
	first, err := execute(t, "ssh", "-c", cfgPath, "hostkey")
	if err != nil {
		t.Fatalf("hostkey: %v", err)
	}
	if !strings.HasPrefix(first, "ssh-ed25519 ") || !strings.Contains(first, "SHA256:") {
		t.Fatalf("unexpected hostkey output %q", first)
	}
	second, err := execute(t, "ssh", "-c", cfgPath, "hostkey")
	if err != nil {
		t.Fatalf("hostkey again: %v", err)
	}
	if first != second {
		t.Fatalf("host key changed: %q vs %q", first, second)
	}
}

func TestSSHTOTPPrintsSecret(t *testing.T) {
	out, err := execute(t, "ssh", "totp", "--account", "desk", "--no-qr")
	if err != nil {
		t.Fatalf("totp: %v", err)
	}
	if !strings.Contains(out, "secret: ") || !strings.Contains(out, "otpauth://totp/") || !strings.Contains(out, "desk") {
		t.Fatalf("unexpected totp output %q", out)
	}
}
