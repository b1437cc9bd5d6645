package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mdp/qrterminal/v3"
	"github.com/pquerna/otp/totp"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"

	"pkt.systems/blinx/internal/appconfig"
	"pkt.systems/blinx/sshserver"
	"pkt.systems/pslog"
)

func newSSHCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "ssh",
		Short: "Manage access to the terminal chrome over SSH",
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.AddCommand(newSSHAuthorizeCmd(&cfgPath))
	cmd.AddCommand(newSSHKeysCmd(&cfgPath))
	cmd.AddCommand(newSSHHostKeyCmd(&cfgPath))
	cmd.AddCommand(newSSHTOTPCmd())
	return cmd
}

func newSSHAuthorizeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "authorize <public-key-file|->",
		Short: "Allow a public key to log in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(*cfgPath)
			if err != nil {
				return err
			}
			var data []byte
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			key, comment, _, _, err := ssh.ParseAuthorizedKey(data)
			if err != nil {
				return fmt.Errorf("parse public key: %w", err)
			}
			path := cfg.SSH.AuthorizedKeys
			keys, err := sshserver.LoadAuthorizedKeys(path)
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			fingerprint := ssh.FingerprintSHA256(key)
			for _, existing := range keys {
				if ssh.FingerprintSHA256(existing) == fingerprint {
					_, err := fmt.Fprintf(cmd.OutOrStdout(), "already authorized %s\n", fingerprint)
					return err
				}
			}
			line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(key)))
			if comment != "" {
				line += " " + comment
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return err
			}
			file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintln(file, line); err != nil {
				_ = file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}
			pslog.Ctx(cmd.Context()).Info("ssh key authorized", "fingerprint", fingerprint, "path", path)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "authorized %s\n", fingerprint)
			return err
		},
	}
}

func newSSHKeysCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List authorized public keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(*cfgPath)
			if err != nil {
				return err
			}
			keys, err := sshserver.LoadAuthorizedKeys(cfg.SSH.AuthorizedKeys)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return nil
				}
				return err
			}
			for _, key := range keys {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", key.Type(), ssh.FingerprintSHA256(key)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newSSHHostKeyCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "hostkey",
		Short: "Print the server host key, generating it if missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(*cfgPath)
			if err != nil {
				return err
			}
			signer, err := sshserver.EnsureHostKey(cfg.SSH.HostKeyPath)
			if err != nil {
				return err
			}
			pub := signer.PublicKey()
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", ssh.MarshalAuthorizedKey(pub), ssh.FingerprintSHA256(pub))
			return err
		},
	}
}

func newSSHTOTPCmd() *cobra.Command {
	var account string
	var noQR bool
	cmd := &cobra.Command{
		Use:   "totp",
		Short: "Generate a verification code secret for ssh.totp_secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(account) == "" {
				host, err := os.Hostname()
				if err != nil {
					host = "localhost"
				}
				account = host
			}
			key, err := totp.Generate(totp.GenerateOpts{Issuer: "blinx", AccountName: account})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !noQR {
				qrterminal.GenerateHalfBlock(key.URL(), qrterminal.L, out)
			}
			_, err = fmt.Fprintf(out, "secret: %s\nurl: %s\nset ssh.totp_secret in the config to require it\n", key.Secret(), key.URL())
			return err
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "account name shown in the authenticator (default hostname)")
	cmd.Flags().BoolVar(&noQR, "no-qr", false, "do not print the QR code")
	return cmd
}
