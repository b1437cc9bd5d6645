package sshserver

// Config defines SSH server settings.
type Config struct {
	Addr        string
	HostKeyPath string
	// AuthorizedKeys is an OpenSSH authorized_keys file. It is re-read on
	// every login attempt.
	AuthorizedKeys string
	// TOTPSecret, when set, adds a verification code prompt after the key
	// check.
	TOTPSecret string
}
