package auth

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	gossh "golang.org/x/crypto/ssh"
)

// scpLike matches user@host:path remotes.
var scpLike = regexp.MustCompile(`^(?:[^@/]+@)?([^:/]+):[^/]`)

// DeployKeyProvider authenticates SSH remotes with a deploy key file. When the
// key file is missing it falls back to the SSH agent. Remotes that are not SSH
// get no credentials.
type DeployKeyProvider struct {
	// PrivateKeyPath is the path to the SSH private key file.
	PrivateKeyPath string

	// Passphrase for encrypted private keys.
	Passphrase string

	// Username for SSH authentication (defaults to "git").
	Username string

	// KnownHostsPath points at a known_hosts file used to verify the server.
	// When empty go-git uses the user's default known_hosts files.
	KnownHostsPath string

	// HostKeyCallback overrides host key verification when set.
	HostKeyCallback gossh.HostKeyCallback
}

// NewDeployKeyProvider creates a provider for the given private key file.
func NewDeployKeyProvider(keyPath string) *DeployKeyProvider {
	return &DeployKeyProvider{
		PrivateKeyPath: keyPath,
		Username:       "git",
	}
}

// WithKnownHosts sets the known_hosts file used for host verification.
func (p *DeployKeyProvider) WithKnownHosts(path string) *DeployKeyProvider {
	p.KnownHostsPath = path
	return p
}

// WithHostKeyCallback sets the host key verification callback.
func (p *DeployKeyProvider) WithHostKeyCallback(callback gossh.HostKeyCallback) *DeployKeyProvider {
	p.HostKeyCallback = callback
	return p
}

// Method returns the authentication method for the given remote URL.
//
//nolint:ireturn // go-git requires returning transport.AuthMethod interface
func (p *DeployKeyProvider) Method(remoteURL string) (transport.AuthMethod, error) {
	isSSH, err := IsSSHURL(remoteURL)
	if err != nil {
		return nil, err
	}
	if !isSSH {
		return nil, nil
	}

	callback, err := p.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	if p.PrivateKeyPath != "" {
		_, statErr := os.Stat(p.PrivateKeyPath)
		switch {
		case statErr == nil:
			return buildFileAuth(p, callback)
		case !errors.Is(statErr, os.ErrNotExist):
			return nil, fmt.Errorf("failed to access SSH private key %s: %w", p.PrivateKeyPath, statErr)
		}
	}

	return buildAgentAuth(p, callback)
}

func (p *DeployKeyProvider) hostKeyCallback() (gossh.HostKeyCallback, error) {
	if p.HostKeyCallback != nil {
		return p.HostKeyCallback, nil
	}
	if p.KnownHostsPath == "" {
		return nil, nil
	}
	callback, err := ssh.NewKnownHostsCallback(p.KnownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts %s: %w", p.KnownHostsPath, err)
	}
	return callback, nil
}

// IsSSHURL reports whether remoteURL is reached over SSH, either as an
// ssh:// URL or in scp-like user@host:path form.
func IsSSHURL(remoteURL string) (bool, error) {
	if remoteURL == "" {
		return false, fmt.Errorf("empty remote URL")
	}

	parsedURL, err := url.Parse(remoteURL)
	if err == nil && parsedURL.Scheme != "" && len(parsedURL.Scheme) > 1 {
		return parsedURL.Scheme == "ssh" || parsedURL.Scheme == "git+ssh", nil
	}

	return scpLike.MatchString(remoteURL), nil
}

//nolint:ireturn // go-git requires returning transport.AuthMethod interface
func buildAgentAuth(p *DeployKeyProvider, callback gossh.HostKeyCallback) (transport.AuthMethod, error) {
	auth, err := ssh.NewSSHAgentAuth(p.Username)
	if err != nil {
		return nil, fmt.Errorf("no SSH key at %s and SSH agent unavailable: %w", p.PrivateKeyPath, err)
	}
	if callback != nil {
		auth.HostKeyCallback = callback
	}
	return auth, nil
}

//nolint:ireturn // go-git requires returning transport.AuthMethod interface
func buildFileAuth(p *DeployKeyProvider, callback gossh.HostKeyCallback) (transport.AuthMethod, error) {
	auth, err := ssh.NewPublicKeysFromFile(p.Username, p.PrivateKeyPath, p.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to load SSH key from file: %w", err)
	}
	if callback != nil {
		auth.HostKeyCallback = callback
	}
	return auth, nil
}
