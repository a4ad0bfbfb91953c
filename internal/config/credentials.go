package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/joelmoss/vcsinfo/internal/errs"
)

// AuthType describes how a host is authenticated, as shown in the report.
type AuthType string

const (
	AuthKeyFile  AuthType = "KEY FILE"
	AuthPassword AuthType = "PASSWORD"
)

// Credential is one entry of the users file: a host, the user to log in as
// and either a password or a private key file.
type Credential struct {
	Hostname string `json:"hostname"`
	User     string `json:"user"`
	Password string `json:"password,omitempty"`
	KeyPath  string `json:"key_path,omitempty"`
	Port     int    `json:"port,omitempty"`
}

// Validate reports a missing password and key path.
func (c Credential) Validate() error {
	if c.Password == "" && c.KeyPath == "" {
		return fmt.Errorf("%w: %s@%s", errs.ErrNoAuth, c.User, c.Hostname)
	}
	return nil
}

// AuthType returns KEY FILE when a key path is set, even if a password is too.
func (c Credential) AuthType() AuthType {
	if c.KeyPath != "" {
		return AuthKeyFile
	}
	return AuthPassword
}

// Address returns host:port, falling back to defaultPort.
func (c Credential) Address(defaultPort int) string {
	port := c.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(c.Hostname, strconv.Itoa(port))
}

// LoadCredentials reads and validates the JSON users file at path.
func LoadCredentials(path string) ([]Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCredentials(data)
}

// ParseCredentials decodes a JSON array of credentials. Every record is
// validated, so nothing is returned unless all of them are usable.
func ParseCredentials(data []byte) ([]Credential, error) {
	var creds []Credential
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDecode, err)
	}
	for i := range creds {
		if err := creds[i].Validate(); err != nil {
			return nil, err
		}
		creds[i].KeyPath = expandPath(creds[i].KeyPath)
	}
	return creds, nil
}
