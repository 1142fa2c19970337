// Package authentication checks HTTP basic credentials for the admin API.
package authentication

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

type IBasicAuthService interface {
	Validate(username, password string) bool
	DecodeFromHeader(auth string) (string, string)
}

type BasicAuthTConfig struct {
	Username string
	Password string
}

type basicAuth struct {
	username string
	password string
}

func NewBasicAuthService(config *BasicAuthTConfig) IBasicAuthService {
	if config == nil {
		config = &BasicAuthTConfig{}
	}
	return &basicAuth{
		username: config.Username,
		password: config.Password,
	}
}

// Validate compares in constant time. An unconfigured password never validates.
func (b *basicAuth) Validate(username, password string) bool {
	if b.password == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(b.username), []byte(username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(b.password), []byte(password)) == 1
	return userOK && passOK
}

func (b *basicAuth) DecodeFromHeader(auth string) (string, string) {
	encoded := strings.TrimPrefix(auth, "Basic ")

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ""
	}

	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return "", ""
	}

	return parts[0], parts[1]
}
