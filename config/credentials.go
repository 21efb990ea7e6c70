package config

import (
	"fmt"
	"os"
)

const (
	APIKeyName    = "CK_API_KEY"
	APISecretName = "CK_API_SECRET"
)

// CredentialProvider is a key-value secret store.
type CredentialProvider interface {
	Get(name string) (string, bool)
}

// EnvCredentials reads secrets from the process environment.
type EnvCredentials struct{}

func (EnvCredentials) Get(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// MapCredentials is a fixed in-memory secret store.
type MapCredentials map[string]string

func (m MapCredentials) Get(name string) (string, bool) {
	v, ok := m[name]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

type CredentialMissingError struct {
	Name string
}

func (e *CredentialMissingError) Error() string {
	return fmt.Sprintf("credential %s is not set", e.Name)
}

type Credentials struct {
	APIKey    string
	APISecret string
}

// Masked returns the key with everything but the last four characters hidden.
func (c Credentials) Masked() string {
	if len(c.APIKey) <= 4 {
		return "****"
	}
	return "****" + c.APIKey[len(c.APIKey)-4:]
}

// LoadCredentials fails with *CredentialMissingError before anything touches the network.
func LoadCredentials(p CredentialProvider) (Credentials, error) {
	key, ok := p.Get(APIKeyName)
	if !ok {
		return Credentials{}, &CredentialMissingError{Name: APIKeyName}
	}
	secret, ok := p.Get(APISecretName)
	if !ok {
		return Credentials{}, &CredentialMissingError{Name: APISecretName}
	}
	return Credentials{APIKey: key, APISecret: secret}, nil
}
