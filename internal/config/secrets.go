package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Secrets are read from the environment, never from the YAML config
type Secrets struct {
	PortalPasswords   map[string]string // keyed by personnel id
	ClickSendUsername string
	ClickSendAPIKey   string
	DatabaseURL       string
}

// LoadSecretsWithEnv loads .env.<env> then .env (whichever exist) into the process
// environment without overriding variables that are already set, and reads the secrets
// needed for the configured personnel ids.
func LoadSecretsWithEnv(env string, personnelIDs []string) (*Secrets, error) {
	files := []string{".env"}
	if env != "" {
		files = []string{".env." + env, ".env"}
	}

	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	return SecretsFromEnv(os.Getenv, personnelIDs), nil
}

// SecretsFromEnv reads secrets through getenv. Each personnel id uses
// PORTAL_PASSWORD_<ID> when set and falls back to PORTAL_PASSWORD.
func SecretsFromEnv(getenv func(string) string, personnelIDs []string) *Secrets {
	secrets := &Secrets{
		PortalPasswords:   make(map[string]string, len(personnelIDs)),
		ClickSendUsername: getenv("CLICKSEND_USERNAME"),
		ClickSendAPIKey:   getenv("CLICKSEND_API_KEY"),
		DatabaseURL:       getenv("DATABASE_URL"),
	}

	fallback := getenv("PORTAL_PASSWORD")
	for _, id := range personnelIDs {
		password := getenv("PORTAL_PASSWORD_" + strings.ToUpper(id))
		if password == "" {
			password = fallback
		}
		secrets.PortalPasswords[id] = password
	}

	return secrets
}

// RequireSMS checks the ClickSend credentials are present
func (s *Secrets) RequireSMS() error {
	var missing []string
	if s.ClickSendUsername == "" {
		missing = append(missing, "CLICKSEND_USERNAME")
	}
	if s.ClickSendAPIKey == "" {
		missing = append(missing, "CLICKSEND_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// RequirePortal checks every personnel id has a password
func (s *Secrets) RequirePortal() error {
	var missing []string
	for id, password := range s.PortalPasswords {
		if password == "" {
			missing = append(missing, "PORTAL_PASSWORD_"+strings.ToUpper(id))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing portal passwords (set PORTAL_PASSWORD or %s)", strings.Join(missing, ", "))
	}
	return nil
}
