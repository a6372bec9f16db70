package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/growbot-project/growbot/internal/login"
)

// Account is one bot in the roster.
type Account struct {
	Name     string `yaml:"name"`
	Method   string `yaml:"method"`
	Token    string `yaml:"token,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Country  string `yaml:"country,omitempty"`
	Enabled  *bool  `yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the account should be started. Accounts are
// enabled unless disabled explicitly.
func (a Account) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// Credentials converts the account into login credentials.
func (a Account) Credentials() (login.Credentials, error) {
	method, err := login.ParseMethod(a.Method)
	if err != nil {
		return login.Credentials{}, err
	}
	return login.Credentials{
		Method:   method,
		Username: a.Username,
		Password: a.Password,
		Token:    a.Token,
	}, nil
}

// Roster is the accounts file.
type Roster struct {
	Accounts []Account `yaml:"accounts"`
}

var botNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// LoadRoster reads and validates an accounts file.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts file %s: %w", path, err)
	}

	var roster Roster
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("failed to parse accounts file %s: %w", path, err)
	}

	if err := roster.Validate(); err != nil {
		return nil, fmt.Errorf("invalid accounts file %s: %w", path, err)
	}
	return &roster, nil
}

// Validate checks names are unique and well formed and methods are known.
func (r *Roster) Validate() error {
	seen := make(map[string]bool, len(r.Accounts))
	for i, a := range r.Accounts {
		if !botNamePattern.MatchString(a.Name) {
			return fmt.Errorf("account %d: invalid name %q", i, a.Name)
		}
		key := strings.ToLower(a.Name)
		if seen[key] {
			return fmt.Errorf("account %d: duplicate name %q", i, a.Name)
		}
		seen[key] = true

		method, err := login.ParseMethod(a.Method)
		if err != nil {
			return fmt.Errorf("account %s: %w", a.Name, err)
		}
		if method == login.MethodToken && strings.TrimSpace(a.Token) == "" {
			return fmt.Errorf("account %s: token method requires a token", a.Name)
		}
	}
	return nil
}

// CheckMethods rejects enabled accounts whose login method supported does
// not accept. Validate only knows the method names; this checks them against
// the authenticators actually wired.
func (r *Roster) CheckMethods(supported func(login.Method) bool) error {
	for _, a := range r.Enabled() {
		method, err := login.ParseMethod(a.Method)
		if err != nil {
			return fmt.Errorf("account %s: %w", a.Name, err)
		}
		if !supported(method) {
			return fmt.Errorf("account %s: %w: %s", a.Name, login.ErrUnsupportedMethod, method)
		}
	}
	return nil
}

// Enabled returns the accounts that should be started, in file order.
func (r *Roster) Enabled() []Account {
	out := make([]Account, 0, len(r.Accounts))
	for _, a := range r.Accounts {
		if a.IsEnabled() {
			out = append(out, a)
		}
	}
	return out
}

// Save writes the roster to path with owner-only permissions.
func (r *Roster) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create accounts directory: %w", err)
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal accounts: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write accounts file: %w", err)
	}
	return nil
}
