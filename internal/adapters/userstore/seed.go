package userstore

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedUser is one entry in a YAML seed file: a username and its initial
// plaintext password, hashed on load and never stored in the clear.
type SeedUser struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LoadSeedFile reads a list of SeedUser entries from a YAML file.
func LoadSeedFile(path string) ([]SeedUser, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("userstore: read seed file: %w", err)
	}
	var users []SeedUser
	if err := yaml.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("userstore: parse seed file: %w", err)
	}
	return users, nil
}

// Seed creates every user in users that does not already exist, setting
// their initial password. Existing users are left untouched.
func (s *MemoryStore) Seed(ctx context.Context, users []SeedUser) error {
	for _, u := range users {
		if _, err := s.FetchUser(ctx, u.Username); err == nil {
			continue
		}
		if _, err := s.CreateUser(ctx, u.Username); err != nil {
			return fmt.Errorf("userstore: seed %s: %w", u.Username, err)
		}
		if err := s.SetPassword(u.Username, u.Password); err != nil {
			return fmt.Errorf("userstore: seed %s password: %w", u.Username, err)
		}
	}
	return nil
}
