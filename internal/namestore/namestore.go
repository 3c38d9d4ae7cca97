// Package namestore keeps the participant's display name in a small YAML file
// between runs.
package namestore

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/VissentvNoord/lobby-system/internal/engine"
)

type file struct {
	DisplayName string `yaml:"display_name"`
}

type Store struct {
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Load returns the saved name, or "" when nothing has been saved yet.
func (s *Store) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read name file: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return "", fmt.Errorf("parse name file %s: %w", s.path, err)
	}
	return strings.TrimSpace(f.DisplayName), nil
}

func (s *Store) Save(name string) error {
	name = strings.TrimSpace(name)
	if err := engine.ValidatePlayerName(name); err != nil {
		return err
	}
	data, err := yaml.Marshal(file{DisplayName: name})
	if err != nil {
		return fmt.Errorf("encode name file: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create name dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write name file: %w", err)
	}
	return nil
}

// GenerateName returns PlayerNN with NN in 10..99.
func GenerateName() string {
	return fmt.Sprintf("Player%d", 10+rand.IntN(90))
}

// LoadOrCreate returns the saved name, generating and saving one when absent.
func (s *Store) LoadOrCreate() (string, error) {
	name, err := s.Load()
	if err != nil {
		return "", err
	}
	if name != "" {
		return name, nil
	}
	name = GenerateName()
	if err := s.Save(name); err != nil {
		return "", err
	}
	return name, nil
}
