package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// Store persists the rule set as a JSON document with a top-level
// "rules" array. The full set is reloaded for every evaluation pass, so
// edits through Save are picked up without restarts.
type Store struct {
	path   string
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewStore creates a rule store backed by the given file path.
func NewStore(path string, logger zerolog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger.With().Str("component", "rules").Logger(),
	}
}

type document struct {
	Rules []Rule `json:"rules"`
}

// Load reads and validates the rule set. A missing file is an empty rule
// set, not an error. Malformed documents and invalid rules are rejected.
func (s *Store) Load() ([]Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Rule{}, nil
		}
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	for i := range doc.Rules {
		if err := doc.Rules[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid rule %d (%q): %w", i, doc.Rules[i].Name, err)
		}
		doc.Rules[i].Normalize()
	}

	return doc.Rules, nil
}

// Save validates and writes the rule set atomically (temp file + rename).
func (s *Store) Save(ruleSet []Rule) error {
	for i := range ruleSet {
		if err := ruleSet[i].Validate(); err != nil {
			return fmt.Errorf("invalid rule %d (%q): %w", i, ruleSet[i].Name, err)
		}
		ruleSet[i].Normalize()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(document{Rules: ruleSet}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create rules directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".rules-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp rules file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write rules: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp rules file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace rules file: %w", err)
	}

	s.logger.Info().Int("count", len(ruleSet)).Str("path", s.path).Msg("rules saved")
	return nil
}
