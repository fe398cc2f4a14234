// Package automations implements §4.11: a consumer group over alerts that
// matches YAML-backed rules and dispatches HTTP actions to one of the
// enumerated providers, honoring a per-(rule,alert_key) cooldown. Grounded on
// original_source/app/rules/automations.py and
// original_source/app/streams/automations.py.
package automations

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Match restricts a Rule to alerts meeting all non-empty conditions.
type Match struct {
	FailureType   string  `yaml:"failure_type,omitempty" json:"failure_type,omitempty"`
	IssueKey      string  `yaml:"issue_key,omitempty" json:"issue_key,omitempty"`
	MinConfidence float64 `yaml:"min_confidence,omitempty" json:"min_confidence,omitempty"`
}

// Action names the provider and its call parameters.
type Action struct {
	Provider string         `yaml:"provider" json:"provider"`
	Params   map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// Rule is one automation entry, CRUD'd via the API and persisted to YAML.
type Rule struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name,omitempty" json:"name,omitempty"`
	Match    Match  `yaml:"match,omitempty" json:"match,omitempty"`
	Cooldown string `yaml:"cooldown,omitempty" json:"cooldown,omitempty"` // e.g. "15m", "1h", or bare seconds
	Action   Action `yaml:"action" json:"action"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// Store loads/persists rules from a YAML file, reading the file once and
// caching it in memory; every mutation writes the file and replaces the
// cache with the written rules.
type Store struct {
	path string

	mu    sync.RWMutex
	cache *ruleFile
}

// NewStore builds a Store backed by path (created on first Upsert if absent).
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Rules returns every loaded rule.
func (s *Store) Rules() ([]Rule, error) {
	data, err := s.load()
	if err != nil {
		return nil, err
	}
	return append([]Rule(nil), data.Rules...), nil
}

func (s *Store) load() (*ruleFile, error) {
	s.mu.RLock()
	if s.cache != nil {
		defer s.mu.RUnlock()
		return s.cache, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache != nil {
		return s.cache, nil
	}

	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.cache = &ruleFile{}
		return s.cache, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read automation rules: %w", err)
	}
	var data ruleFile
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse automation rules: %w", err)
	}
	s.cache = &data
	return s.cache, nil
}

func (s *Store) save(data *ruleFile) error {
	out, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal automation rules: %w", err)
	}
	if err := os.WriteFile(s.path, out, 0o644); err != nil {
		return fmt.Errorf("write automation rules: %w", err)
	}

	s.mu.Lock()
	s.cache = data
	s.mu.Unlock()
	return nil
}

// Upsert inserts or replaces a rule by ID.
func (s *Store) Upsert(rule Rule) error {
	if rule.ID == "" {
		return fmt.Errorf("rule.id is required")
	}
	data, err := s.load()
	if err != nil {
		return err
	}
	rules := append([]Rule(nil), data.Rules...)
	replaced := false
	for i, r := range rules {
		if r.ID == rule.ID {
			rules[i] = rule
			replaced = true
			break
		}
	}
	if !replaced {
		rules = append(rules, rule)
	}
	return s.save(&ruleFile{Rules: rules})
}

// Delete removes a rule by ID, reporting whether it existed.
func (s *Store) Delete(id string) (bool, error) {
	data, err := s.load()
	if err != nil {
		return false, err
	}
	rules := make([]Rule, 0, len(data.Rules))
	found := false
	for _, r := range data.Rules {
		if r.ID == id {
			found = true
			continue
		}
		rules = append(rules, r)
	}
	if !found {
		return false, nil
	}
	return true, s.save(&ruleFile{Rules: rules})
}
