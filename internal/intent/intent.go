// Package intent implements the IntentStore: the YAML-backed registry of
// declared, scoped units of work an agent may bind to via the handshake.
//
// The registry is owned by the workspace — humans author
// .orchestration/active_intents.yaml by hand or via tooling outside this
// package. The store only reads it (plus Ensure()'s one-time bootstrap of
// an empty document) and never rewrites entries in place.
package intent

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Status is the lifecycle state of an intent, as declared by its author.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusBlocked    Status = "BLOCKED"
	StatusDone       Status = "DONE"
)

// Intent is a declared, scoped unit of work. See design doc §3.
type Intent struct {
	ID                 string   `yaml:"id" json:"id"`
	Name               string   `yaml:"name" json:"name"`
	Status             Status   `yaml:"status" json:"status"`
	OwnedScope         []string `yaml:"owned_scope" json:"owned_scope"`
	Constraints        []string `yaml:"constraints" json:"constraints"`
	AcceptanceCriteria []string `yaml:"acceptance_criteria" json:"acceptance_criteria"`

	// Owner and UpdatedAt are operator-facing metadata only. Nothing in
	// the engine (scope matching, freshness, classification) consults
	// them — they exist purely for `hookguard intents show`.
	Owner     string `yaml:"owner,omitempty" json:"owner,omitempty"`
	UpdatedAt string `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// ErrRegistryUnreadable is returned when active_intents.yaml exists but
// cannot be parsed as a well-formed registry document (design doc I2).
var ErrRegistryUnreadable = errors.New("REGISTRY_UNREADABLE")

// ErrIntentNotFound is returned by GetIntent when no intent matches.
var ErrIntentNotFound = errors.New("INTENT_NOT_FOUND")

// registryFile is the on-disk envelope for active_intents.yaml.
type registryFile struct {
	ActiveIntents []rawIntent `yaml:"active_intents"`
}

// rawIntent decodes the registry leniently: owned_scope/constraints/
// acceptance_criteria may be omitted (treated as empty), but a structural
// violation — e.g. owned_scope given as a bare scalar instead of a
// sequence — is a hard parse failure per design doc §9 ("YAML tolerance").
type rawIntent struct {
	ID                 string       `yaml:"id"`
	Name               string       `yaml:"name"`
	Status             Status       `yaml:"status"`
	OwnedScope         yamlSeq      `yaml:"owned_scope"`
	Constraints        yamlSeq      `yaml:"constraints"`
	AcceptanceCriteria yamlSeq      `yaml:"acceptance_criteria"`
	Owner              string       `yaml:"owner"`
	UpdatedAt          string       `yaml:"updated_at"`
}

// yamlSeq decodes a YAML sequence of strings, tolerating an absent key
// (empty sequence) but rejecting a scalar or mapping in its place.
type yamlSeq []string

func (s *yamlSeq) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		// Absent node — leave empty.
		*s = nil
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return fmt.Errorf("%w: %v", ErrRegistryUnreadable, err)
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("%w: expected a list, got %v", ErrRegistryUnreadable, value.Kind)
	}
}

// Store is the IntentStore: parses and serves the workspace intent
// registry. Store holds no mutable state beyond the path — every read
// re-parses the file, so edits made by a human between calls are always
// picked up (this is what the fsnotify-backed watcher in hookconfig
// builds on top of).
type Store struct {
	path string
}

// New returns an IntentStore rooted at the given registry file path.
func New(registryPath string) *Store {
	return &Store{path: registryPath}
}

// Path returns the registry file path this store reads from.
func (s *Store) Path() string {
	return s.path
}

// Ensure creates an empty active_intents.yaml document if the file does
// not already exist. Idempotent.
func (s *Store) Ensure() error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking registry %s: %w", s.path, err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating orchestration directory: %w", err)
	}

	empty := registryFile{ActiveIntents: []rawIntent{}}
	data, err := yaml.Marshal(&empty)
	if err != nil {
		return fmt.Errorf("marshaling empty registry: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing registry %s: %w", s.path, err)
	}
	return nil
}

// GetIntent parses the registry and returns the intent whose id matches
// exactly. Returns ErrIntentNotFound if no intent matches, or a wrapped
// ErrRegistryUnreadable if the registry cannot be parsed.
func (s *Store) GetIntent(id string) (*Intent, error) {
	intents, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range intents {
		if intents[i].ID == id {
			return &intents[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrIntentNotFound, id)
}

// ListIntentIDs returns all intent ids in registry order.
func (s *Store) ListIntentIDs() ([]string, error) {
	intents, err := s.load()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(intents))
	for _, it := range intents {
		ids = append(ids, it.ID)
	}
	return ids, nil
}

// List returns every intent in the registry, in registry order.
func (s *Store) List() ([]Intent, error) {
	return s.load()
}

// load reads and parses the registry file. A missing file parses as an
// empty registry (Ensure() has not necessarily been called by every
// caller). I1 (unique ids) is enforced here: a duplicate id makes the
// whole registry unreadable, since the engine has no principled way to
// pick between two intents sharing an id.
func (s *Store) load() ([]Intent, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: reading %s: %v", ErrRegistryUnreadable, s.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrRegistryUnreadable, s.path, err)
	}

	seen := make(map[string]bool, len(file.ActiveIntents))
	intents := make([]Intent, 0, len(file.ActiveIntents))
	for _, raw := range file.ActiveIntents {
		if raw.ID == "" {
			return nil, fmt.Errorf("%w: intent with empty id in %s", ErrRegistryUnreadable, s.path)
		}
		if seen[raw.ID] {
			return nil, fmt.Errorf("%w: duplicate intent id %q in %s", ErrRegistryUnreadable, raw.ID, s.path)
		}
		seen[raw.ID] = true
		intents = append(intents, Intent{
			ID:                 raw.ID,
			Name:               raw.Name,
			Status:             raw.Status,
			OwnedScope:         []string(raw.OwnedScope),
			Constraints:        []string(raw.Constraints),
			AcceptanceCriteria: []string(raw.AcceptanceCriteria),
			Owner:              raw.Owner,
			UpdatedAt:          raw.UpdatedAt,
		})
	}
	return intents, nil
}
