// Package simstate persists paper exchange state so restarts keep balances, positions and triggers.
package simstate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Store reads and writes one JSON state file.
type Store struct {
	path string
}

// NewStore creates a store for scope (e.g. "testnet") under dir.
func NewStore(dir, scope string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create paper state dir")
	}
	name := sanitizeScope(scope)
	if name == "" {
		name = "paper"
	}
	return &Store{path: filepath.Join(dir, name+".json")}, nil
}

// Path returns the state file location.
func (s *Store) Path() string { return s.path }

// State is everything the paper exchange persists. Amounts are decimal strings.
type State struct {
	Cash        string                    `json:"cash"`
	Positions   map[string]StoredPosition `json:"positions"`
	Triggers    []StoredTrigger           `json:"triggers,omitempty"`
	Leverage    map[string]int            `json:"leverage,omitempty"`
	NextOrderID int64                     `json:"next_order_id"`
}

// StoredPosition is one open paper position. Size is signed.
type StoredPosition struct {
	Size       string `json:"size"`
	EntryPrice string `json:"entry_price"`
	Leverage   int    `json:"leverage"`
	Margin     string `json:"margin"`
}

// StoredTrigger is a resting reduce-only trigger order.
type StoredTrigger struct {
	OrderID   int64  `json:"order_id"`
	Coin      string `json:"coin"`
	Kind      string `json:"kind"`
	IsBuy     bool   `json:"is_buy"`
	Size      string `json:"size"`
	TriggerPx string `json:"trigger_px"`
}

// Load reads state from disk. A missing or empty file yields nil state.
func (s *Store) Load() (*State, error) {
	if s == nil || s.path == "" {
		return nil, nil
	}

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read paper state")
	}
	if len(payload) == 0 {
		return nil, nil
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, errors.Wrap(err, "decode paper state")
	}
	return &state, nil
}

// Save writes state atomically via a temp file.
func (s *Store) Save(state State) error {
	if s == nil || s.path == "" {
		return nil
	}

	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode paper state")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write paper state temp file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist paper state")
	}
	return nil
}

func sanitizeScope(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))

	var b strings.Builder
	prevUnderscore := false
	for _, r := range value {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			prevUnderscore = false
			continue
		}
		if !prevUnderscore {
			b.WriteByte('_')
			prevUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}
