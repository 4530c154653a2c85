// Package configstore holds per-user scan configuration. The UI layer mutates
// it through the methods below; the scanner only consumes snapshots via the
// domain.ConfigStore interface. All minimum-size and range invariants are
// enforced here, at the single mutation boundary, rather than at call sites.
package configstore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/alanyoungcy/arbradar/internal/domain"
)

// Store is an in-memory, mutex-guarded user configuration registry.
type Store struct {
	mu        sync.RWMutex
	users     map[int64]*domain.UserConfig
	venues    map[string]bool // known venue names from static config
	pairCount int
}

// New creates a Store that accepts venue names from venueNames and pair
// indices in [0, pairCount).
func New(venueNames []string, pairCount int) *Store {
	known := make(map[string]bool, len(venueNames))
	for _, v := range venueNames {
		known[v] = true
	}
	return &Store{
		users:     make(map[int64]*domain.UserConfig),
		venues:    known,
		pairCount: pairCount,
	}
}

// Register ensures the user exists, creating a default configuration on first
// contact. It returns a snapshot of the resulting configuration.
func (s *Store) Register(userID int64) domain.UserConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(userID).Clone()
}

// Get implements domain.ConfigStore. Unknown users get the default
// configuration without being registered.
func (s *Store) Get(userID int64) domain.UserConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[userID]; ok {
		return u.Clone()
	}
	return defaultConfig(userID)
}

// Snapshot implements domain.ConfigStore. The result is a deep copy ordered
// by user id, so one tick's view is never corrupted by concurrent mutation.
func (s *Store) Snapshot() []domain.UserConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserConfig, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// AddVenue selects a venue for the user. The name must be one of the
// configured venues.
func (s *Store) AddVenue(userID int64, name string) error {
	if !s.venues[name] {
		return fmt.Errorf("configstore: venue %q: %w", name, domain.ErrUnknownVenue)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.getOrCreateLocked(userID)
	for _, v := range u.Venues {
		if v == name {
			return nil
		}
	}
	u.Venues = append(u.Venues, name)
	return nil
}

// RemoveVenue deselects a venue. Removal that would leave fewer than two
// venues selected is rejected so a scanning user cannot drop below the
// minimum combo size.
func (s *Store) RemoveVenue(userID int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.getOrCreateLocked(userID)
	idx := -1
	for i, v := range u.Venues {
		if v == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("configstore: venue %q: %w", name, domain.ErrNotFound)
	}
	if len(u.Venues) <= 2 {
		return domain.ErrMinVenues
	}
	u.Venues = append(u.Venues[:idx], u.Venues[idx+1:]...)
	return nil
}

// AddPair selects a pair index.
func (s *Store) AddPair(userID int64, pairIndex int) error {
	if pairIndex < 0 || pairIndex >= s.pairCount {
		return fmt.Errorf("configstore: pair %d: %w", pairIndex, domain.ErrUnknownPair)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.getOrCreateLocked(userID)
	for _, p := range u.Pairs {
		if p == pairIndex {
			return nil
		}
	}
	u.Pairs = append(u.Pairs, pairIndex)
	return nil
}

// RemovePair deselects a pair index. The last remaining pair cannot be
// removed.
func (s *Store) RemovePair(userID int64, pairIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.getOrCreateLocked(userID)
	idx := -1
	for i, p := range u.Pairs {
		if p == pairIndex {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("configstore: pair %d: %w", pairIndex, domain.ErrNotFound)
	}
	if len(u.Pairs) <= 1 {
		return domain.ErrMinPairs
	}
	u.Pairs = append(u.Pairs[:idx], u.Pairs[idx+1:]...)
	return nil
}

// SetThreshold updates the spread threshold. Out-of-range values are rejected
// and the previous valid threshold is retained. A successful set also clears
// any pending custom-input state.
func (s *Store) SetThreshold(userID int64, threshold float64) error {
	if threshold < domain.MinSpreadThreshold || threshold > domain.MaxSpreadThreshold {
		return fmt.Errorf("configstore: threshold %.3f: %w", threshold, domain.ErrInvalidThreshold)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.getOrCreateLocked(userID)
	u.Threshold = threshold
	u.ThresholdPending = false
	return nil
}

// MarkThresholdPending flags the user as awaiting custom threshold input.
// The last valid threshold stays in effect for scanning.
func (s *Store) MarkThresholdPending(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(userID).ThresholdPending = true
}

// SetAutotrade toggles automatic execution for the user.
func (s *Store) SetAutotrade(userID int64, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(userID).Autotrade = on
}

// Seed installs a complete configuration, validating each element through the
// same rules as the individual mutators. Used by wiring to pre-register users
// from the static config file.
func (s *Store) Seed(cfg domain.UserConfig) error {
	s.Register(cfg.UserID)
	for _, v := range cfg.Venues {
		if err := s.AddVenue(cfg.UserID, v); err != nil {
			return err
		}
	}
	for _, p := range cfg.Pairs {
		if err := s.AddPair(cfg.UserID, p); err != nil {
			return err
		}
	}
	if cfg.Threshold != 0 {
		if err := s.SetThreshold(cfg.UserID, cfg.Threshold); err != nil {
			return err
		}
	}
	s.SetAutotrade(cfg.UserID, cfg.Autotrade)
	return nil
}

func (s *Store) getOrCreateLocked(userID int64) *domain.UserConfig {
	if u, ok := s.users[userID]; ok {
		return u
	}
	u := defaultConfig(userID)
	s.users[userID] = &u
	return &u
}

func defaultConfig(userID int64) domain.UserConfig {
	return domain.UserConfig{
		UserID:    userID,
		Threshold: domain.DefaultSpreadThreshold,
	}
}

var _ domain.ConfigStore = (*Store)(nil)
