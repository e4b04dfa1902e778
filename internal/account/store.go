package account

import (
	"sync"

	"github.com/kelsos/keeper-sync/internal/models"
)

// Snapshot is a point-in-time copy of the mirrored wallet state.
type Snapshot struct {
	Installed   bool            `json:"installed"`
	Initialized bool            `json:"initialized"`
	Authorized  bool            `json:"authorized"`
	Network     *models.Network `json:"network,omitempty"`
	Account     *models.Account `json:"account,omitempty"`
	Assets      models.Assets   `json:"assets,omitempty"`
	Scripted    bool            `json:"scripted"`
	LoginType   string          `json:"loginType,omitempty"`
}

func (s Snapshot) clone() Snapshot {
	out := s
	if s.Network != nil {
		network := *s.Network
		out.Network = &network
	}
	if s.Account != nil {
		account := s.Account.Clone()
		out.Account = &account
	}
	out.Assets = s.Assets.Clone()
	return out
}

// Store mirrors the wallet state. Every mutation is published to subscribers.
//
// Asset and script refreshes run in the background; each one is tagged with the
// generation current when it started and is dropped if a newer ingestion began
// in the meantime.
//
// Deliveries are serialized and each one carries the state current at send
// time, so the last snapshot a subscriber sees is never older than the store.
type Store struct {
	delivery    sync.Mutex
	mu          sync.RWMutex
	state       Snapshot
	generation  uint64
	subscribers map[int]func(Snapshot)
	nextID      int
}

func NewStore() *Store {
	return &Store{
		subscribers: make(map[int]func(Snapshot)),
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Subscribe registers fn for every state change and returns the unsubscribe func.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// update applies fn under the lock and publishes when it reports a change.
func (s *Store) update(fn func(state *Snapshot) bool) bool {
	s.mu.Lock()
	changed := fn(&s.state)
	s.mu.Unlock()
	if !changed {
		return false
	}

	s.publish()
	return true
}

func (s *Store) publish() {
	s.delivery.Lock()
	defer s.delivery.Unlock()

	s.mu.RLock()
	snapshot := s.state.clone()
	subscribers := make([]func(Snapshot), 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subscribers = append(subscribers, sub)
	}
	s.mu.RUnlock()

	for _, sub := range subscribers {
		sub(snapshot)
	}
}

func (s *Store) SetInstalled(installed bool) {
	s.update(func(state *Snapshot) bool {
		if state.Installed == installed {
			return false
		}
		state.Installed = installed
		return true
	})
}

func (s *Store) SetInitialized(initialized bool) {
	s.update(func(state *Snapshot) bool {
		if state.Initialized == initialized {
			return false
		}
		state.Initialized = initialized
		return true
	})
}

func (s *Store) SetAuthorized(authorized bool) {
	s.update(func(state *Snapshot) bool {
		if state.Authorized == authorized {
			return false
		}
		state.Authorized = authorized
		return true
	})
}

// SetNetwork replaces the network when it differs and reports whether it did.
func (s *Store) SetNetwork(network *models.Network) bool {
	return s.update(func(state *Snapshot) bool {
		if network == nil || state.Network.Equal(network) {
			return false
		}
		n := *network
		state.Network = &n
		return true
	})
}

// AdoptAccount takes the account as-is.
func (s *Store) AdoptAccount(account *models.Account) {
	s.update(func(state *Snapshot) bool {
		if account == nil {
			return false
		}
		adopted := account.Clone()
		state.Account = &adopted
		return true
	})
}

// MergeAccount applies the non-empty fields of update onto the current account.
func (s *Store) MergeAccount(update models.Account) {
	s.update(func(state *Snapshot) bool {
		if state.Account == nil {
			adopted := update.Clone()
			state.Account = &adopted
			return true
		}
		merged := state.Account.Merge(update)
		if merged == *state.Account {
			return false
		}
		state.Account = &merged
		return true
	})
}

// ResetAccount clears the account along with everything derived from it.
func (s *Store) ResetAccount() {
	s.update(func(state *Snapshot) bool {
		if state.Account == nil && state.Assets == nil && !state.Scripted {
			return false
		}
		state.Account = nil
		state.Assets = nil
		state.Scripted = false
		return true
	})
}

func (s *Store) SetLoginType(loginType string) {
	s.update(func(state *Snapshot) bool {
		if state.LoginType == loginType {
			return false
		}
		state.LoginType = loginType
		return true
	})
}

func (s *Store) HasAccount() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Account != nil
}

func (s *Store) Authorized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Authorized
}

func (s *Store) Scripted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Scripted
}

func (s *Store) Network() *models.Network {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Network == nil {
		return nil
	}
	n := *s.state.Network
	return &n
}

// BeginRefresh starts a new generation and returns its token.
func (s *Store) BeginRefresh() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return s.generation
}

// ApplyAssets replaces the asset map if generation is still the latest.
func (s *Store) ApplyAssets(generation uint64, assets models.Assets) bool {
	applied := false
	s.update(func(state *Snapshot) bool {
		if generation != s.generation {
			return false
		}
		applied = true
		state.Assets = assets.Clone()
		return true
	})
	return applied
}

// ApplyScripted sets the scripted flag if generation is still the latest.
func (s *Store) ApplyScripted(generation uint64, scripted bool) bool {
	applied := false
	s.update(func(state *Snapshot) bool {
		if generation != s.generation {
			return false
		}
		applied = true
		if state.Scripted == scripted {
			return false
		}
		state.Scripted = scripted
		return true
	})
	return applied
}
