package snapshot

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/stopransomware/victimfeed/internal/feed"
	"github.com/stopransomware/victimfeed/internal/groups"
	"github.com/stopransomware/victimfeed/internal/metrics"
	"github.com/stopransomware/victimfeed/internal/normalize"
)

// Source supplies the three upstream streams a snapshot is built from.
type Source interface {
	AllVictims(ctx context.Context) ([]normalize.VictimRecord, error)
	RecentVictims(ctx context.Context) ([]normalize.VictimRecord, error)
	Groups(ctx context.Context) ([]groups.GroupRecord, error)
}

// SlotError describes one slot's fetch failure. Restricted marks
// upstream policy rejections (geo block, rate limit) so the UI can
// present them as an external limitation rather than a bug.
type SlotError struct {
	Message    string `json:"message"`
	Restricted bool   `json:"restricted"`
}

// Snapshot is the point-in-time aggregate served to the UI. Slots that
// failed on the latest refresh carry the previous refresh's data along
// with their error.
type Snapshot struct {
	AllVictims    []normalize.VictimRecord `json:"all_victims"`
	RecentVictims []normalize.VictimRecord `json:"recent_victims"`
	Groups        []groups.GroupRecord     `json:"groups"`
	TakenAt       time.Time                `json:"taken_at"`
	Errors        map[string]SlotError     `json:"errors,omitempty"`
}

// Store orchestrates concurrent fetches and holds the latest snapshot.
// The snapshot is replaced whole, never mutated in place.
type Store struct {
	source Source
	now    func() time.Time

	mu      sync.RWMutex
	current *Snapshot
}

// NewStore creates a snapshot store over the given source.
func NewStore(source Source) *Store {
	return &Store{source: source, now: time.Now}
}

// Current returns the latest snapshot, or nil before the first refresh.
func (s *Store) Current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Refresh fetches all slots concurrently and swaps in a new snapshot.
// Each slot settles independently: one failing fetch never discards
// another's result, and a failed slot keeps its previous data.
func (s *Store) Refresh(ctx context.Context) *Snapshot {
	next := &Snapshot{
		TakenAt: s.now(),
		Errors:  map[string]SlotError{},
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	var allVictims, recentVictims []normalize.VictimRecord
	var groupRecords []groups.GroupRecord

	run := func(slot string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				metrics.FetchResults.WithLabelValues(slot, "error").Inc()
				log.Printf("snapshot: %s fetch failed: %v", slot, err)
				mu.Lock()
				next.Errors[slot] = slotError(err)
				mu.Unlock()
				return
			}
			metrics.FetchResults.WithLabelValues(slot, "ok").Inc()
		}()
	}

	run("all", func() error {
		v, err := s.source.AllVictims(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		allVictims = v
		mu.Unlock()
		return nil
	})
	run("recent", func() error {
		v, err := s.source.RecentVictims(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		recentVictims = v
		mu.Unlock()
		return nil
	})
	run("groups", func() error {
		g, err := s.source.Groups(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		groupRecords = g
		mu.Unlock()
		return nil
	})

	wg.Wait()

	prev := s.Current()
	next.AllVictims = carryVictims(allVictims, next.Errors, "all", prev, func(p *Snapshot) []normalize.VictimRecord { return p.AllVictims })
	next.RecentVictims = carryVictims(recentVictims, next.Errors, "recent", prev, func(p *Snapshot) []normalize.VictimRecord { return p.RecentVictims })
	if _, failed := next.Errors["groups"]; failed && prev != nil {
		next.Groups = prev.Groups
	} else {
		next.Groups = groupRecords
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return next
}

// FilterRecent applies the trailing-window filter over the current
// snapshot's recent victim slot.
func (s *Store) FilterRecent(window time.Duration) []normalize.VictimRecord {
	snap := s.Current()
	if snap == nil {
		return nil
	}
	return normalize.FilterRecent(snap.RecentVictims, window, s.now())
}

func carryVictims(fresh []normalize.VictimRecord, errs map[string]SlotError, slot string, prev *Snapshot, pick func(*Snapshot) []normalize.VictimRecord) []normalize.VictimRecord {
	if _, failed := errs[slot]; failed && prev != nil {
		return pick(prev)
	}
	return fresh
}

func slotError(err error) SlotError {
	var policyErr *feed.PolicyError
	if errors.As(err, &policyErr) {
		return SlotError{Message: err.Error(), Restricted: true}
	}
	return SlotError{Message: err.Error()}
}
