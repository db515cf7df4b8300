// Package journal records every block the miner solves together with the
// node's verdict on it.
package journal

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Status is the outcome of a block submission.
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"

	// set later by the confirmation watcher
	StatusConfirmed Status = "confirmed"
	StatusOrphaned  Status = "orphaned"
)

// ErrNotFound is returned by SetStatus for an unknown entry.
var ErrNotFound = errors.New("journal entry not found")

// Entry is one solved block.
type Entry struct {
	Hash     string    `cbor:"1,keyasint" json:"hash"`
	Height   int64     `cbor:"2,keyasint" json:"height"`
	Nonce    uint32    `cbor:"3,keyasint" json:"nonce"`
	PrevHash string    `cbor:"4,keyasint" json:"prev_hash"`
	Status   Status    `cbor:"5,keyasint" json:"status"`
	Reason   string    `cbor:"6,keyasint" json:"reason,omitempty"`
	FoundAt  time.Time `cbor:"7,keyasint" json:"found_at"`
}

// Journal persists found blocks.
type Journal interface {
	Record(ctx context.Context, e Entry) error
	// Recent returns up to limit entries, newest first. A limit <= 0 returns
	// every entry.
	Recent(ctx context.Context, limit int) ([]Entry, error)
	// Prune drops entries found before cutoff and reports how many went.
	Prune(ctx context.Context, cutoff time.Time) (int, error)
	// SetStatus updates the entry identified by e.Hash and e.FoundAt.
	SetStatus(ctx context.Context, e Entry, status Status) error
	Close() error
}

// MemoryJournal keeps entries in memory. Used when no database is configured
// and in tests.
type MemoryJournal struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryJournal creates an empty in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (m *MemoryJournal) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	sort.SliceStable(m.entries, func(i, j int) bool {
		return m.entries[i].FoundAt.Before(m.entries[j].FoundAt)
	})
	return nil
}

func (m *MemoryJournal) Recent(_ context.Context, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Entry
	for i := len(m.entries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *MemoryJournal) Prune(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	for _, e := range m.entries {
		if !e.FoundAt.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	removed := len(m.entries) - len(kept)
	m.entries = kept
	return removed, nil
}

func (m *MemoryJournal) SetStatus(_ context.Context, e Entry, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].Hash == e.Hash && m.entries[i].FoundAt.Equal(e.FoundAt) {
			m.entries[i].Status = status
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryJournal) Close() error { return nil }
