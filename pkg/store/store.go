// Package store owns the current credibility state: the source weight table
// and the author rankings of the last cycle. State is loaded from the latest
// snapshot (or the seed on cold start) and every change is written as a new
// snapshot.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mchmarny/credscore/pkg/data"
	"github.com/mchmarny/credscore/pkg/score"
)

var errNotLoaded = errors.New("store not loaded")

// Option configures a Store.
type Option func(*Store)

// WithSeed sets the seed file used when the history is empty.
func WithSeed(path string) Option {
	return func(s *Store) {
		s.seedPath = path
	}
}

// WithClock replaces the clock used to version snapshots.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// State is a copy of everything a Store holds in memory.
type State struct {
	Table   score.Table
	Authors []score.AuthorCredibility
	Version data.Version
}

// Store is safe for concurrent readers. Writers (Commit, Persist, Apply,
// Rollback) serialize on a single write lock, so a rollback never lands
// between the commit and persist of an update.
type Store struct {
	history  data.History
	seedPath string
	now      func() time.Time

	writeMu sync.Mutex

	mu      sync.RWMutex
	current score.Table
	authors []score.AuthorCredibility
	version data.Version
	loaded  bool
}

// New creates a store over history.
func New(history data.History, opts ...Option) (*Store, error) {
	if history == nil {
		return nil, errors.New("history required")
	}

	s := &Store{
		history: history,
		now:     time.Now,
		current: make(score.Table),
		authors: make([]score.AuthorCredibility, 0),
	}
	for _, o := range opts {
		o(s)
	}

	return s, nil
}

// Load makes the most recent snapshot current. When the history is empty
// the seed is used instead; with neither a *ConfigurationError is returned.
func (s *Store) Load(ctx context.Context) error {
	snap, err := s.history.Latest(ctx)
	if err == nil {
		s.set(snap.Table(), nil, snap.Version)
		slog.Debug("weights loaded from snapshot", "version", snap.Label, "sources", len(snap.Weights))
		return nil
	}
	if !errors.Is(err, data.ErrSnapshotNotFound) {
		return fmt.Errorf("failed to load latest snapshot: %w", err)
	}

	tried := []string{"snapshot history"}
	if s.seedPath == "" {
		return &ConfigurationError{Tried: tried, Err: data.ErrMissingHistory}
	}
	tried = append(tried, s.seedPath)

	t, err := data.ReadSeed(s.seedPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &ConfigurationError{Tried: tried, Err: data.ErrMissingHistory}
		}
		return fmt.Errorf("failed to load seed: %w", err)
	}

	s.set(t, nil, 0)
	slog.Debug("weights loaded from seed", "path", s.seedPath, "sources", len(t))
	return nil
}

func (s *Store) set(t score.Table, authors []score.AuthorCredibility, v data.Version) {
	if authors == nil {
		authors = make([]score.AuthorCredibility, 0)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = t
	s.authors = authors
	s.version = v
	s.loaded = true
}

// Loaded reports whether Load succeeded.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Version returns the version of the last loaded or persisted snapshot,
// 0 when the state came from the seed and was not persisted yet.
func (s *Store) Version() data.Version {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Table returns a copy of the current weight table.
func (s *Store) Table() score.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// State returns a copy of the in-memory state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Table:   s.current.Clone(),
		Authors: append([]score.AuthorCredibility(nil), s.authors...),
		Version: s.version,
	}
}

// CurrentWeights returns the current rows, highest final weight first.
func (s *Store) CurrentWeights() []score.SourceWeight {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Ranked()
}

// CurrentAuthorRankings returns the authors of the last cycle, most
// credible first. Authors are not carried across cycles.
func (s *Store) CurrentAuthorRankings() []score.AuthorCredibility {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]score.AuthorCredibility, len(s.authors))
	copy(list, s.authors)
	return list
}

// Commit atomically replaces the in-memory table and author rankings.
// Readers see either the old or the new state, never a mix.
func (s *Store) Commit(t score.Table, authors []score.AuthorCredibility) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.commit(t, authors)
}

func (s *Store) commit(t score.Table, authors []score.AuthorCredibility) error {
	if t == nil {
		return errors.New("weight table required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return errNotLoaded
	}
	s.current = t.Clone()
	s.authors = append(make([]score.AuthorCredibility, 0, len(authors)), authors...)
	return nil
}

// Apply commits t and authors and persists them as one step. When persisting
// fails the previous state is put back.
func (s *Store) Apply(ctx context.Context, t score.Table, authors []score.AuthorCredibility) (*data.Snapshot, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prev := s.State()
	if err := s.commit(t, authors); err != nil {
		return nil, err
	}

	snap, err := s.persist(ctx)
	if err != nil {
		s.Restore(prev)
		return nil, err
	}

	return snap, nil
}

// Restore puts back a state captured with State.
func (s *Store) Restore(st State) {
	s.set(st.Table.Clone(), append([]score.AuthorCredibility(nil), st.Authors...), st.Version)
}

// Persist writes the current table as a new snapshot whose version is
// strictly greater than the previous one. Existing snapshots are never
// touched.
func (s *Store) Persist(ctx context.Context) (*data.Snapshot, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.persist(ctx)
}

func (s *Store) persist(ctx context.Context) (*data.Snapshot, error) {
	s.mu.RLock()
	if !s.loaded {
		s.mu.RUnlock()
		return nil, errNotLoaded
	}
	now := s.now()
	v := data.NextVersion(now, s.version)
	snap := &data.Snapshot{
		Version:   v,
		Label:     v.Label(),
		ID:        uuid.NewString(),
		CreatedAt: now.UTC(),
		Weights:   s.current.BySource(),
	}
	s.mu.RUnlock()

	if err := s.history.Append(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to persist snapshot %s: %w", v, err)
	}

	s.mu.Lock()
	s.version = v
	s.mu.Unlock()

	slog.Debug("snapshot persisted", "version", snap.Label, "id", snap.ID, "sources", len(snap.Weights))
	return snap, nil
}

// Snapshots lists the stored snapshots, oldest first.
func (s *Store) Snapshots(ctx context.Context) ([]data.SnapshotInfo, error) {
	return s.history.List(ctx)
}

// Rollback makes the table of snapshot v current again and persists it as
// a new snapshot, so the history stays append-only. Author rankings are
// cleared.
func (s *Store) Rollback(ctx context.Context, v data.Version) (*data.Snapshot, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !s.Loaded() {
		return nil, errNotLoaded
	}

	target, err := s.history.Get(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", v, err)
	}

	prev := s.State()
	s.set(target.Table(), nil, prev.Version)

	snap, err := s.persist(ctx)
	if err != nil {
		s.Restore(prev)
		return nil, err
	}

	slog.Info("rolled back", "to", target.Label, "as", snap.Label)
	return snap, nil
}
