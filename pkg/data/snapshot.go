package data

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mchmarny/credscore/pkg/score"
)

// versionLayout is fixed width so labels sort the same way versions do.
const versionLayout = "20060102T150405.000000000Z"

// Version identifies a snapshot: UTC nanoseconds since the epoch.
type Version int64

// NextVersion returns a version for now that is strictly greater than last.
func NextVersion(now time.Time, last Version) Version {
	v := Version(now.UTC().UnixNano())
	if v <= last {
		v = last + 1
	}
	return v
}

// Time returns the version as a UTC timestamp.
func (v Version) Time() time.Time {
	return time.Unix(0, int64(v)).UTC()
}

// Label renders the version as a sortable timestamp.
func (v Version) Label() string {
	return v.Time().Format(versionLayout)
}

func (v Version) String() string {
	return v.Label()
}

// ParseVersion accepts either a label or the raw nanosecond number.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty version")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Version(n), nil
	}
	t, err := time.Parse(versionLayout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", s, err)
	}
	return Version(t.UnixNano()), nil
}

// Snapshot is one immutable revision of the full weight table.
type Snapshot struct {
	Version   Version              `json:"version" yaml:"version"`
	Label     string               `json:"label" yaml:"label"`
	ID        string               `json:"id,omitempty" yaml:"id,omitempty"`
	CreatedAt time.Time            `json:"created_at" yaml:"createdAt"`
	Weights   []score.SourceWeight `json:"weights" yaml:"weights"`
}

// Table indexes the snapshot rows by source.
func (s *Snapshot) Table() score.Table {
	return score.NewTable(s.Weights).Clone()
}

// Info summarizes the snapshot without its rows.
func (s *Snapshot) Info() SnapshotInfo {
	return SnapshotInfo{
		Version:   s.Version,
		Label:     s.Label,
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Sources:   len(s.Weights),
	}
}

// SnapshotInfo is the history listing entry of a snapshot.
type SnapshotInfo struct {
	Version   Version   `json:"version" yaml:"version"`
	Label     string    `json:"label" yaml:"label"`
	ID        string    `json:"id,omitempty" yaml:"id,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"createdAt"`
	Sources   int       `json:"sources" yaml:"sources"`
}

// History is an append-only store of weight snapshots. Implementations
// never modify or delete a stored snapshot, and a snapshot becomes visible
// to readers only once it is completely written.
type History interface {
	// Latest returns the snapshot with the highest version or ErrSnapshotNotFound.
	Latest(ctx context.Context) (*Snapshot, error)
	// Get returns the snapshot with version v or ErrSnapshotNotFound.
	Get(ctx context.Context, v Version) (*Snapshot, error)
	// List returns all snapshots, oldest first.
	List(ctx context.Context) ([]SnapshotInfo, error)
	// Append stores s or fails with ErrSnapshotExists.
	Append(ctx context.Context, s *Snapshot) error
}
