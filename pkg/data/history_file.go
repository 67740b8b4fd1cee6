package data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mchmarny/credscore/pkg/score"
	"github.com/spf13/cast"
)

const (
	snapshotFilePrefix = "weights-"
	snapshotFileExt    = ".csv"
	snapshotFileMode   = 0600
)

var snapshotHeader = []string{colSource, colInitialWeight, colFinalWeight, colArticleCount}

var snapshotColumns = columnAliases{
	colSource:        {colSource},
	colInitialWeight: {colInitialWeight},
	colFinalWeight:   {colFinalWeight},
	colArticleCount:  {colArticleCount},
}

// FileHistory keeps one CSV file per snapshot in a directory. The version
// is encoded in the file name, so listing never depends on file metadata.
// Observed scores and cycle ids are not part of the file format.
type FileHistory struct {
	dir string
}

var _ History = (*FileHistory)(nil)

// NewFileHistory creates dir if needed.
func NewFileHistory(dir string) (*FileHistory, error) {
	if dir == "" {
		return nil, errors.New("history dir not specified")
	}
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("failed to create history dir %s: %w", dir, err)
	}
	return &FileHistory{dir: dir}, nil
}

// Dir returns the history directory.
func (h *FileHistory) Dir() string {
	return h.dir
}

// SnapshotFileName returns the file name of version v.
func SnapshotFileName(v Version) string {
	return snapshotFilePrefix + v.Label() + snapshotFileExt
}

// parseSnapshotFileName extracts the version from a snapshot file name.
// Temp files (leading dot) and foreign files are rejected.
func parseSnapshotFileName(name string) (Version, bool) {
	if !strings.HasPrefix(name, snapshotFilePrefix) || !strings.HasSuffix(name, snapshotFileExt) {
		return 0, false
	}
	label := strings.TrimSuffix(strings.TrimPrefix(name, snapshotFilePrefix), snapshotFileExt)
	t, err := time.Parse(versionLayout, label)
	if err != nil {
		return 0, false
	}
	return Version(t.UnixNano()), true
}

func (h *FileHistory) versions() ([]Version, error) {
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read history dir %s: %w", h.dir, err)
	}

	list := make([]Version, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if v, ok := parseSnapshotFileName(e.Name()); ok {
			list = append(list, v)
		}
	}

	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list, nil
}

// Latest returns the snapshot with the highest version.
func (h *FileHistory) Latest(ctx context.Context) (*Snapshot, error) {
	list, err := h.versions()
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrSnapshotNotFound
	}
	return h.Get(ctx, list[len(list)-1])
}

// Get reads the snapshot with version v.
func (h *FileHistory) Get(ctx context.Context, v Version) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(h.dir, SnapshotFileName(v))
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("version %s: %w", v, ErrSnapshotNotFound)
		}
		return nil, fmt.Errorf("failed to open snapshot %s: %w", path, err)
	}
	defer f.Close()

	rows, err := readCSV(f)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}

	weights, err := parseSnapshotRows(rows)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot %s: %w", path, err)
	}

	return &Snapshot{
		Version:   v,
		Label:     v.Label(),
		CreatedAt: v.Time(),
		Weights:   weights,
	}, nil
}

func parseSnapshotRows(rows [][]string) ([]score.SourceWeight, error) {
	if len(rows) == 0 {
		return nil, errNoHeader
	}

	cols, err := indexColumns(rows[0], snapshotColumns, snapshotHeader...)
	if err != nil {
		return nil, err
	}

	list := make([]score.SourceWeight, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isBlank(row) {
			continue
		}

		w := score.SourceWeight{Source: cols.cell(row, colSource)}
		for _, c := range snapshotHeader {
			if cols.cell(row, c) == "" {
				return nil, fmt.Errorf("row %d: empty %s", i+2, c)
			}
		}
		if w.InitialWeight, err = cast.ToFloat64E(cols.cell(row, colInitialWeight)); err != nil {
			return nil, fmt.Errorf("row %d: invalid initial_weight: %w", i+2, err)
		}
		if w.FinalWeight, err = cast.ToFloat64E(cols.cell(row, colFinalWeight)); err != nil {
			return nil, fmt.Errorf("row %d: invalid final_weight: %w", i+2, err)
		}
		if w.ArticleCount, err = cast.ToIntE(cols.cell(row, colArticleCount)); err != nil {
			return nil, fmt.Errorf("row %d: invalid article_count: %w", i+2, err)
		}
		list = append(list, w)
	}

	return list, nil
}

// List returns all snapshots, oldest first.
func (h *FileHistory) List(ctx context.Context) ([]SnapshotInfo, error) {
	versions, err := h.versions()
	if err != nil {
		return nil, err
	}

	list := make([]SnapshotInfo, 0, len(versions))
	for _, v := range versions {
		s, err := h.Get(ctx, v)
		if err != nil {
			return nil, err
		}
		list = append(list, s.Info())
	}

	return list, nil
}

// Append writes s to a hidden temp file and hard-links it into place. The
// link fails if the target exists, so a stored snapshot is never replaced
// and readers never see a partial file.
func (h *FileHistory) Append(ctx context.Context, s *Snapshot) error {
	if s == nil {
		return errors.New("snapshot required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	name := SnapshotFileName(s.Version)
	target := filepath.Join(h.dir, name)

	tmp, err := os.CreateTemp(h.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeSnapshot(tmp, s.Weights); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync snapshot %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot %s: %w", name, err)
	}
	if err := os.Chmod(tmp.Name(), snapshotFileMode); err != nil {
		return fmt.Errorf("failed to set snapshot file mode: %w", err)
	}

	if err := os.Link(tmp.Name(), target); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("version %s: %w", s.Version, ErrSnapshotExists)
		}
		return fmt.Errorf("failed to publish snapshot %s: %w", name, err)
	}

	slog.Debug("snapshot file written", "path", target, "sources", len(s.Weights))
	return nil
}

func writeSnapshot(f *os.File, weights []score.SourceWeight) error {
	w := csv.NewWriter(f)
	if err := w.Write(snapshotHeader); err != nil {
		return err
	}

	for _, r := range weights {
		rec := []string{
			r.Source,
			formatWeight(r.InitialWeight),
			formatWeight(r.FinalWeight),
			strconv.Itoa(r.ArticleCount),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatWeight(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
