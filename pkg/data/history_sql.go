package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/mchmarny/credscore/pkg/score"
)

// weightInsertBatch keeps multi-row inserts well under the bind parameter
// limits of both sqlite and postgres.
const weightInsertBatch = 500

// SQLHistory keeps snapshots in the snapshot and snapshot_weight tables of
// a sqlite or postgres database.
type SQLHistory struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ History = (*SQLHistory)(nil)

// NewSQLHistory wraps db. driver selects the bind placeholder style.
func NewSQLHistory(db *sql.DB, driver string) *SQLHistory {
	sb := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if driver == DriverPostgres {
		sb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return &SQLHistory{db: db, sb: sb}
}

// Latest returns the snapshot with the highest version.
func (h *SQLHistory) Latest(ctx context.Context) (*Snapshot, error) {
	if h.db == nil {
		return nil, ErrDBNotInitialized
	}

	q, args, err := h.sb.Select("version").From("snapshot").OrderBy("version DESC").Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build latest snapshot query: %w", err)
	}

	var v int64
	if err := h.db.QueryRowContext(ctx, q, args...).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}

	return h.Get(ctx, Version(v))
}

// Get returns the snapshot with version v.
func (h *SQLHistory) Get(ctx context.Context, v Version) (*Snapshot, error) {
	if h.db == nil {
		return nil, ErrDBNotInitialized
	}

	q, args, err := h.sb.Select("label", "cycle_id", "created_at").
		From("snapshot").
		Where(sq.Eq{"version": int64(v)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot query: %w", err)
	}

	s := &Snapshot{Version: v}
	var created string
	if err := h.db.QueryRowContext(ctx, q, args...).Scan(&s.Label, &s.ID, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("version %s: %w", v, ErrSnapshotNotFound)
		}
		return nil, fmt.Errorf("failed to query snapshot %s: %w", v, err)
	}

	if s.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("invalid created_at %q on snapshot %s: %w", created, v, err)
	}

	s.Weights, err = h.weights(ctx, v)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (h *SQLHistory) weights(ctx context.Context, v Version) ([]score.SourceWeight, error) {
	q, args, err := h.sb.Select("source", "initial_weight", "observed_score", "final_weight", "article_count").
		From("snapshot_weight").
		Where(sq.Eq{"version": int64(v)}).
		OrderBy("source").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot weight query: %w", err)
	}

	rows, err := h.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot weights: %w", err)
	}
	defer rows.Close()

	list := make([]score.SourceWeight, 0)
	for rows.Next() {
		var w score.SourceWeight
		var observed sql.NullFloat64
		if err := rows.Scan(&w.Source, &w.InitialWeight, &observed, &w.FinalWeight, &w.ArticleCount); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot weight row: %w", err)
		}
		if observed.Valid {
			o := observed.Float64
			w.ObservedScore = &o
		}
		list = append(list, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshot weights: %w", err)
	}

	return list, nil
}

// List returns all snapshots, oldest first.
func (h *SQLHistory) List(ctx context.Context) ([]SnapshotInfo, error) {
	if h.db == nil {
		return nil, ErrDBNotInitialized
	}

	q, args, err := h.sb.Select("s.version", "s.label", "s.cycle_id", "s.created_at", "COUNT(w.source)").
		From("snapshot s").
		LeftJoin("snapshot_weight w ON w.version = s.version").
		GroupBy("s.version", "s.label", "s.cycle_id", "s.created_at").
		OrderBy("s.version").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot list query: %w", err)
	}

	rows, err := h.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	list := make([]SnapshotInfo, 0)
	for rows.Next() {
		var info SnapshotInfo
		var v int64
		var created string
		if err := rows.Scan(&v, &info.Label, &info.ID, &created, &info.Sources); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		info.Version = Version(v)
		if info.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("invalid created_at %q: %w", created, err)
		}
		list = append(list, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}

	return list, nil
}

// Append writes s and all its rows in one transaction.
func (h *SQLHistory) Append(ctx context.Context, s *Snapshot) error {
	if h.db == nil {
		return ErrDBNotInitialized
	}
	if s == nil {
		return errors.New("snapshot required")
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting snapshot tx: %w", err)
	}

	if err := h.appendTx(ctx, tx, s); err != nil {
		rollbackTransaction(tx)
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing snapshot tx: %w", err)
	}

	return nil
}

func (h *SQLHistory) appendTx(ctx context.Context, tx *sql.Tx, s *Snapshot) error {
	q, args, err := h.sb.Select("COUNT(*)").From("snapshot").Where(sq.Eq{"version": int64(s.Version)}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build snapshot exists query: %w", err)
	}

	var n int
	if err := tx.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return fmt.Errorf("failed to check snapshot %s: %w", s.Version, err)
	}
	if n > 0 {
		return fmt.Errorf("version %s: %w", s.Version, ErrSnapshotExists)
	}

	q, args, err = h.sb.Insert("snapshot").
		Columns("version", "label", "cycle_id", "created_at").
		Values(int64(s.Version), s.Label, s.ID, s.CreatedAt.UTC().Format(time.RFC3339Nano)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build snapshot insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("failed to insert snapshot %s: %w", s.Version, err)
	}

	for start := 0; start < len(s.Weights); start += weightInsertBatch {
		end := min(start+weightInsertBatch, len(s.Weights))

		ins := h.sb.Insert("snapshot_weight").
			Columns("version", "source", "initial_weight", "observed_score", "final_weight", "article_count")
		for _, w := range s.Weights[start:end] {
			ins = ins.Values(int64(s.Version), w.Source, w.InitialWeight, w.ObservedScore, w.FinalWeight, w.ArticleCount)
		}

		q, args, err := ins.ToSql()
		if err != nil {
			return fmt.Errorf("failed to build snapshot weight insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("failed to insert snapshot weights: %w", err)
		}
	}

	return nil
}

func rollbackTransaction(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.Error("error rolling back transaction", "error", err)
	}
}
