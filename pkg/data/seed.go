package data

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"
	"github.com/mchmarny/credscore/pkg/score"
	"github.com/spf13/cast"
)

const (
	colInitialWeight = "initial_weight"
	colFinalWeight   = "final_weight"
	colArticleCount  = "article_count"
)

var seedColumns = columnAliases{
	colSource:        {"source", "언론사", "매체"},
	colInitialWeight: {"initial_weight", "weight", "prior", "초기가중치"},
	colFinalWeight:   {"final_weight", "최종가중치"},
}

// ReadSeed loads the cold-start weight table from a .csv or .xlsx file with
// the columns source, initial_weight and an optional final_weight. A source
// without a final weight starts from its initial weight. Every invalid row
// is reported.
func ReadSeed(path string) (score.Table, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}

	t, err := parseSeed(rows)
	if err != nil {
		return nil, fmt.Errorf("invalid seed file %s: %w", path, err)
	}

	slog.Debug("seed read", "path", path, "sources", len(t))
	return t, nil
}

func parseSeed(rows [][]string) (score.Table, error) {
	if len(rows) == 0 {
		return nil, errNoHeader
	}

	cols, err := indexColumns(rows[0], seedColumns, colSource, colInitialWeight)
	if err != nil {
		return nil, err
	}

	var errs *multierror.Error
	t := make(score.Table)

	for i, row := range rows[1:] {
		line := i + 2
		if isBlank(row) {
			continue
		}

		source := score.NormalizeKey(cols.cell(row, colSource))
		if source == "" {
			errs = multierror.Append(errs, fmt.Errorf("row %d: empty source", line))
			continue
		}
		if _, dup := t[source]; dup {
			errs = multierror.Append(errs, fmt.Errorf("row %d: duplicate source %q", line, source))
			continue
		}

		initial, err := weightCell(cols.cell(row, colInitialWeight))
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("row %d: initial_weight: %w", line, err))
			continue
		}

		final := initial
		if v := cols.cell(row, colFinalWeight); cols.has(colFinalWeight) && v != "" {
			if final, err = weightCell(v); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("row %d: final_weight: %w", line, err))
				continue
			}
		}

		t[source] = score.SourceWeight{
			Source:        source,
			InitialWeight: initial,
			FinalWeight:   final,
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	return t, nil
}

// weightCell parses a weight and checks it is within [0, 1].
func weightCell(v string) (float64, error) {
	if v == "" {
		return 0, errors.New("empty value")
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", v)
	}
	if !score.InRange(f, 0, 1) {
		return 0, fmt.Errorf("%v outside [0, 1]", f)
	}
	return f, nil
}
