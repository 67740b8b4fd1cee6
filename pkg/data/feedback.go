package data

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/mchmarny/credscore/pkg/score"
)

const (
	colLabel  = "label"
	colAuthor = "author"
	colSource = "source"
)

var feedbackColumns = columnAliases{
	colLabel:  {"label", "라벨", "판정"},
	colAuthor: {"author", "기자", "작성자"},
	colSource: {"source", "언론사", "매체"},
}

// ReadFeedback loads a feedback batch from a .csv or .xlsx file. Rows are
// returned as read; incomplete rows are left for the aggregator to drop.
func ReadFeedback(path string) ([]score.Article, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}

	list, err := parseFeedback(rows)
	if err != nil {
		return nil, fmt.Errorf("invalid feedback file %s: %w", path, err)
	}

	slog.Debug("feedback read", "path", path, "rows", len(list))
	return list, nil
}

// ParseFeedbackCSV parses a feedback batch in CSV form.
func ParseFeedbackCSV(r io.Reader) ([]score.Article, error) {
	rows, err := readCSV(r)
	if err != nil {
		return nil, err
	}
	return parseFeedback(rows)
}

func parseFeedback(rows [][]string) ([]score.Article, error) {
	if len(rows) == 0 {
		return nil, errNoHeader
	}

	cols, err := indexColumns(rows[0], feedbackColumns, colLabel, colAuthor, colSource)
	if err != nil {
		return nil, err
	}

	list := make([]score.Article, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		list = append(list, score.Article{
			Label:  cols.cell(row, colLabel),
			Author: cols.cell(row, colAuthor),
			Source: cols.cell(row, colSource),
		})
	}

	return list, nil
}
