package score

import (
	"context"
	"errors"
)

// sourceMetaKeys are the metadata keys checked, in order, for a source name.
var sourceMetaKeys = []string{"source", "media"}

// ArticleScorer scores a single article from arbitrary metadata. The result
// is bounded to [0, 1].
type ArticleScorer interface {
	ScoreArticle(ctx context.Context, meta map[string]string) (float64, error)
}

// DefaultStaticPriors returns the hand-assigned cold-start priors of the
// major wire services and dailies. Values outside [0, 1] are clamped by
// NewPriorLookup.
func DefaultStaticPriors() map[string]float64 {
	return map[string]float64{
		"연합뉴스": 0.9,
		"한겨레":  0.8,
		"중앙일보": 0.7,
		"조선일보": 0.6,
		"마이너스": -0.1,
	}
}

// PriorLookup resolves the prior of a source that has no history yet.
type PriorLookup struct {
	table    map[string]float64
	fallback float64
}

var _ ArticleScorer = (*PriorLookup)(nil)

// NewPriorLookup builds a lookup over table, answering fallback for
// unknown sources. Table values are clamped into [0, 1].
func NewPriorLookup(table map[string]float64, fallback float64) *PriorLookup {
	l := &PriorLookup{
		table:    make(map[string]float64, len(table)),
		fallback: Clamp01(fallback),
	}
	for k, v := range table {
		l.table[NormalizeKey(k)] = Clamp01(v)
	}
	return l
}

// Lookup returns the static prior of source and whether it was listed.
func (l *PriorLookup) Lookup(source string) (float64, bool) {
	v, ok := l.table[NormalizeKey(source)]
	return v, ok
}

// Prior returns the static prior of source or the fallback.
func (l *PriorLookup) Prior(source string) float64 {
	if v, ok := l.Lookup(source); ok {
		return v
	}
	return l.fallback
}

// ScoreArticle scores an article by the static prior of its source.
func (l *PriorLookup) ScoreArticle(ctx context.Context, meta map[string]string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	for _, k := range sourceMetaKeys {
		if v := NormalizeKey(meta[k]); v != "" {
			return l.Prior(v), nil
		}
	}
	return 0, errors.New("article metadata has no source")
}
