package score

import "log/slog"

// Aggregate is the outcome of aggregating one feedback batch.
type Aggregate struct {
	// Authors holds the authors that met the minimum sample count, ranked.
	Authors []AuthorCredibility `json:"authors" yaml:"authors"`
	// Sources holds per-source evidence; sources without articles are absent.
	Sources map[string]SourceEvidence `json:"sources" yaml:"sources"`
	// Articles is the number of rows that survived cleaning.
	Articles int `json:"articles" yaml:"articles"`
	// Dropped is the number of rows removed by cleaning.
	Dropped int `json:"dropped" yaml:"dropped"`
}

// Aggregator turns labeled articles into author and source scores.
type Aggregator struct {
	labels        LabelScoreMap
	minAuthor     int
	neutralWeight float64
}

// NewAggregator creates an aggregator for the given parameters.
func NewAggregator(p Params) *Aggregator {
	return &Aggregator{
		labels:        p.Labels.Normalize(),
		minAuthor:     p.MinArticlesAuthor,
		neutralWeight: p.NeutralAuthorWeight,
	}
}

// Clean normalizes identifiers and drops rows with a missing field or an
// unknown label. Dropped rows are incomplete evidence, not errors.
func (a *Aggregator) Clean(articles []Article) (kept []Article, dropped int) {
	kept = make([]Article, 0, len(articles))
	for _, art := range articles {
		c := Article{
			Label:  NormalizeKey(art.Label),
			Author: NormalizeKey(art.Author),
			Source: NormalizeKey(art.Source),
		}
		if c.Label == "" || c.Author == "" || c.Source == "" {
			dropped++
			continue
		}
		if _, ok := a.labels[c.Label]; !ok {
			dropped++
			continue
		}
		kept = append(kept, c)
	}
	return kept, dropped
}

type authorAcc struct {
	count int
	sum   float64
}

type sourceAcc struct {
	count       int
	weightSum   float64
	weightedSum float64
	plainSum    float64
}

// Aggregate scores a batch. Authors with at least the minimum sample count
// get credibility (avg+1)/2 and weight their articles with it; the rest
// weight their articles with the neutral weight and stay out of the
// ranking. Each source gets the weighted mean of its article scores,
// rescaled to [0, 1].
func (a *Aggregator) Aggregate(articles []Article) *Aggregate {
	kept, dropped := a.Clean(articles)

	res := &Aggregate{
		Authors:  make([]AuthorCredibility, 0),
		Sources:  make(map[string]SourceEvidence),
		Articles: len(kept),
		Dropped:  dropped,
	}

	if dropped > 0 {
		slog.Debug("dropped incomplete articles", "dropped", dropped, "kept", len(kept))
	}

	scores := make([]float64, len(kept))
	authors := make(map[string]*authorAcc)
	for i, art := range kept {
		scores[i] = a.labels[art.Label]
		acc, ok := authors[art.Author]
		if !ok {
			acc = &authorAcc{}
			authors[art.Author] = acc
		}
		acc.count++
		acc.sum += scores[i]
	}

	weights := make(map[string]float64, len(authors))
	for name, acc := range authors {
		if acc.count < a.minAuthor {
			weights[name] = a.neutralWeight
			continue
		}
		avg := acc.sum / float64(acc.count)
		cred := Rescale(avg)
		weights[name] = cred
		res.Authors = append(res.Authors, AuthorCredibility{
			Author:           name,
			ArticleCount:     acc.count,
			RawScore:         avg,
			CredibilityScore: cred,
		})
	}
	rankAuthors(res.Authors)

	sources := make(map[string]*sourceAcc)
	for i, art := range kept {
		acc, ok := sources[art.Source]
		if !ok {
			acc = &sourceAcc{}
			sources[art.Source] = acc
		}
		w := weights[art.Author]
		acc.count++
		acc.weightSum += w
		acc.weightedSum += w * scores[i]
		acc.plainSum += scores[i]
	}

	for name, acc := range sources {
		// every author of the source has zero credibility, fall back to the plain mean
		avg := acc.plainSum / float64(acc.count)
		if acc.weightSum > 0 {
			avg = acc.weightedSum / acc.weightSum
		}
		res.Sources[name] = SourceEvidence{
			Source:          name,
			ArticleCount:    acc.count,
			WeightedAverage: avg,
			ObservedScore:   Rescale(avg),
		}
	}

	return res
}
