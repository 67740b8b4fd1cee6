package score

import "sort"

// Article is one labeled article of a feedback batch.
type Article struct {
	Label  string `json:"label" yaml:"label"`
	Author string `json:"author" yaml:"author"`
	Source string `json:"source" yaml:"source"`
}

// AuthorCredibility is an author's standing derived from a single batch.
type AuthorCredibility struct {
	Author           string  `json:"author" yaml:"author"`
	ArticleCount     int     `json:"article_count" yaml:"articleCount"`
	RawScore         float64 `json:"raw_score" yaml:"rawScore"`
	CredibilityScore float64 `json:"credibility_score" yaml:"credibilityScore"`
}

// SourceEvidence is what one batch says about a source.
type SourceEvidence struct {
	Source          string  `json:"source" yaml:"source"`
	ArticleCount    int     `json:"article_count" yaml:"articleCount"`
	WeightedAverage float64 `json:"weighted_average" yaml:"weightedAverage"`
	ObservedScore   float64 `json:"observed_score" yaml:"observedScore"`
}

// SourceWeight is one row of the weight table. ObservedScore is nil when the
// source had no evidence in the cycle that produced the row; readers should
// then treat it as equal to InitialWeight.
type SourceWeight struct {
	Source        string   `json:"source" yaml:"source"`
	InitialWeight float64  `json:"initial_weight" yaml:"initialWeight"`
	ObservedScore *float64 `json:"observed_score,omitempty" yaml:"observedScore,omitempty"`
	ArticleCount  int      `json:"article_count" yaml:"articleCount"`
	FinalWeight   float64  `json:"final_weight" yaml:"finalWeight"`
}

// Table is the weight table keyed by source.
type Table map[string]SourceWeight

// NewTable indexes rows by source. Later rows win on duplicates.
func NewTable(rows []SourceWeight) Table {
	t := make(Table, len(rows))
	for _, r := range rows {
		t[r.Source] = r
	}
	return t
}

// Clone returns a deep copy.
func (t Table) Clone() Table {
	c := make(Table, len(t))
	for k, v := range t {
		if v.ObservedScore != nil {
			o := *v.ObservedScore
			v.ObservedScore = &o
		}
		c[k] = v
	}
	return c
}

// Ranked returns the rows ordered by final weight, highest first, ties by
// source name.
func (t Table) Ranked() []SourceWeight {
	list := t.rows()
	sort.Slice(list, func(i, j int) bool {
		if list[i].FinalWeight != list[j].FinalWeight {
			return list[i].FinalWeight > list[j].FinalWeight
		}
		return list[i].Source < list[j].Source
	})
	return list
}

// BySource returns the rows ordered by source name.
func (t Table) BySource() []SourceWeight {
	list := t.rows()
	sort.Slice(list, func(i, j int) bool {
		return list[i].Source < list[j].Source
	})
	return list
}

func (t Table) rows() []SourceWeight {
	list := make([]SourceWeight, 0, len(t))
	for _, v := range t.Clone() {
		list = append(list, v)
	}
	return list
}

func rankAuthors(list []AuthorCredibility) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CredibilityScore != list[j].CredibilityScore {
			return list[i].CredibilityScore > list[j].CredibilityScore
		}
		if list[i].ArticleCount != list[j].ArticleCount {
			return list[i].ArticleCount > list[j].ArticleCount
		}
		return list[i].Author < list[j].Author
	})
}
