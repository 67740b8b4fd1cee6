package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"
)

func articles(label, author, source string, n int) []Article {
	list := make([]Article, n)
	for i := range list {
		list[i] = Article{Label: label, Author: author, Source: source}
	}
	return list
}

func TestAggregator_Clean(t *testing.T) {
	a := NewAggregator(DefaultParams())

	in := []Article{
		{Label: LabelTrue, Author: "kim", Source: "A"},
		{Label: "", Author: "kim", Source: "A"},
		{Label: LabelTrue, Author: "", Source: "A"},
		{Label: LabelTrue, Author: "kim", Source: " "},
		{Label: "unknown", Author: "kim", Source: "A"},
		{Label: "  " + LabelFalse + " ", Author: " lee ", Source: "B"},
	}

	kept, dropped := a.Clean(in)
	assert.Equal(t, 4, dropped)
	require.Len(t, kept, 2)
	assert.Equal(t, LabelFalse, kept[1].Label)
	assert.Equal(t, "lee", kept[1].Author)
}

func TestAggregator_Clean_DecomposedLabel(t *testing.T) {
	a := NewAggregator(DefaultParams())
	nfd := norm.NFD.String(LabelTrue)
	require.NotEqual(t, LabelTrue, nfd)

	kept, dropped := a.Clean([]Article{{Label: nfd, Author: "kim", Source: "A"}})
	assert.Equal(t, 0, dropped)
	require.Len(t, kept, 1)
	assert.Equal(t, LabelTrue, kept[0].Label)
}

func TestAggregator_QualifyingAuthor(t *testing.T) {
	a := NewAggregator(DefaultParams())
	res := a.Aggregate(articles(LabelTrue, "kim", "sourceA", 3))

	require.Len(t, res.Authors, 1)
	assert.Equal(t, "kim", res.Authors[0].Author)
	assert.Equal(t, 3, res.Authors[0].ArticleCount)
	assert.InDelta(t, 1.0, res.Authors[0].RawScore, 1e-9)
	assert.InDelta(t, 1.0, res.Authors[0].CredibilityScore, 1e-9)

	ev, ok := res.Sources["sourceA"]
	require.True(t, ok)
	assert.Equal(t, 3, ev.ArticleCount)
	assert.InDelta(t, 1.0, ev.ObservedScore, 1e-9)
}

func TestAggregator_NonQualifyingAuthorUsesNeutralWeight(t *testing.T) {
	a := NewAggregator(DefaultParams())

	// kim: 3 true articles, credibility 1.0; lee: 1 false article, weight 0.5
	batch := append(articles(LabelTrue, "kim", "S", 3), Article{Label: LabelFalse, Author: "lee", Source: "S"})
	res := a.Aggregate(batch)

	require.Len(t, res.Authors, 1, "lee is below the minimum and stays out of the ranking")
	assert.Equal(t, "kim", res.Authors[0].Author)

	// (3*1.0*1 + 0.5*-1) / (3*1.0 + 0.5) = 2.5 / 3.5
	want := 2.5 / 3.5
	ev := res.Sources["S"]
	assert.Equal(t, 4, ev.ArticleCount)
	assert.InDelta(t, want, ev.WeightedAverage, 1e-9)
	assert.InDelta(t, (want+1)/2, ev.ObservedScore, 1e-9)
}

func TestAggregator_MixedLabels(t *testing.T) {
	a := NewAggregator(DefaultParams())

	batch := []Article{
		{Label: LabelTrue, Author: "kim", Source: "S"},
		{Label: LabelMostlyTrue, Author: "kim", Source: "S"},
		{Label: LabelHalfTrue, Author: "kim", Source: "T"},
	}
	res := a.Aggregate(batch)

	require.Len(t, res.Authors, 1)
	assert.InDelta(t, 0.5, res.Authors[0].RawScore, 1e-9)
	assert.InDelta(t, 0.75, res.Authors[0].CredibilityScore, 1e-9)

	assert.InDelta(t, 0.75, res.Sources["S"].WeightedAverage, 1e-9)
	assert.InDelta(t, 0.875, res.Sources["S"].ObservedScore, 1e-9)
	assert.InDelta(t, 0.0, res.Sources["T"].WeightedAverage, 1e-9)
	assert.InDelta(t, 0.5, res.Sources["T"].ObservedScore, 1e-9)
}

func TestAggregator_ZeroCredibilityFallsBackToPlainMean(t *testing.T) {
	a := NewAggregator(DefaultParams())
	res := a.Aggregate(articles(LabelFalse, "liar", "S", 3))

	require.Len(t, res.Authors, 1)
	assert.InDelta(t, 0.0, res.Authors[0].CredibilityScore, 1e-9)

	ev := res.Sources["S"]
	assert.InDelta(t, -1.0, ev.WeightedAverage, 1e-9)
	assert.InDelta(t, 0.0, ev.ObservedScore, 1e-9)
}

func TestAggregator_SourceWithoutArticlesIsAbsent(t *testing.T) {
	a := NewAggregator(DefaultParams())
	res := a.Aggregate([]Article{{Label: "bogus", Author: "kim", Source: "S"}})

	assert.Equal(t, 0, res.Articles)
	assert.Equal(t, 1, res.Dropped)
	_, ok := res.Sources["S"]
	assert.False(t, ok)
	assert.Empty(t, res.Authors)
}

func TestAggregator_EmptyBatch(t *testing.T) {
	a := NewAggregator(DefaultParams())
	res := a.Aggregate(nil)
	assert.Equal(t, 0, res.Articles)
	assert.Empty(t, res.Sources)
	assert.NotNil(t, res.Authors)
}

func TestAggregator_AuthorRankingOrder(t *testing.T) {
	a := NewAggregator(DefaultParams())

	var batch []Article
	batch = append(batch, articles(LabelTrue, "b", "S", 3)...)
	batch = append(batch, articles(LabelTrue, "a", "S", 3)...)
	batch = append(batch, articles(LabelHalfTrue, "c", "S", 4)...)
	batch = append(batch, articles(LabelTrue, "d", "S", 4)...)

	res := a.Aggregate(batch)
	require.Len(t, res.Authors, 4)
	got := []string{res.Authors[0].Author, res.Authors[1].Author, res.Authors[2].Author, res.Authors[3].Author}
	assert.Equal(t, []string{"d", "a", "b", "c"}, got)
}

func TestAggregator_CredibilityMonotonic(t *testing.T) {
	labels := DefaultLabelScores().Labels()
	a := NewAggregator(DefaultParams())

	prev := -1.0
	// walk from the lowest to the highest label: credibility must increase
	for i := len(labels) - 1; i >= 0; i-- {
		res := a.Aggregate(articles(labels[i], "kim", "S", 3))
		require.Len(t, res.Authors, 1)
		cred := res.Authors[0].CredibilityScore
		assert.Greater(t, cred, prev, "label %s", labels[i])
		assert.GreaterOrEqual(t, cred, 0.0)
		assert.LessOrEqual(t, cred, 1.0)
		prev = cred
	}
}

func TestAggregator_CustomMinimum(t *testing.T) {
	p := DefaultParams()
	p.MinArticlesAuthor = 1
	p.NeutralAuthorWeight = 0.2
	a := NewAggregator(p)

	res := a.Aggregate([]Article{{Label: LabelMostlyFalse, Author: "kim", Source: "S"}})
	require.Len(t, res.Authors, 1)
	assert.InDelta(t, 0.25, res.Authors[0].CredibilityScore, 1e-9)
}
