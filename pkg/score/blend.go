package score

// Blender merges per-source evidence into the prior weight table.
type Blender struct {
	alpha     float64
	minSource int
	priors    *PriorLookup
}

// NewBlender creates a blender for the given parameters.
func NewBlender(p Params) *Blender {
	return &Blender{
		alpha:     p.Alpha,
		minSource: p.MinArticlesSource,
		priors:    NewPriorLookup(p.Priors, p.DefaultPrior),
	}
}

// BlendWeight is alpha*initial + (1-alpha)*observed, clamped to [0, 1].
func BlendWeight(alpha, initial, observed float64) float64 {
	return Clamp01(alpha*initial + (1-alpha)*observed)
}

// Prior returns the initial weight a source starts the next cycle with: its
// last final weight, or the cold-start prior when it has no row yet.
func (b *Blender) Prior(prior Table, source string) float64 {
	if row, ok := prior[source]; ok {
		return Clamp01(row.FinalWeight)
	}
	return b.priors.Prior(source)
}

// Blend produces the next weight table over the union of prior sources and
// evidence sources. A source moves only when its evidence count reaches the
// minimum; otherwise its final weight stays at its initial weight. Neither
// input is modified.
func (b *Blender) Blend(prior Table, evidence map[string]SourceEvidence) Table {
	next := make(Table, len(prior)+len(evidence))

	for source := range prior {
		next[source] = b.blendOne(prior, source, evidence)
	}
	for source := range evidence {
		if _, ok := next[source]; !ok {
			next[source] = b.blendOne(prior, source, evidence)
		}
	}

	return next
}

func (b *Blender) blendOne(prior Table, source string, evidence map[string]SourceEvidence) SourceWeight {
	initial := b.Prior(prior, source)
	row := SourceWeight{
		Source:        source,
		InitialWeight: initial,
		FinalWeight:   initial,
	}

	ev, ok := evidence[source]
	if !ok {
		return row
	}

	observed := Clamp01(ev.ObservedScore)
	row.ObservedScore = &observed
	row.ArticleCount = ev.ArticleCount

	if ev.ArticleCount >= b.minSource {
		row.FinalWeight = BlendWeight(b.alpha, initial, observed)
	}

	return row
}
