package score

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Fact-check verdicts understood by the default label map.
const (
	LabelTrue        = "사실"
	LabelMostlyTrue  = "대체로 사실"
	LabelHalfTrue    = "절반의 사실"
	LabelMostlyFalse = "대체로 사실 아님"
	LabelFalse       = "사실 아님"
)

// LabelScoreMap maps a closed set of verdict labels to a credibility
// contribution in [-1, 1].
type LabelScoreMap map[string]float64

// DefaultLabelScores returns the five-level verdict scale.
func DefaultLabelScores() LabelScoreMap {
	return LabelScoreMap{
		LabelTrue:        1.0,
		LabelMostlyTrue:  0.5,
		LabelHalfTrue:    0.0,
		LabelMostlyFalse: -0.5,
		LabelFalse:       -1.0,
	}
}

// NormalizeKey trims and NFC-normalizes an identifier so that labels typed
// on different platforms (NFD on macOS, NFC elsewhere) compare equal.
func NormalizeKey(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Normalize returns a copy keyed by normalized labels.
func (m LabelScoreMap) Normalize() LabelScoreMap {
	out := make(LabelScoreMap, len(m))
	for k, v := range m {
		out[NormalizeKey(k)] = v
	}
	return out
}

// Score returns the contribution of label and whether the label is known.
func (m LabelScoreMap) Score(label string) (float64, bool) {
	v, ok := m[NormalizeKey(label)]
	return v, ok
}

// Labels returns the known labels, highest score first.
func (m LabelScoreMap) Labels() []string {
	list := make([]string, 0, len(m))
	for k := range m {
		list = append(list, k)
	}
	sort.Slice(list, func(i, j int) bool {
		if m[list[i]] != m[list[j]] {
			return m[list[i]] > m[list[j]]
		}
		return list[i] < list[j]
	})
	return list
}

// Validate checks that the map is non-empty and every score is in [-1, 1].
func (m LabelScoreMap) Validate() error {
	if len(m) == 0 {
		return fmt.Errorf("label map is empty")
	}
	for _, k := range m.Labels() {
		if NormalizeKey(k) == "" {
			return fmt.Errorf("label map contains an empty label")
		}
		if v := m[k]; !InRange(v, -1, 1) {
			return fmt.Errorf("label %q score %v outside [-1, 1]", k, v)
		}
	}
	return nil
}
