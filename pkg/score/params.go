package score

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

const (
	// DefaultAlpha is the share of trust kept in the prior when blending.
	DefaultAlpha = 0.7

	// DefaultMinArticlesSource is the evidence volume a source needs in one
	// batch before its weight moves at all.
	DefaultMinArticlesSource = 3

	// DefaultMinArticlesAuthor is the sample count an author needs to get a
	// credibility score of their own.
	DefaultMinArticlesAuthor = 3

	// DefaultNeutralAuthorWeight weights articles of authors below the
	// minimum sample count.
	DefaultNeutralAuthorWeight = 0.5

	// DefaultPrior is the prior of a source with no history and no entry in
	// the static prior table.
	DefaultPrior = 0.5
)

// Params carries every tunable of the model. The zero value is not usable,
// start from DefaultParams.
type Params struct {
	Alpha               float64
	MinArticlesSource   int
	MinArticlesAuthor   int
	NeutralAuthorWeight float64
	DefaultPrior        float64
	Labels              LabelScoreMap
	Priors              map[string]float64
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	return Params{
		Alpha:               DefaultAlpha,
		MinArticlesSource:   DefaultMinArticlesSource,
		MinArticlesAuthor:   DefaultMinArticlesAuthor,
		NeutralAuthorWeight: DefaultNeutralAuthorWeight,
		DefaultPrior:        DefaultPrior,
		Labels:              DefaultLabelScores(),
		Priors:              DefaultStaticPriors(),
	}
}

// Validate reports every out-of-range parameter at once.
func (p Params) Validate() error {
	var errs *multierror.Error

	if !InRange(p.Alpha, 0, 1) {
		errs = multierror.Append(errs, fmt.Errorf("alpha %v outside [0, 1]", p.Alpha))
	}
	if p.MinArticlesSource < 1 {
		errs = multierror.Append(errs, fmt.Errorf("minimum source articles must be at least 1, got %d", p.MinArticlesSource))
	}
	if p.MinArticlesAuthor < 1 {
		errs = multierror.Append(errs, fmt.Errorf("minimum author articles must be at least 1, got %d", p.MinArticlesAuthor))
	}
	if !InRange(p.NeutralAuthorWeight, 0, 1) {
		errs = multierror.Append(errs, fmt.Errorf("neutral author weight %v outside [0, 1]", p.NeutralAuthorWeight))
	}
	if !InRange(p.DefaultPrior, 0, 1) {
		errs = multierror.Append(errs, fmt.Errorf("default prior %v outside [0, 1]", p.DefaultPrior))
	}
	if err := p.Labels.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}

	return errs.ErrorOrNil()
}
