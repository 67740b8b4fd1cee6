package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/mchmarny/credscore/pkg/cycle"
	"github.com/mchmarny/credscore/pkg/score"
	"github.com/urfave/cli/v3"
)

const (
	queryResultLimitDefault = 0
)

var (
	queryLimitFlag = &cli.IntFlag{
		Name:  "limit",
		Usage: "Limits number of result returned (0 for all)",
		Value: queryResultLimitDefault,
	}

	sourceFlag = &cli.StringFlag{
		Name:     "source",
		Usage:    "Source (media outlet) name",
		Required: true,
	}

	scoreFlag = &cli.FloatSliceFlag{
		Name:  "score",
		Usage: "Additional score in [0, 1] from another model (repeatable)",
	}

	weightsCmd = &cli.Command{
		Name:            "weights",
		HideHelpCommand: true,
		Usage:           "List current source weights, highest first",
		Flags:           []cli.Flag{queryLimitFlag},
		Action:          cmdWeights,
	}

	authorsCmd = &cli.Command{
		Name:            "authors",
		HideHelpCommand: true,
		Usage:           "Rank authors of the given feedback files without saving anything",
		ArgsUsage:       "FILE [FILE...]",
		Flags:           []cli.Flag{queryLimitFlag},
		Action:          cmdAuthors,
	}

	historyCmd = &cli.Command{
		Name:            "history",
		HideHelpCommand: true,
		Usage:           "List stored snapshots, oldest first",
		Action:          cmdHistory,
	}

	estimateCmd = &cli.Command{
		Name:            "estimate",
		HideHelpCommand: true,
		Usage:           "Combine the static prior, current weight and extra scores of a source",
		Flags:           []cli.Flag{sourceFlag, scoreFlag},
		Action:          cmdEstimate,
	}
)

func limit[T any](list []T, n int) []T {
	if n > 0 && len(list) > n {
		return list[:n]
	}
	return list
}

func cmdWeights(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	s, err := cfg.openStore(ctx)
	if err != nil {
		return err
	}

	return encode(cmd, limit(s.CurrentWeights(), cmd.Int(queryLimitFlag.Name)))
}

func cmdAuthors(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return errors.New("at least one feedback file required")
	}

	batches, err := cycle.ReadBatches(ctx, paths)
	if err != nil {
		return fmt.Errorf("reading feedback: %w", err)
	}

	var articles []score.Article
	for _, b := range batches {
		articles = append(articles, b.Articles...)
	}

	agg := score.NewAggregator(cfg.Config.Params()).Aggregate(articles)
	return encode(cmd, limit(agg.Authors, cmd.Int(queryLimitFlag.Name)))
}

func cmdHistory(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	h, err := cfg.openHistory(ctx)
	if err != nil {
		return err
	}

	list, err := h.List(ctx)
	if err != nil {
		return err
	}

	return encode(cmd, list)
}

// Estimate is the combined confidence of a source.
type Estimate struct {
	Source     string    `json:"source" yaml:"source"`
	Prior      float64   `json:"prior" yaml:"prior"`
	Weight     *float64  `json:"weight,omitempty" yaml:"weight,omitempty"`
	Scores     []float64 `json:"scores,omitempty" yaml:"scores,omitempty"`
	Confidence float64   `json:"confidence" yaml:"confidence"`
}

func cmdEstimate(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	p := cfg.Config.Params()

	source := score.NormalizeKey(cmd.String(sourceFlag.Name))
	if source == "" {
		return errors.New("source required")
	}

	s, err := cfg.openStore(ctx)
	if err != nil {
		return err
	}

	lookup := score.NewPriorLookup(p.Priors, p.DefaultPrior)
	prior, err := lookup.ScoreArticle(ctx, map[string]string{"source": source})
	if err != nil {
		return err
	}

	est := &Estimate{Source: source, Prior: prior}
	inputs := []float64{prior}

	if row, ok := s.Table()[source]; ok {
		w := row.FinalWeight
		est.Weight = &w
		inputs = append(inputs, w)
	}

	for _, v := range cmd.FloatSlice(scoreFlag.Name) {
		v = score.Clamp01(v)
		est.Scores = append(est.Scores, v)
		inputs = append(inputs, v)
	}

	if est.Confidence, err = score.Ensemble(inputs, nil); err != nil {
		return err
	}

	return encode(cmd, est)
}
