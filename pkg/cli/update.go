package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mchmarny/credscore/pkg/cycle"
	"github.com/mchmarny/credscore/pkg/data"
	"github.com/urfave/cli/v3"
)

var (
	dryRunFlag = &cli.BoolFlag{
		Name:  "dry-run",
		Usage: "Aggregate and blend without saving a snapshot",
	}

	initCmd = &cli.Command{
		Name:            "init",
		HideHelpCommand: true,
		Usage:           "Create the storage and record the seed as the first snapshot",
		Action:          cmdInit,
	}

	updateCmd = &cli.Command{
		Name:            "update",
		HideHelpCommand: true,
		Usage:           "Apply feedback files (.csv or .xlsx) in the given order",
		ArgsUsage:       "FILE [FILE...]",
		Flags:           []cli.Flag{dryRunFlag},
		Action:          cmdUpdate,
	}

	rollbackCmd = &cli.Command{
		Name:            "rollback",
		HideHelpCommand: true,
		Usage:           "Make an older snapshot current again (saved as a new snapshot)",
		ArgsUsage:       "VERSION",
		Action:          cmdRollback,
	}
)

func cmdInit(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	s, err := cfg.openStore(ctx)
	if err != nil {
		return err
	}

	if s.Version() != 0 {
		slog.Info("history already initialized", "version", s.Version())
		return encode(cmd, s.CurrentWeights())
	}

	snap, err := s.Persist(ctx)
	if err != nil {
		return err
	}

	slog.Info("seed recorded", "version", snap.Label, "sources", len(snap.Weights))
	return encode(cmd, snap.Info())
}

func cmdUpdate(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return errors.New("at least one feedback file required")
	}

	batches, err := cycle.ReadBatches(ctx, paths)
	if err != nil {
		return fmt.Errorf("reading feedback: %w", err)
	}

	s, err := cfg.openStore(ctx)
	if err != nil {
		return err
	}

	c, err := cycle.New(s, cfg.Config.Params())
	if err != nil {
		return err
	}

	if !cmd.Bool(dryRunFlag.Name) {
		results, err := c.RunAll(ctx, batches)
		if err != nil {
			return err
		}
		return encode(cmd, results)
	}

	results := make([]*cycle.Result, 0, len(batches))
	for _, b := range batches {
		res, err := c.Preview(ctx, b)
		if err != nil {
			if errors.Is(err, data.ErrMalformedEvidence) {
				slog.Info("batch skipped", "batch", b.Name, "reason", err)
				continue
			}
			return err
		}
		results = append(results, res)
	}

	return encode(cmd, results)
}

func cmdRollback(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	if cmd.NArg() != 1 {
		return errors.New("snapshot version required")
	}

	v, err := data.ParseVersion(cmd.Args().First())
	if err != nil {
		return err
	}

	s, err := cfg.openStore(ctx)
	if err != nil {
		return err
	}

	snap, err := s.Rollback(ctx, v)
	if err != nil {
		return err
	}

	return encode(cmd, snap.Info())
}
