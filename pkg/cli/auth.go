package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"
	"github.com/zalando/go-keyring"
)

const (
	dsnFileName    = "postgres_dsn"
	keyringService = "credscore"
	keyringUser    = "postgres_dsn"
	secretFileMode = 0600
)

var (
	dsnFlag = &cli.StringFlag{
		Name:  "dsn",
		Usage: "Postgres connection string (reads stdin when set to -)",
	}

	clearFlag = &cli.BoolFlag{
		Name:  "clear",
		Usage: "Remove the saved connection string",
	}

	authCmd = &cli.Command{
		Name:            "auth",
		HideHelpCommand: true,
		Usage:           "Save the postgres connection string to the OS keychain",
		Flags:           []cli.Flag{dsnFlag, clearFlag},
		Action:          cmdAuth,
	}
)

func cmdAuth(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	if cmd.Bool(clearFlag.Name) {
		if err := deleteDSN(cfg.ConfigDir); err != nil {
			return fmt.Errorf("removing connection string: %w", err)
		}
		fmt.Fprintln(cmd.Root().Writer, "Connection string removed")
		return nil
	}

	dsn := cmd.String(dsnFlag.Name)
	if dsn == "-" {
		line, err := bufio.NewReader(cmd.Root().Reader).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading connection string: %w", err)
		}
		dsn = line
	}
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return errors.New("connection string required, use --dsn")
	}

	if err := saveDSN(cfg.ConfigDir, dsn); err != nil {
		return fmt.Errorf("saving connection string: %w", err)
	}

	fmt.Fprintln(cmd.Root().Writer, "Connection string saved")
	return nil
}

func saveDSN(dir, dsn string) error {
	if err := keyring.Set(keyringService, keyringUser, dsn); err != nil {
		slog.Warn("keychain unavailable, falling back to file", "error", err)
		return saveDSNFile(dir, dsn)
	}

	// clean up the file fallback if it exists
	os.Remove(filepath.Join(dir, dsnFileName))

	return nil
}

func getDSN(dir string) (string, error) {
	dsn, err := keyring.Get(keyringService, keyringUser)
	if err == nil && dsn != "" {
		return dsn, nil
	}

	dsn, err = getDSNFile(dir)
	if err != nil {
		return "", err
	}

	// migrate to keychain
	if migrateErr := keyring.Set(keyringService, keyringUser, dsn); migrateErr == nil {
		slog.Info("migrated connection string from file to OS keychain")
		os.Remove(filepath.Join(dir, dsnFileName))
	}

	return dsn, nil
}

func deleteDSN(dir string) error {
	if err := keyring.Delete(keyringService, keyringUser); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		slog.Debug("keychain delete failed", "error", err)
	}
	if err := os.Remove(filepath.Join(dir, dsnFileName)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func saveDSNFile(dir, dsn string) error {
	return os.WriteFile(filepath.Join(dir, dsnFileName), []byte(dsn), secretFileMode)
}

func getDSNFile(dir string) (string, error) {
	path := filepath.Join(dir, dsnFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading connection string file %s: %w", path, err)
	}
	return strings.TrimSpace(string(b)), nil
}
