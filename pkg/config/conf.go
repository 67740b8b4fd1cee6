package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/hashicorp/go-multierror"
	"github.com/mchmarny/credscore/pkg/data"
	"github.com/mchmarny/credscore/pkg/score"
	"gopkg.in/yaml.v3"
)

const (
	configFileName = "config.yaml"
	historyDirName = "history"
	seedFileName   = "seed.csv"
	dirMode        = 0700
	fileMode       = 0600

	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"

	defaultLogMaxSizeMB  = 10
	defaultLogMaxBackups = 3
)

// Config represents app config object. Every field can be overridden with
// the CREDSCORE_* environment variable named in its env tag.
type Config struct {
	Scoring Scoring `yaml:"scoring"`
	Storage Storage `yaml:"storage"`
	Log     Log     `yaml:"log"`
}

// Scoring holds the model parameters.
type Scoring struct {
	Alpha               float64            `yaml:"alpha" env:"CREDSCORE_ALPHA"`
	MinArticlesSource   int                `yaml:"minArticlesSource" env:"CREDSCORE_MIN_ARTICLES_SOURCE"`
	MinArticlesAuthor   int                `yaml:"minArticlesAuthor" env:"CREDSCORE_MIN_ARTICLES_AUTHOR"`
	NeutralAuthorWeight float64            `yaml:"neutralAuthorWeight" env:"CREDSCORE_NEUTRAL_AUTHOR_WEIGHT"`
	DefaultPrior        float64            `yaml:"defaultPrior" env:"CREDSCORE_DEFAULT_PRIOR"`
	Labels              map[string]float64 `yaml:"labels"`
	Priors              map[string]float64 `yaml:"priors"`
}

// Storage selects where snapshots live.
type Storage struct {
	Backend    string `yaml:"backend" env:"CREDSCORE_BACKEND"`
	HistoryDir string `yaml:"historyDir" env:"CREDSCORE_HISTORY_DIR"`
	DB         string `yaml:"db" env:"CREDSCORE_DB"`
	DSN        string `yaml:"dsn,omitempty" env:"CREDSCORE_DSN"`
	Seed       string `yaml:"seed" env:"CREDSCORE_SEED"`
}

// Log configures the optional rotating log file.
type Log struct {
	Level      string `yaml:"level" env:"CREDSCORE_LOG_LEVEL"`
	File       string `yaml:"file,omitempty" env:"CREDSCORE_LOG_FILE"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
}

// Default returns the configuration used when dir has no config file yet.
func Default(dir string) *Config {
	return &Config{
		Scoring: Scoring{
			Alpha:               score.DefaultAlpha,
			MinArticlesSource:   score.DefaultMinArticlesSource,
			MinArticlesAuthor:   score.DefaultMinArticlesAuthor,
			NeutralAuthorWeight: score.DefaultNeutralAuthorWeight,
			DefaultPrior:        score.DefaultPrior,
			Labels:              score.DefaultLabelScores(),
			Priors:              score.DefaultStaticPriors(),
		},
		Storage: Storage{
			Backend:    BackendSQLite,
			HistoryDir: filepath.Join(dir, historyDirName),
			DB:         filepath.Join(dir, data.DataFileName),
			Seed:       filepath.Join(dir, seedFileName),
		},
		Log: Log{
			Level:      "info",
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
		},
	}
}

// Params converts the scoring section into model parameters.
func (c *Config) Params() score.Params {
	p := score.Params{
		Alpha:               c.Scoring.Alpha,
		MinArticlesSource:   c.Scoring.MinArticlesSource,
		MinArticlesAuthor:   c.Scoring.MinArticlesAuthor,
		NeutralAuthorWeight: c.Scoring.NeutralAuthorWeight,
		DefaultPrior:        c.Scoring.DefaultPrior,
		Labels:              score.LabelScoreMap(c.Scoring.Labels),
		Priors:              c.Scoring.Priors,
	}
	if len(p.Labels) == 0 {
		p.Labels = score.DefaultLabelScores()
	}
	if p.Priors == nil {
		p.Priors = map[string]float64{}
	}
	return p
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs *multierror.Error

	if err := c.Params().Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}

	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.HistoryDir == "" {
			errs = multierror.Append(errs, errors.New("storage.historyDir required for the file backend"))
		}
	case BackendSQLite:
		if c.Storage.DB == "" {
			errs = multierror.Append(errs, errors.New("storage.db required for the sqlite backend"))
		}
	case BackendPostgres:
	default:
		errs = multierror.Append(errs, fmt.Errorf("unsupported storage backend %q (want %s, %s or %s)",
			c.Storage.Backend, BackendFile, BackendSQLite, BackendPostgres))
	}

	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 {
		errs = multierror.Append(errs, errors.New("log rotation limits must not be negative"))
	}

	return errs.ErrorOrNil()
}

func Save(dirPath string, c *Config) error {
	if dirPath == "" {
		return errors.New("config directory required")
	}
	if c == nil {
		return errors.New("config required")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	path := filepath.Join(dirPath, configFileName)
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", configFileName, err)
	}
	return nil
}

// ReadOrCreate reads app config from directory or creates a new one, then
// applies environment overrides and validates the result.
func ReadOrCreate(dirPath string) (*Config, error) {
	if dirPath == "" {
		return nil, errors.New("config directory required")
	}

	if err := os.MkdirAll(dirPath, dirMode); err != nil {
		return nil, fmt.Errorf("failed to create dir %s: %w", dirPath, err)
	}

	path := filepath.Join(dirPath, configFileName)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating default config", "path", path)
		if err := Save(dirPath, Default(dirPath)); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	// maps decode by merging, start them empty so the file can remove entries
	c := Default(dirPath)
	c.Scoring.Labels, c.Scoring.Priors = nil, nil
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("error unmarshalling config file %s: %w", path, err)
	}
	if c.Scoring.Labels == nil {
		c.Scoring.Labels = score.DefaultLabelScores()
	}
	if c.Scoring.Priors == nil {
		c.Scoring.Priors = score.DefaultStaticPriors()
	}

	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("error applying environment overrides: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return c, nil
}

// GetOrCreateHomeDir returns the home directory for the current user.
// The create flag is set to true if the directory was created.
func GetOrCreateHomeDir(name string) (path string, created bool, err error) {
	if name == "" {
		return "", false, errors.New("name cannot be empty")
	}

	if !strings.HasPrefix(name, ".") {
		name = "." + name
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("failed to get user home dir: %w", err)
	}

	dir := filepath.Join(home, name)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating dir", "dir", dir)
		if err := os.Mkdir(dir, dirMode); err != nil {
			return "", false, fmt.Errorf("failed to create dir %s: %w", dir, err)
		}
		created = true
	}
	return dir, created, nil
}
