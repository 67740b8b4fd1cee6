package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

const logDirMode = 0700

// Options configures the default logger.
type Options struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup installs the default logger: CLI output on stderr and, when File is
// set, plain text records in a size-rotated file. The returned closer
// flushes and closes the file.
func Setup(o Options) (io.Closer, error) {
	level := ParseLogLevel(o.Level)
	cli := NewCLIHandler(os.Stderr, level)

	if o.File == "" {
		slog.SetDefault(slog.New(cli))
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(o.File), logDirMode); err != nil {
		return nil, err
	}

	rotator := &lumberjack.Logger{
		Filename:   o.File,
		MaxSize:    o.MaxSizeMB,
		MaxBackups: o.MaxBackups,
		Compress:   true,
	}
	file := slog.NewTextHandler(rotator, &slog.HandlerOptions{Level: level})

	slog.SetDefault(slog.New(NewTeeHandler(cli, file)))
	return rotator, nil
}

// TeeHandler sends every record to all of its handlers.
type TeeHandler struct {
	handlers []slog.Handler
}

func NewTeeHandler(handlers ...slog.Handler) *TeeHandler {
	return &TeeHandler{handlers: handlers}
}

func (t *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t *TeeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t.handlers {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		hs[i] = h.WithAttrs(attrs)
	}
	return NewTeeHandler(hs...)
}

func (t *TeeHandler) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		hs[i] = h.WithGroup(name)
	}
	return NewTeeHandler(hs...)
}
