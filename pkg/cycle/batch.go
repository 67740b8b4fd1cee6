package cycle

import (
	"context"
	"path/filepath"

	"github.com/mchmarny/credscore/pkg/data"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentReads = 4

// ReadBatches loads feedback files concurrently. The result keeps the order
// of paths so batches can be applied in the order they were given.
func ReadBatches(ctx context.Context, paths []string) ([]Batch, error) {
	list := make([]Batch, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)

	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			articles, err := data.ReadFeedback(p)
			if err != nil {
				return err
			}
			list[i] = Batch{Name: filepath.Base(p), Articles: articles}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return list, nil
}
