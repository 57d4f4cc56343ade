package assess

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/paperlens/internal/model"
)

// Progress is reported after each paper is assessed.
type Progress struct {
	Done  int
	Total int
	Row   model.PaperAssessment
}

// Run assesses papers with at most workers concurrent engine calls. Rows keep
// the input order. progress, if set, is called serially after every paper.
// The only error is context cancellation.
func Run(ctx context.Context, engine Engine, papers []model.Paper, workers int, progress func(Progress)) (model.Batch, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	batch := make(model.Batch, len(papers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	done := 0
	for i, paper := range papers {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := engine.Assess(gctx, paper)
			row := model.PaperAssessment{
				Title:     paper.Title,
				URL:       paper.URL,
				Published: paper.Published,
				Fallback:  res.Fallback,
				Scores:    res.Scores,
			}
			batch[i] = row

			mu.Lock()
			defer mu.Unlock()
			done++
			if progress != nil {
				progress(Progress{Done: done, Total: len(papers), Row: row})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return batch, nil
}
