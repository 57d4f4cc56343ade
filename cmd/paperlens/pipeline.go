package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/verte-zerg/paperlens/internal/arxiv"
	"github.com/verte-zerg/paperlens/internal/assess"
	"github.com/verte-zerg/paperlens/internal/model"
	"github.com/verte-zerg/paperlens/internal/store"
	"github.com/verte-zerg/paperlens/internal/tui"
)

var errNoPapers = errors.New("no papers fetched")

// pipeline fetches papers, assesses them and stores the run. Progress is
// reported through notify as tui messages, so the same run can drive the
// progress view or a headless logger.
type pipeline struct {
	fetch  model.FetchConfig
	assess model.AssessConfig
	store  *store.Store
	logger *zap.Logger

	// Overridable in tests.
	source source
	engine assess.Engine
}

type source interface {
	Fetch(ctx context.Context, count int, topic string) ([]model.Paper, error)
}

func (p pipeline) run(ctx context.Context, notify func(tea.Msg)) (model.Run, model.Batch, error) {
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	started := time.Now()

	notify(tui.PhaseMsg{Phase: tui.PhaseFetching})
	src := p.source
	if src == nil {
		src = arxiv.NewClient(
			arxiv.WithLogger(p.logger),
			arxiv.WithRate(p.fetch.Rate),
			arxiv.WithRetries(p.fetch.Retries),
		)
	}
	papers, err := src.Fetch(ctx, p.fetch.Count, p.fetch.Topic)
	if err != nil {
		return model.Run{}, nil, fmt.Errorf("failed to fetch papers: %w", err)
	}
	if len(papers) == 0 {
		return model.Run{}, nil, errNoPapers
	}
	p.logger.Info("fetched papers",
		zap.Int("requested", p.fetch.Count),
		zap.Int("fetched", len(papers)),
		zap.String("topic", p.fetch.Topic))

	engine := p.engine
	if engine == nil {
		engine, err = assess.NewEngine(ctx, p.assess, p.logger)
		if err != nil {
			return model.Run{}, nil, err
		}
	}

	notify(tui.PhaseMsg{Phase: tui.PhaseAssessing, Total: len(papers)})
	batch, err := assess.Run(ctx, engine, papers, p.assess.Workers, func(pr assess.Progress) {
		notify(tui.ProgressMsg(pr))
	})
	if err != nil {
		return model.Run{}, nil, err
	}
	fallback := 0
	for _, row := range batch {
		if row.Fallback {
			fallback++
		}
	}
	p.logger.Info("assessed papers",
		zap.Int("papers", len(batch)),
		zap.Int("fallback", fallback),
		zap.Duration("elapsed", time.Since(started)))

	notify(tui.PhaseMsg{Phase: tui.PhaseSaving})
	run, err := p.store.SaveRun(ctx, model.Run{
		StartedAt:  started,
		Topic:      p.fetch.Topic,
		Requested:  p.fetch.Count,
		Provider:   p.assess.Provider,
		Categories: p.assess.Categories,
	}, batch)
	if err != nil {
		return model.Run{}, nil, fmt.Errorf("failed to save run: %w", err)
	}
	return run, batch, nil
}
