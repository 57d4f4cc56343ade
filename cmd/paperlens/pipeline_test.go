package main

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/paperlens/internal/assess"
	"github.com/verte-zerg/paperlens/internal/model"
	"github.com/verte-zerg/paperlens/internal/store"
	"github.com/verte-zerg/paperlens/internal/tui"
)

type fakeSource struct {
	papers []model.Paper
	err    error
}

func (f fakeSource) Fetch(_ context.Context, _ int, _ string) ([]model.Paper, error) {
	return f.papers, f.err
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "paperlens.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func testPipeline(t *testing.T, src source) pipeline {
	cats := []string{"A", "B"}
	return pipeline{
		fetch:  model.FetchConfig{Count: 3, Topic: "graphs"},
		assess: model.AssessConfig{Provider: assess.ProviderMock, Workers: 2, Categories: cats},
		store:  openTestStore(t),
		source: src,
		engine: assess.NewMockEngine(cats, 1),
	}
}

func TestPipelineStoresRun(t *testing.T) {
	papers := []model.Paper{
		{Title: "one", Published: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{Title: "two", Published: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)},
		{Title: "three", Published: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)},
	}
	p := testPipeline(t, fakeSource{papers: papers})

	var mu sync.Mutex
	var msgs []tea.Msg
	run, batch, err := p.run(context.Background(), func(msg tea.Msg) {
		mu.Lock()
		defer mu.Unlock()
		msgs = append(msgs, msg)
	})
	if err != nil {
		t.Fatalf("run pipeline: %v", err)
	}
	if run.ID == "" || run.Fetched != 3 || len(batch) != 3 {
		t.Fatalf("unexpected run %+v with %d rows", run, len(batch))
	}
	if batch[1].Title != "two" {
		t.Fatalf("expected fetch order preserved, got %q", batch[1].Title)
	}

	storedRun, stored, err := p.store.LoadBatch(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("load batch: %v", err)
	}
	if len(stored) != 3 || storedRun.Topic != "graphs" || len(storedRun.Categories) != 2 {
		t.Fatalf("unexpected stored run %+v with %d rows", storedRun, len(stored))
	}

	if first, ok := msgs[0].(tui.PhaseMsg); !ok || first.Phase != tui.PhaseFetching {
		t.Fatalf("expected fetching phase first, got %#v", msgs[0])
	}
	if last, ok := msgs[len(msgs)-1].(tui.PhaseMsg); !ok || last.Phase != tui.PhaseSaving {
		t.Fatalf("expected saving phase last, got %#v", msgs[len(msgs)-1])
	}
	progress := 0
	for _, msg := range msgs {
		if _, ok := msg.(tui.ProgressMsg); ok {
			progress++
		}
	}
	if progress != 3 {
		t.Fatalf("expected 3 progress messages, got %d", progress)
	}
}

func TestPipelineNoPapers(t *testing.T) {
	p := testPipeline(t, fakeSource{})
	_, _, err := p.run(context.Background(), func(tea.Msg) {})
	if !errors.Is(err, errNoPapers) {
		t.Fatalf("expected errNoPapers, got %v", err)
	}
	if _, err := p.store.LatestRun(context.Background()); !errors.Is(err, store.ErrNoRuns) {
		t.Fatalf("expected nothing stored, got %v", err)
	}
}

func TestPipelineFetchError(t *testing.T) {
	boom := errors.New("boom")
	p := testPipeline(t, fakeSource{err: boom})
	_, _, err := p.run(context.Background(), func(tea.Msg) {})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped fetch error, got %v", err)
	}
}
