package assess

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/verte-zerg/paperlens/internal/model"
)

type countingEngine struct {
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (e *countingEngine) Assess(_ context.Context, paper model.Paper) Result {
	n := e.active.Add(1)
	for {
		prev := e.maxSeen.Load()
		if n <= prev || e.maxSeen.CompareAndSwap(prev, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	e.active.Add(-1)
	return Result{
		Scores:   map[string]model.Score{"A": {Confidence: 80, Issues: len(paper.Title)}},
		Fallback: paper.Title == "fb",
	}
}

func testPapers(n int) []model.Paper {
	papers := make([]model.Paper, n)
	for i := range papers {
		papers[i] = model.Paper{
			Title:     fmt.Sprintf("paper-%02d", i),
			URL:       fmt.Sprintf("https://arxiv.org/pdf/%d", i),
			Published: time.Date(2024, time.January, 1+i, 0, 0, 0, 0, time.UTC),
		}
	}
	return papers
}

func TestRunKeepsOrderAndBoundsWorkers(t *testing.T) {
	engine := &countingEngine{}
	papers := testPapers(12)
	papers[3].Title = "fb"

	var updates []Progress
	batch, err := Run(context.Background(), engine, papers, 3, func(p Progress) {
		updates = append(updates, p)
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(batch) != len(papers) {
		t.Fatalf("expected %d rows, got %d", len(papers), len(batch))
	}
	for i, row := range batch {
		if row.Title != papers[i].Title || row.URL != papers[i].URL || !row.Published.Equal(papers[i].Published) {
			t.Fatalf("row %d out of order: %+v", i, row)
		}
	}
	if !batch[3].Fallback || batch[4].Fallback {
		t.Fatalf("fallback flag not carried to the row")
	}
	if got := engine.maxSeen.Load(); got > 3 {
		t.Fatalf("expected at most 3 concurrent calls, saw %d", got)
	}
	if len(updates) != len(papers) {
		t.Fatalf("expected %d progress updates, got %d", len(papers), len(updates))
	}
	for i, u := range updates {
		if u.Done != i+1 || u.Total != len(papers) {
			t.Fatalf("unexpected progress %d: %+v", i, u)
		}
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, NewMockEngine([]string{"A"}, 1), testPapers(5), 2, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMockEngineRanges(t *testing.T) {
	engine := NewMockEngine([]string{"A", "B"}, 42)
	for i := 0; i < 200; i++ {
		res := engine.Assess(context.Background(), model.Paper{})
		if res.Fallback {
			t.Fatalf("mock results are genuine")
		}
		for c, s := range res.Scores {
			if s.Confidence < MockMinConfidence || s.Confidence > MockMaxConfidence {
				t.Fatalf("%s confidence out of range: %d", c, s.Confidence)
			}
			if s.Issues < 0 || s.Issues > MockMaxIssues {
				t.Fatalf("%s issues out of range: %d", c, s.Issues)
			}
		}
	}
	a := NewMockEngine([]string{"A"}, 9).Scores([]string{"A"})
	b := NewMockEngine([]string{"A"}, 9).Scores([]string{"A"})
	if a["A"] != b["A"] {
		t.Fatalf("expected identical scores for equal seeds")
	}
}
