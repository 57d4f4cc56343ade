package assess

import (
	"context"
	"math/rand"
	"sync"

	"github.com/verte-zerg/paperlens/internal/model"
)

// Mock score ranges, inclusive.
const (
	MockMinConfidence = 60
	MockMaxConfidence = 100
	MockMaxIssues     = 3
)

// MockEngine produces random scores. It is the offline provider and the
// source of default scores for other engines.
type MockEngine struct {
	categories []string

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMockEngine returns a MockEngine with a fixed seed.
func NewMockEngine(categories []string, seed int64) *MockEngine {
	return &MockEngine{
		categories: append([]string(nil), categories...),
		rnd:        rand.New(rand.NewSource(seed)),
	}
}

// Assess returns random scores for every category.
func (m *MockEngine) Assess(_ context.Context, _ model.Paper) Result {
	return Result{Scores: m.Scores(m.categories)}
}

// Scores draws one score per category.
func (m *MockEngine) Scores(categories []string) map[string]model.Score {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]model.Score, len(categories))
	for _, c := range categories {
		out[c] = model.Score{
			Confidence: MockMinConfidence + m.rnd.Intn(MockMaxConfidence-MockMinConfidence+1),
			Issues:     m.rnd.Intn(MockMaxIssues + 1),
		}
	}
	return out
}
