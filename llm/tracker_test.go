package llm

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUsageTracker_Record(t *testing.T) {
	tr := NewUsageTracker()

	tr.Record("agent-1", Usage{InputTokens: 100, OutputTokens: 20, Cost: 0.01})
	tr.Record("agent-1", Usage{InputTokens: 50, OutputTokens: 10, CachedTokens: 40, Cost: 0.005})
	tr.Record("agent-2", Usage{InputTokens: 30, OutputTokens: 5})

	s1 := tr.ByAgent("agent-1")
	assert.Equal(t, 150, s1.Usage.InputTokens)
	assert.Equal(t, 30, s1.Usage.OutputTokens)
	assert.Equal(t, 40, s1.Usage.CachedTokens)
	assert.InDelta(t, 0.015, s1.Usage.Cost, 1e-9)
	assert.Equal(t, 2, s1.Requests)
	assert.Equal(t, 0, s1.FailedRequests)
	assert.Equal(t, Usage{InputTokens: 50, OutputTokens: 10, CachedTokens: 40, Cost: 0.005}, s1.LastRequest)

	total := tr.Total()
	assert.Equal(t, 180, total.InputTokens)
	assert.Equal(t, 35, total.OutputTokens)
}

func TestUsageTracker_RecordFailure(t *testing.T) {
	tr := NewUsageTracker()
	tr.RecordFailure("agent-1")
	tr.RecordFailure("agent-1")

	s := tr.ByAgent("agent-1")
	assert.Equal(t, 2, s.Requests)
	assert.Equal(t, 2, s.FailedRequests)
	assert.Equal(t, Usage{}, s.Usage)
}

func TestUsageTracker_UnknownAgent(t *testing.T) {
	tr := NewUsageTracker()
	assert.Equal(t, Stats{}, tr.ByAgent("nope"))
}

func TestUsageTracker_Agents(t *testing.T) {
	tr := NewUsageTracker()
	tr.Record("a", Usage{InputTokens: 1})
	tr.RecordFailure("b")

	agents := tr.Agents()
	assert.ElementsMatch(t, []string{"a", "b"}, agents)
}

func TestUsageTracker_Reset(t *testing.T) {
	tr := NewUsageTracker()
	tr.Record("a", Usage{InputTokens: 10})
	tr.Reset()

	assert.Equal(t, Usage{}, tr.Total())
	assert.Empty(t, tr.Agents())
}

func TestUsageTracker_Concurrent(t *testing.T) {
	tr := NewUsageTracker()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("agent-%d", n%3)
			for j := 0; j < 100; j++ {
				tr.Record(id, Usage{InputTokens: 1, OutputTokens: 1})
			}
		}(i)
	}
	wg.Wait()

	total := tr.Total()
	assert.Equal(t, 1000, total.InputTokens)
	assert.Equal(t, 1000, total.OutputTokens)
}

func TestUsage_Add(t *testing.T) {
	a := Usage{InputTokens: 1, OutputTokens: 2, CachedTokens: 3, CacheCreationTokens: 4, Cost: 0.5}
	b := Usage{InputTokens: 10, OutputTokens: 20, CachedTokens: 30, CacheCreationTokens: 40, Cost: 1.5}

	sum := a.Add(b)
	assert.Equal(t, 11, sum.InputTokens)
	assert.Equal(t, 22, sum.OutputTokens)
	assert.Equal(t, 33, sum.CachedTokens)
	assert.Equal(t, 44, sum.CacheCreationTokens)
	assert.InDelta(t, 2.0, sum.Cost, 1e-9)
}
