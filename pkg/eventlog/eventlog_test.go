// Copyright (C) 2025 MetaMorph AI
// Tests for the bounded event log.

package eventlog

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Append / Latest Tests
// =============================================================================

func TestLog_LatestOnEmptyLog(t *testing.T) {
	log := New(10)

	_, ok := log.Latest()
	assert.False(t, ok)
	assert.Equal(t, 0, log.Len())
}

func TestLog_AppendThenLatestRoundTrip(t *testing.T) {
	log := New(10)

	before := time.Now()
	appended := log.Append("HEALING", "m", TypeInfo)
	after := time.Now()

	latest, ok := log.Latest()
	require.True(t, ok)
	assert.Equal(t, appended, latest)
	assert.Equal(t, "m", latest.Message)
	assert.Equal(t, TypeInfo, latest.Type)
	assert.Equal(t, "HEALING", latest.Status)
	assert.NotEmpty(t, latest.ID)

	// Timestamp is assigned server-side, within the call window.
	assert.False(t, latest.Timestamp.Before(before))
	assert.False(t, latest.Timestamp.After(after))
}

func TestLog_EmptyTypeDefaultsToInfo(t *testing.T) {
	log := New(5)
	event := log.Append("", "no type given", "")
	assert.Equal(t, TypeInfo, event.Type)
}

func TestLog_TimestampsNonDecreasing(t *testing.T) {
	log := New(100)

	var prev time.Time
	for i := 0; i < 100; i++ {
		event := log.Append("", fmt.Sprintf("event %d", i), TypeInfo)
		assert.False(t, event.Timestamp.Before(prev))
		prev = event.Timestamp
	}
}

// =============================================================================
// Eviction Tests
// =============================================================================

func TestLog_EvictsOldestFirstBeyondCapacity(t *testing.T) {
	const capacity = 50
	const total = 120
	log := New(capacity)

	for i := 0; i < total; i++ {
		log.Append("", fmt.Sprintf("event %d", i), TypeInfo)
	}

	assert.Equal(t, capacity, log.Len())

	latest, ok := log.Latest()
	require.True(t, ok)
	assert.Equal(t, fmt.Sprintf("event %d", total-1), latest.Message)

	// The survivors are exactly the last `capacity` appends, in order.
	recent := log.Recent(0)
	require.Len(t, recent, capacity)
	for i, event := range recent {
		assert.Equal(t, fmt.Sprintf("event %d", total-capacity+i), event.Message)
	}
}

func TestLog_NonPositiveCapacityUsesDefault(t *testing.T) {
	log := New(0)
	for i := 0; i < DefaultCapacity+10; i++ {
		log.Append("", "x", TypeInfo)
	}
	assert.Equal(t, DefaultCapacity, log.Len())
}

// =============================================================================
// Recent Tests
// =============================================================================

func TestLog_RecentReturnsCopy(t *testing.T) {
	log := New(10)
	log.Append("", "original", TypeInfo)

	recent := log.Recent(1)
	require.Len(t, recent, 1)
	recent[0].Message = "mutated"

	latest, ok := log.Latest()
	require.True(t, ok)
	assert.Equal(t, "original", latest.Message)
}

func TestLog_RecentLimitsAndOrder(t *testing.T) {
	log := New(10)
	for i := 0; i < 5; i++ {
		log.Append("", fmt.Sprintf("event %d", i), TypeInfo)
	}

	recent := log.Recent(3)
	require.Len(t, recent, 3)
	assert.Equal(t, "event 2", recent[0].Message)
	assert.Equal(t, "event 4", recent[2].Message)

	// Asking for more than held returns everything.
	assert.Len(t, log.Recent(99), 5)
}

// =============================================================================
// Concurrency Tests
// =============================================================================

func TestLog_ConcurrentAppendsNeverExceedCapacity(t *testing.T) {
	const capacity = 50
	log := New(capacity)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				log.Append("", fmt.Sprintf("g%d-%d", g, i), TypeInfo)
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, capacity, log.Len())
	_, ok := log.Latest()
	assert.True(t, ok)
}

// =============================================================================
// Type Parsing Tests
// =============================================================================

func TestParseType(t *testing.T) {
	assert.Equal(t, TypeWarning, ParseType("warning"))
	assert.Equal(t, TypeError, ParseType("ERROR"))
	assert.Equal(t, TypeSuccess, ParseType("Success"))
	assert.Equal(t, TypeInfo, ParseType("info"))
	assert.Equal(t, TypeInfo, ParseType(""))
	assert.Equal(t, TypeInfo, ParseType("catastrophe"))
}
