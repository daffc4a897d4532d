// Copyright (C) 2025 MetaMorph AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package eventlog provides the bounded in-memory event log that drives the
// dashboard's polling loop.
//
// # Description
//
// The log is an append-only, capacity-bounded record of healing-pipeline
// state transitions. Appends assign the timestamp server-side and evict
// oldest-first once the capacity is exceeded. Reads return the latest event
// or an explicit empty sentinel.
//
// The log is deliberately not persistent: its lifetime equals the hosting
// process's lifetime, and a restart resets it to empty. Construct one per
// server (or per test) and pass the handle to whatever needs it; there is no
// package-level instance.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Append (including eviction) is a
// single critical section, so readers never observe a partially appended or
// partially evicted state.
package eventlog

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity is the event cap used when New is given a non-positive
// capacity. Matches the dashboard's 50-entry feed.
const DefaultCapacity = 50

// EventType is the severity tag attached to an event.
type EventType string

// Severity tags understood by the dashboard.
const (
	TypeInfo    EventType = "info"
	TypeWarning EventType = "warning"
	TypeError   EventType = "error"
	TypeSuccess EventType = "success"
)

// ParseType normalizes a caller-supplied severity string. Unknown or empty
// values fall back to TypeInfo so the log never rejects an event over its
// tag.
func ParseType(s string) EventType {
	switch EventType(strings.ToLower(s)) {
	case TypeWarning:
		return TypeWarning
	case TypeError:
		return TypeError
	case TypeSuccess:
		return TypeSuccess
	default:
		return TypeInfo
	}
}

// Event is one observable state transition of the healing pipeline.
//
// Events are immutable once appended. Status is an open set of pipeline
// stage tags ("TRIGGERED", "ANALYZING", "HEALING", ...); Timestamp is
// assigned by Append, never by the caller.
type Event struct {
	ID        string    `json:"id"`
	Status    string    `json:"status,omitempty"`
	Message   string    `json:"message"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// Log is a bounded, ordered, append-only event record.
type Log struct {
	mu       sync.Mutex
	events   []Event
	capacity int
}

// New creates a Log holding at most capacity events.
//
// A non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		events:   make([]Event, 0, capacity),
		capacity: capacity,
	}
}

// Append records an event and returns it with ID and Timestamp assigned.
//
// # Description
//
// The timestamp is taken inside the critical section, so timestamps are
// monotonically non-decreasing in append order even under concurrent
// callers. When the log exceeds its capacity the oldest events are evicted
// until exactly capacity remain. Append never fails.
//
// # Inputs
//
//   - status: pipeline stage tag. May be empty.
//   - message: human-readable text.
//   - typ: severity tag. Empty falls back to TypeInfo.
//
// # Outputs
//
//   - Event: the stored event, including the assigned ID and timestamp.
func (l *Log) Append(status, message string, typ EventType) Event {
	if typ == "" {
		typ = TypeInfo
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	event := Event{
		ID:        uuid.NewString(),
		Status:    status,
		Message:   message,
		Type:      typ,
		Timestamp: time.Now(),
	}
	l.events = append(l.events, event)
	if excess := len(l.events) - l.capacity; excess > 0 {
		l.events = append(l.events[:0], l.events[excess:]...)
	}
	return event
}

// Latest returns the most recently appended event.
//
// The second return value is false when the log is empty; this is the
// explicit "no event yet" sentinel, Latest never panics.
func (l *Log) Latest() (Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.events) == 0 {
		return Event{}, false
	}
	return l.events[len(l.events)-1], true
}

// Recent returns up to n of the most recent events, oldest first.
//
// The returned slice is a copy; mutating it does not affect the log.
// A non-positive n returns everything currently held.
func (l *Log) Recent(n int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || n > len(l.events) {
		n = len(l.events)
	}
	out := make([]Event, n)
	copy(out, l.events[len(l.events)-n:])
	return out
}

// Len returns the number of events currently held.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}
