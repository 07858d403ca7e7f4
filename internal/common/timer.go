// Package common provides timing and memory helpers shared by the page
// workflow and its reports.
package common

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Timer measures one named span.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// NewNamedTimer creates a new timer with the given name.
func NewNamedTimer(name string) *Timer {
	return &Timer{name: name, start: time.Now()}
}

// Stop stops the timer and returns the elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// Name returns the timer name (empty string if unnamed).
func (t *Timer) Name() string {
	return t.name
}

// String returns a formatted string representation of the timer.
func (t *Timer) String() string {
	if t.name != "" {
		return fmt.Sprintf("%s: %v", t.name, t.duration)
	}
	return t.duration.String()
}

// StageTimes accumulates durations per pipeline stage.
type StageTimes struct {
	mu     sync.Mutex
	stages map[string]time.Duration
}

// NewStageTimes returns an empty accumulator.
func NewStageTimes() *StageTimes {
	return &StageTimes{stages: make(map[string]time.Duration)}
}

// Measure runs fn and adds its duration to stage.
func (s *StageTimes) Measure(stage string, fn func()) {
	t := NewNamedTimer(stage)
	fn()
	s.Add(stage, t.Stop())
}

// Add records d under stage.
func (s *StageTimes) Add(stage string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages[stage] += d
}

// Seconds returns the per-stage totals in seconds, for JSON reports.
func (s *StageTimes) Seconds() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]float64, len(s.stages))
	for k, v := range s.stages {
		out[k] = v.Seconds()
	}
	return out
}

// Stages returns the recorded stage names in sorted order.
func (s *StageTimes) Stages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.stages))
	for k := range s.stages {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
