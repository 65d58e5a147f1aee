package grading

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func at(t time.Time) *time.Time {
	return &t
}

func TestComputeStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		window Window
		want   Status
	}{
		{name: "no window", window: Window{}, want: StatusDraft},
		{name: "starts later", window: Window{Start: at(now.Add(time.Hour)), End: at(now.Add(2 * time.Hour))}, want: StatusComingSoon},
		{name: "in progress", window: Window{Start: at(now.Add(-time.Hour)), End: at(now.Add(time.Hour))}, want: StatusOpen},
		{name: "expired without start", window: Window{End: at(now.Add(-time.Hour))}, want: StatusEnded},
		{name: "start is inclusive", window: Window{Start: at(now), End: at(now.Add(time.Hour))}, want: StatusOpen},
		{name: "end is exclusive", window: Window{Start: at(now.Add(-time.Hour)), End: at(now)}, want: StatusEnded},
		{name: "open ended", window: Window{Start: at(now.Add(-time.Hour))}, want: StatusOpen},
		{name: "deadline only", window: Window{End: at(now.Add(time.Hour))}, want: StatusOpen},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ComputeStatus(tc.window, now))
		})
	}
}

func TestIsFresh(t *testing.T) {
	computed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.True(t, IsFresh(computed, computed, 5*time.Minute))
	require.True(t, IsFresh(computed, computed.Add(4*time.Minute+59*time.Second), 5*time.Minute))
	require.False(t, IsFresh(computed, computed.Add(5*time.Minute), 5*time.Minute))
	require.False(t, IsFresh(computed, computed.Add(-time.Second), 5*time.Minute))
}

func TestStatusEntryStopsAtBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	window := Window{Start: at(now.Add(2 * time.Minute)), End: at(now.Add(time.Hour))}

	entry := NewStatusEntry(window, now, 5*time.Minute)

	require.Equal(t, StatusComingSoon, entry.Value)
	require.Equal(t, now.Add(2*time.Minute), entry.ValidUntil)
	require.True(t, entry.Fresh(now.Add(time.Minute)))
	require.False(t, entry.Fresh(now.Add(2*time.Minute)))
}

func TestStatusEntryAgreesWithRecomputationWhileFresh(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	window := Window{Start: at(base.Add(90 * time.Second)), End: at(base.Add(7 * time.Minute))}

	for offset := time.Duration(0); offset < 10*time.Minute; offset += 30 * time.Second {
		computedAt := base.Add(offset)
		entry := NewStatusEntry(window, computedAt, 5*time.Minute)
		for probe := computedAt; probe.Before(computedAt.Add(6 * time.Minute)); probe = probe.Add(10 * time.Second) {
			if entry.Fresh(probe) {
				require.Equal(t, ComputeStatus(window, probe), entry.Value, "computed %v probed %v", computedAt, probe)
			}
		}
	}
}
