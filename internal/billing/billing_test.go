package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCycle(t *testing.T) {
	anchor := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	c := NewCycle(anchor, true)

	assert.Equal(t, anchor, c.Anchor)
	assert.Equal(t, PeriodDays, c.PeriodDays)
	assert.True(t, c.IsTrial)
	assert.Equal(t, 0, c.ElapsedDays)
	require.NoError(t, c.Validate())
}

func TestCycleValidate(t *testing.T) {
	anchor := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		cycle   Cycle
		wantErr bool
	}{
		{"fresh cycle", NewCycle(anchor, false), false},
		{"partially elapsed", Cycle{Anchor: anchor, PeriodDays: 30, ElapsedDays: 12}, false},
		{"fully elapsed", Cycle{Anchor: anchor, PeriodDays: 30, ElapsedDays: 30}, false},
		{"negative elapsed", Cycle{Anchor: anchor, PeriodDays: 30, ElapsedDays: -1}, true},
		{"elapsed beyond period", Cycle{Anchor: anchor, PeriodDays: 30, ElapsedDays: 31}, true},
		{"zero period", Cycle{Anchor: anchor, PeriodDays: 0}, true},
		{"negative period", Cycle{Anchor: anchor, PeriodDays: -5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cycle.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPeriodEnd(t *testing.T) {
	anchor := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	end := PeriodEnd(anchor, 30)
	assert.Equal(t, time.Date(2026, 4, 9, 0, 0, 0, 0, time.UTC), end)

	// End() uses the cycle's own period length
	c := NewCycle(anchor, false)
	assert.Equal(t, end, c.End())

	// AddDate handles month boundaries, not a fixed 24h*30 jump
	janAnchor := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), PeriodEnd(janAnchor, 30))
}

func TestRemainingDays(t *testing.T) {
	anchor := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	fresh := NewCycle(anchor, false)
	assert.Equal(t, 30, fresh.RemainingDays())

	partial := Cycle{Anchor: anchor, PeriodDays: 30, ElapsedDays: 18}
	assert.Equal(t, 12, partial.RemainingDays())

	spent := Cycle{Anchor: anchor, PeriodDays: 30, ElapsedDays: 30}
	assert.Equal(t, 0, spent.RemainingDays())
}

func TestProrate(t *testing.T) {
	tests := []struct {
		name          string
		newMonthly    float64
		oldMonthly    float64
		remainingDays int
		periodDays    int
		want          float64
	}{
		{"upgrade full period", 299, 49, 30, 30, 250},
		{"upgrade half period", 299, 49, 15, 30, 125},
		{"upgrade one day left", 299, 49, 1, 30, 250.0 / 30.0},
		{"downgrade charges nothing", 49, 299, 30, 30, 0},
		{"composition downgrade charges nothing", 299, 499, 30, 30, 0},
		{"equal prices charge nothing", 49, 49, 30, 30, 0},
		{"no remaining days", 299, 49, 0, 30, 0},
		{"zero period guard", 299, 49, 30, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Prorate(tt.newMonthly, tt.oldMonthly, tt.remainingDays, tt.periodDays)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestProrateNeverNegative(t *testing.T) {
	for remaining := 0; remaining <= 30; remaining++ {
		assert.GreaterOrEqual(t, Prorate(0, 499, remaining, 30), 0.0)
		assert.GreaterOrEqual(t, Prorate(49, 299, remaining, 30), 0.0)
	}
}

func TestRoundCents(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{0.125, 0.13}, // exact half rounds up
		{0.375, 0.38},
		{1.004, 1.00},
		{8.333333, 8.33},
		{8.336666, 8.34},
		{250.0 / 30.0, 8.33},
		{49, 49},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, RoundCents(tt.in), 1e-9, "RoundCents(%v)", tt.in)
	}
}
