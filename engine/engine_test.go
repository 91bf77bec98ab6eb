package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDueTicks(t *testing.T) {
	rate := time.Second / 60
	tests := []struct {
		name     string
		elapsed  time.Duration
		wantN    int
		wantRest time.Duration
	}{
		{"none due", rate / 2, 0, rate / 2},
		{"one with remainder", rate + time.Millisecond, 1, time.Millisecond},
		{"exact", 3 * rate, 3, 0},
		{"stall is capped", time.Second, 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, rest := dueTicks(tt.elapsed, rate)
			assert.Equal(t, tt.wantN, n)
			assert.Equal(t, tt.wantRest, rest)
		})
	}
	n, rest := dueTicks(time.Second, 0)
	assert.Zero(t, n)
	assert.Zero(t, rest)
}
