package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeWeightStats(t *testing.T) {
	assert.Nil(t, ComputeWeightStats(nil))
	assert.Nil(t, ComputeWeightStats([]LogEntry{}))
	assert.Nil(t, ComputeWeightStats([]LogEntry{{Weight: ""}, {Weight: "  "}}))

	stats := ComputeWeightStats([]LogEntry{
		{Weight: "40"},
		{Weight: "60"},
		{Weight: "50"},
	})
	require.NotNil(t, stats)
	assert.Equal(t, 50.0, stats.Current)
	assert.Equal(t, 60.0, stats.Max)
	assert.Equal(t, 40.0, stats.Min)
}

func TestComputeWeightStats_SkipsEmptyAndInvalid(t *testing.T) {
	stats := ComputeWeightStats([]LogEntry{
		{Weight: "80"},
		{Weight: ""},
		{Weight: "bodyweight"},
		{Weight: "72.5"},
	})
	require.NotNil(t, stats)
	assert.Equal(t, 72.5, stats.Current)
	assert.Equal(t, 80.0, stats.Max)
	assert.Equal(t, 72.5, stats.Min)
}

func TestPadIndex(t *testing.T) {
	assert.Equal(t, "01", PadIndex(0))
	assert.Equal(t, "09", PadIndex(8))
	assert.Equal(t, "12", PadIndex(11))
	assert.Equal(t, "100", PadIndex(99))
}
