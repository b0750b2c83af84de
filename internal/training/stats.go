package training

import (
	"fmt"
	"strconv"
	"strings"
)

type WeightStats struct {
	Current float64 `json:"current"`
	Max     float64 `json:"max"`
	Min     float64 `json:"min"`
}

// ComputeWeightStats derives the weight progression numbers for one exercise.
// Entries with an empty or unparsable weight are excluded entirely; returns
// nil when nothing is left to compute from.
func ComputeWeightStats(entries []LogEntry) *WeightStats {
	var weights []float64
	for _, entry := range entries {
		trimmed := strings.TrimSpace(entry.Weight)
		if trimmed == "" {
			continue
		}
		weight, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			continue
		}
		weights = append(weights, weight)
	}

	if len(weights) == 0 {
		return nil
	}

	stats := &WeightStats{
		Current: weights[len(weights)-1],
		Max:     weights[0],
		Min:     weights[0],
	}
	for _, w := range weights {
		if w > stats.Max {
			stats.Max = w
		}
		if w < stats.Min {
			stats.Min = w
		}
	}
	return stats
}

// PadIndex renders a zero-based entry index as a 1-based, zero-padded ordinal
// for display: 0 -> "01", 11 -> "12", 99 -> "100".
func PadIndex(i int) string {
	return fmt.Sprintf("%02d", i+1)
}
