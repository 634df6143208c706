package model

import "time"

// StatsEntry is the latest snapshot of numeric measurements for one avatar.
// A save replaces the previous entry wholesale.
type StatsEntry struct {
	Stats     []float64 `json:"stats"`
	Timestamp time.Time `json:"timestamp"`
}

// StatsBook maps avatar to its stats entry.
type StatsBook map[string]StatsEntry
