// internal/models/charstat.go
package models

// CharacterStat is one character's timing/error aggregate for one
// participant's session. Rows are owned by a SpeedRecord and are wholesale
// replaced on every flush, never incrementally merged.
type CharacterStat struct {
	Char           string  `json:"char"`
	AvgLatencyMs   float64 `json:"avgTimePerChar"`
	MaxLatencyMs   float64 `json:"maxTimePerChar"`
	ErrorFrequency float64 `json:"errorFrequency"` // percentage, 0-100
}
