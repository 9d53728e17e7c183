package domain

import "time"

// ChurnAction classifies a rescheduling change fed to the governor.
type ChurnAction string

const (
	ChurnReshuffleAll ChurnAction = "reshuffle_all"
	ChurnLocalAdapt   ChurnAction = "local_adapt"
	ChurnInsert       ChurnAction = "insert"
)

// EntropyMeasurement is one append-only entry of churn history.
type EntropyMeasurement struct {
	Timestamp         time.Time   `json:"timestamp"`
	Entropy           float64     `json:"entropy"`
	CumulativeEntropy float64     `json:"cumulative_entropy"`
	Action            ChurnAction `json:"action"`
	AffectedBlocks    int         `json:"affected_blocks"`
	TotalBlocks       int         `json:"total_blocks"`
}
