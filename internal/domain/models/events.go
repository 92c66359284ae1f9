package models

import "time"

type HoldingOp string

const (
	HoldingUpsert HoldingOp = "upsert"
	HoldingDelete HoldingOp = "delete"
)

// HoldingEvent is the Kafka message carrying a holding write.
type HoldingEvent struct {
	Op        HoldingOp `json:"op"`
	UserID    string    `json:"user_id"`
	HoldingID string    `json:"holding_id"`
	Holding   *Holding  `json:"holding,omitempty"`
	At        time.Time `json:"at"`
}

// Key routes every event of one holding to the same partition.
func (e *HoldingEvent) Key() string {
	return e.UserID + "/" + e.HoldingID
}

// ScreenAuditEvent summarises one screener run for downstream auditing.
type ScreenAuditEvent struct {
	At       time.Time          `json:"at"`
	Total    int                `json:"total"`
	Eligible int                `json:"eligible"`
	Skipped  map[SkipReason]int `json:"skipped"`
	Entries  []SkipEntry        `json:"entries"`
}
