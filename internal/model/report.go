package model

import (
	"time"

	"github.com/google/uuid"
)

// RunReport summarizes one scan+dispatch cycle. It is owned by the run
// that produced it and is never persisted.
type RunReport struct {
	StartedAt     time.Time         `json:"started_at"`
	FinishedAt    time.Time         `json:"finished_at"`
	Scanned       int               `json:"scanned"`
	SentByChannel map[Channel]int   `json:"sent_by_channel"`
	Successes     []DispatchSuccess `json:"successes"`
	Failures      []DispatchFailure `json:"failures"`
}

type DispatchSuccess struct {
	ObligationID  uuid.UUID `json:"obligation_id"`
	ReferenceCode string    `json:"reference_code"`
	DebtorName    string    `json:"debtor_name"`
	Channel       Channel   `json:"channel"`
	Destination   string    `json:"destination"`
	Milestone     int       `json:"milestone"`
}

type DispatchFailure struct {
	ObligationID uuid.UUID `json:"obligation_id"`
	Channel      Channel   `json:"channel"`
	Milestone    int       `json:"milestone"`
	Reason       string    `json:"reason"`
}

func NewRunReport() *RunReport {
	return &RunReport{
		StartedAt:     time.Now(),
		SentByChannel: map[Channel]int{},
	}
}

// Summary is the compact form published to the broker and returned by the
// status endpoint.
type ReportSummary struct {
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Scanned    int             `json:"scanned"`
	Sent       map[Channel]int `json:"sent"`
	Failed     int             `json:"failed"`
}

func (r *RunReport) Summary() ReportSummary {
	return ReportSummary{
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Scanned:    r.Scanned,
		Sent:       r.SentByChannel,
		Failed:     len(r.Failures),
	}
}
