package jobs

import (
	"time"

	"github.com/rs/zerolog"
)

type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeFailed         Outcome = "failed"
	OutcomeSkipped        Outcome = "skipped"
	OutcomeCeilingReached Outcome = "ceiling_reached"
)

// CandidateResult is the classification of one candidate in a run.
type CandidateResult struct {
	ReceiverID uint    `json:"receiver_id,omitempty"`
	OutOrderNo string  `json:"out_order_no,omitempty"`
	Key        string  `json:"key,omitempty"`
	Outcome    Outcome `json:"outcome"`
	Reason     string  `json:"reason,omitempty"`
}

// Report summarizes a batch run. Candidate failures are counted here, never returned as run errors.
type Report struct {
	Job            string            `json:"job"`
	DryRun         bool              `json:"dry_run"`
	Total          int               `json:"total"`
	Success        int               `json:"success"`
	Failed         int               `json:"failed"`
	Skipped        int               `json:"skipped"`
	CeilingReached int               `json:"ceiling_reached"`
	StartedAt      time.Time         `json:"started_at"`
	FinishedAt     time.Time         `json:"finished_at"`
	Results        []CandidateResult `json:"results"`
}

func newReport(job string, p Params, now time.Time) *Report {
	return &Report{
		Job:       job,
		DryRun:    p.DryRun,
		StartedAt: now,
		Results:   []CandidateResult{},
	}
}

func (r *Report) add(res CandidateResult) {
	r.Total++
	switch res.Outcome {
	case OutcomeSuccess:
		r.Success++
	case OutcomeFailed:
		r.Failed++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeCeilingReached:
		r.CeilingReached++
	}
	r.Results = append(r.Results, res)
}

func (r *Report) log(logger zerolog.Logger) {
	logger.Info().
		Str("job", r.Job).
		Bool("dry_run", r.DryRun).
		Int("total", r.Total).
		Int("success", r.Success).
		Int("failed", r.Failed).
		Int("skipped", r.Skipped).
		Int("ceiling_reached", r.CeilingReached).
		Dur("elapsed", r.FinishedAt.Sub(r.StartedAt)).
		Msg("batch run finished")
}
