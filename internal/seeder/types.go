package seeder

import (
	"time"

	"github.com/Lumos-Labs-HQ/formseed/internal/schema"
)

type Status string

const (
	StatusCreated Status = "created"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Reasons classify Skipped and Failed outcomes.
const (
	ReasonUnresolvedReference = "unresolved_reference"
	ReasonCancelled           = "cancelled"
	ReasonRejected            = "rejected"
	ReasonExhausted           = "retries_exhausted"
)

type Options struct {
	Concurrency    int           // workers per tier
	MaxAttempts    int           // total tries per entity, first call included
	InitialBackoff time.Duration // wait before the first retry
	MaxBackoff     time.Duration // cap on any single wait
}

// Outcome is the final state of one entity.
type Outcome struct {
	Kind       schema.Kind `json:"kind" yaml:"kind"`
	Key        string      `json:"key" yaml:"key"`
	Status     Status      `json:"status" yaml:"status"`
	TargetID   string      `json:"targetId,omitempty" yaml:"targetId,omitempty"`
	HTTPStatus int         `json:"httpStatus,omitempty" yaml:"httpStatus,omitempty"`
	Body       string      `json:"body,omitempty" yaml:"body,omitempty"`
	Reason     string      `json:"reason,omitempty" yaml:"reason,omitempty"`
	Detail     string      `json:"detail,omitempty" yaml:"detail,omitempty"`
	Attempts   int         `json:"attempts" yaml:"attempts"`
}

type Report struct {
	Created    map[schema.Kind]int `json:"created" yaml:"created"`
	Failed     map[schema.Kind]int `json:"failed" yaml:"failed"`
	Skipped    map[schema.Kind]int `json:"skipped" yaml:"skipped"`
	Outcomes   []Outcome           `json:"outcomes" yaml:"outcomes"`
	StartedAt  time.Time           `json:"startedAt" yaml:"startedAt"`
	FinishedAt time.Time           `json:"finishedAt" yaml:"finishedAt"`
}

func newReport(kinds []schema.Kind) *Report {
	r := &Report{
		Created: make(map[schema.Kind]int, len(kinds)),
		Failed:  make(map[schema.Kind]int, len(kinds)),
		Skipped: make(map[schema.Kind]int, len(kinds)),
	}
	for _, k := range kinds {
		r.Created[k], r.Failed[k], r.Skipped[k] = 0, 0, 0
	}
	return r
}

func (r *Report) record(o Outcome) {
	switch o.Status {
	case StatusCreated:
		r.Created[o.Kind]++
	case StatusFailed:
		r.Failed[o.Kind]++
	case StatusSkipped:
		r.Skipped[o.Kind]++
	}
	r.Outcomes = append(r.Outcomes, o)
}

// Total is the number of entities the report covers.
func (r *Report) Total() int {
	return len(r.Outcomes)
}

// OK reports whether every entity was created.
func (r *Report) OK() bool {
	for _, o := range r.Outcomes {
		if o.Status != StatusCreated {
			return false
		}
	}
	return true
}
