package domain

import "time"

// OpKind classifies the outcome of a single venue operation.
type OpKind string

const (
	OpPlaced      OpKind = "placed"
	OpCancelled   OpKind = "cancelled"
	OpFailed      OpKind = "failed"
	OpUnsupported OpKind = "unsupported"
)

// OpReason records which pass produced an operation.
type OpReason string

const (
	ReasonOffGrid OpReason = "off_grid"
	ReasonStale   OpReason = "stale"
	ReasonMissing OpReason = "missing"
	ReasonFlatten OpReason = "flatten"
)

// OpResult is the outcome of one placement, cancellation or flatten.
type OpResult struct {
	Kind    OpKind     `json:"kind"`
	Reason  OpReason   `json:"reason"`
	Side    Side       `json:"side,omitempty"`
	Level   PriceLevel `json:"level,omitempty"`
	OrderID OrderID    `json:"order_id,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// ExecutionReport aggregates the results of one executor run.
type ExecutionReport struct {
	Results []OpResult `json:"results"`
}

// Count returns the number of results of the given kind.
func (r ExecutionReport) Count(kind OpKind) int {
	n := 0
	for _, res := range r.Results {
		if res.Kind == kind {
			n++
		}
	}
	return n
}

// GuardAction describes what the position guard did in a cycle.
type GuardAction string

const (
	GuardSkipped     GuardAction = "skipped"
	GuardFlat        GuardAction = "flat"
	GuardUnsupported GuardAction = "unsupported"
	GuardFlattened   GuardAction = "flattened"
	GuardFailed      GuardAction = "failed"
)

// GuardResult is the position guard outcome for a cycle.
type GuardResult struct {
	Action GuardAction `json:"action"`
	Size   string      `json:"size,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// CycleReport is the immutable record of one reconciliation cycle.
type CycleReport struct {
	ID             string          `json:"id"`
	Instrument     string          `json:"instrument"`
	StartedAt      time.Time       `json:"started_at"`
	Duration       time.Duration   `json:"duration"`
	ReferencePrice float64         `json:"reference_price"`
	Trend          *float64        `json:"trend,omitempty"`
	Spread         int64           `json:"spread"`
	Target         LevelSet        `json:"target"`
	Observed       LevelSet        `json:"observed"`
	Plan           Plan            `json:"plan"`
	Stale          []OrderID       `json:"stale,omitempty"`
	Execution      ExecutionReport `json:"execution"`
	Guard          GuardResult     `json:"guard"`
	Error          string          `json:"error,omitempty"`
}

// Failed reports whether the cycle aborted before reconciling.
func (r CycleReport) Failed() bool {
	return r.Error != ""
}
