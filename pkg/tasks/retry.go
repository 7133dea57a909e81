package tasks

import (
	"github.com/openamphion/amphion/pkg/drivers"
	"github.com/openamphion/amphion/pkg/telemetry"
)

// Decision is the outcome of a retry policy evaluation.
type Decision string

const (
	// DecisionRetry re-executes the failed task.
	DecisionRetry Decision = "retry"

	// DecisionRevertAll aborts the whole flow, triggering compensation for
	// every completed task.
	DecisionRevertAll Decision = "revert_all"
)

// Attempt is one prior execution attempt of the guarded task group.
type Attempt struct {
	// Failures maps task name to the failure raised by that task during the
	// attempt. A nil error value means the attempt was restored from
	// persisted state after a process restart and the failure detail was
	// lost; the real remote state must be re-checked.
	Failures map[string]error
}

// AmpRetryPolicy decides whether a failed task attempt is retried or the
// enclosing flow is aborted. Connectivity errors to a booting or briefly
// unreachable appliance are expected and absorbed up to MaxRetries; any
// other failure indicates a real fault requiring a full rollback rather
// than continued hammering. The decision is a pure function of the supplied
// attempt history.
type AmpRetryPolicy struct {
	// MaxRetries bounds retries of transient connection failures. Attempts
	// with lost failure detail are retried regardless of this bound.
	MaxRetries int

	// Metrics optionally counts decisions.
	Metrics *telemetry.Metrics
}

// OnFailure inspects the most recent attempt and decides retry or abort.
func (p AmpRetryPolicy) OnFailure(history []Attempt) Decision {
	decision := p.decide(history)
	if p.Metrics != nil {
		p.Metrics.RecordRetryDecision(string(decision))
	}
	return decision
}

func (p AmpRetryPolicy) decide(history []Attempt) Decision {
	if len(history) == 0 {
		return DecisionRevertAll
	}

	last := history[len(history)-1]
	for _, failure := range last.Failures {
		// A restored flow has no failure detail for tasks that were in
		// flight when the worker stopped. Retry to re-check the real remote
		// state; this safety path is not bounded by MaxRetries.
		if failure == nil {
			return DecisionRetry
		}
		if drivers.IsTransient(failure) && len(history) <= p.MaxRetries {
			return DecisionRetry
		}
	}

	return DecisionRevertAll
}
