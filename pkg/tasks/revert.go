package tasks

// RevertCause tells a compensation why it is running. The workflow engine
// passes OwnExecutionFailed when the task's own Execute raised the failure
// that aborted the flow, and UpstreamFailure when a later task failed after
// this one completed. Compensations are no-ops in the first case so the
// entity that already caused a failure report is not marked twice.
type RevertCause struct {
	ownFailure bool
	err        error
}

// OwnExecutionFailed builds the cause for a revert of a task whose own
// Execute failed.
func OwnExecutionFailed(err error) RevertCause {
	return RevertCause{ownFailure: true, err: err}
}

// UpstreamFailure builds the cause for a revert triggered by a downstream
// task's failure.
func UpstreamFailure() RevertCause {
	return RevertCause{}
}

// OwnFailure reports whether the revert was triggered by the task's own
// Execute failing.
func (c RevertCause) OwnFailure() bool {
	return c.ownFailure
}

// Err returns the failure that aborted the task's own Execute, if any.
func (c RevertCause) Err() error {
	return c.err
}

// String returns the cause as a metrics label value.
func (c RevertCause) String() string {
	if c.ownFailure {
		return "own_failure"
	}
	return "upstream_failure"
}
