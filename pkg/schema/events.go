package schema

// ExecutionStatus represents the lifecycle state of a flow execution.
type ExecutionStatus string

const (
	ExecutionStatusPending ExecutionStatus = "pending"
	ExecutionStatusActive  ExecutionStatus = "active"
	ExecutionStatusPaused  ExecutionStatus = "paused"
	ExecutionStatusEnded   ExecutionStatus = "ended"
	ExecutionStatusFailed  ExecutionStatus = "failed"
)

// Handoff operations and outcomes, used for logging and metrics labels.
const (
	OperationLaunch = "launch"
	OperationResume = "resume"

	OutcomePaused = "paused"
	OutcomeEnded  = "ended"
	OutcomeError  = "error"
)
