package execution

// Status represents the current state of a pipeline run.
type Status string

const (
	StatusPending          Status = "pending"
	StatusInProgress       Status = "in_progress"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
	StatusCompleted        Status = "completed"
	StatusError            Status = "error"
)

var terminal = map[Status]bool{
	StatusCompleted: true,
	StatusRejected:  true,
	StatusError:     true,
}

// IsTerminal reports whether no further engine-driven transition is possible.
// StatusApproved is not terminal: an external collaborator may feed an
// approved run back into the pipeline.
func (s Status) IsTerminal() bool {
	return terminal[s]
}

func (s Status) String() string { return string(s) }
