package jobs

type JobStatus string

const (
	JobPending  JobStatus = "pending"
	JobRetrying JobStatus = "retrying"
	JobDone     JobStatus = "done"
	JobDead     JobStatus = "dead"
)

func (s JobStatus) IsValid() bool {
	switch s {
	case JobPending, JobRetrying, JobDone, JobDead:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the job will never run again.
func (s JobStatus) IsTerminal() bool {
	return s == JobDone || s == JobDead
}
