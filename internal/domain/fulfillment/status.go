package fulfillment

// Status represents the lifecycle state of an order
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusHumanCheck Status = "human_check"
	StatusInRevision Status = "in_revision"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// AllStatuses lists every status in lifecycle order
var AllStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusHumanCheck,
	StatusInRevision,
	StatusCompleted,
	StatusCancelled,
}

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusHumanCheck, StatusInRevision, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no further action is legal
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// AcceptsDeliverables reports whether files may be uploaded in this status
func (s Status) AcceptsDeliverables() bool {
	return s == StatusProcessing || s == StatusInRevision
}

// CanTransitionTo checks if the status can transition to the target status
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusProcessing || target == StatusCancelled
	case StatusProcessing:
		return target == StatusHumanCheck || target == StatusCancelled
	case StatusInRevision:
		return target == StatusHumanCheck
	case StatusHumanCheck:
		return target == StatusInRevision || target == StatusCompleted
	case StatusCompleted, StatusCancelled:
		return false
	}
	return false
}
