package presenter

// State is the screen the user is looking at. Exactly one is active.
type State int

const (
	Idle State = iota
	Uploaded
	Analyzing
	Result
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Uploaded:
		return "uploaded"
	case Analyzing:
		return "analyzing"
	case Result:
		return "result"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

type ToastKind string

const (
	ToastError   ToastKind = "error"
	ToastSuccess ToastKind = "success"
)
