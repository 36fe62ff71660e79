package instance

import "time"

// Level is the severity of a Notice.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Topic groups notices by what produced them.
type Topic string

const (
	TopicPoll       Topic = "poll"
	TopicCommand    Topic = "command"
	TopicArtifact   Topic = "artifact"
	TopicTransition Topic = "transition"
)

// Notice is a single operator-facing notification.
type Notice struct {
	At       time.Time
	Instance string
	Level    Level
	Topic    Topic
	Title    string
	Detail   string
}

// Notifier receives notices. Implementations must not block for long; they are
// called from the reconciler loop.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notice) { f(n) }

// Notifiers fans a notice out to every member.
type Notifiers []Notifier

// Notify delivers n to each non-nil notifier in order.
func (ns Notifiers) Notify(n Notice) {
	for _, x := range ns {
		if x != nil {
			x.Notify(n)
		}
	}
}
