package trace

import "time"

// Kind is the type of a trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint
	KindHeartbeat
)

func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Scope is the granularity of an event. Lower values are coarser.
type Scope uint8

const (
	ScopeSession Scope = iota + 1
	ScopeCommand
	ScopeScan
	ScopeNode
)

func (s Scope) String() string {
	switch s {
	case ScopeSession:
		return "session"
	case ScopeCommand:
		return "command"
	case ScopeScan:
		return "scan"
	case ScopeNode:
		return "node"
	default:
		return "unknown"
	}
}

// Event is a single trace record.
type Event struct {
	Time     time.Time
	Seq      uint64
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64
	GID      uint64
	Name     string // "outline", "locate:strategyB", "command:widgetwrap.wrap"
	Detail   string
	Extra    map[string]string
}
