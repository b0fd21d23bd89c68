// Package symerr defines the error taxonomy shared by the symbolization,
// perf and session packages, so callers can distinguish recoverable
// per-module failures from transient and hard ones with errors.Is/As.
package symerr

import "fmt"

// Kind identifies one of the error categories from the error handling
// policy: some are expected (ProcError on process exit), some are
// recoverable per module (ELFError), some are transient (MapError),
// and some are fatal to the session (PerfBufferError).
type Kind int

const (
	NotFound Kind = iota
	InvalidData
	MustBePaused
	Closed
	EndOfRing
	UnexpectedEOF
	UnknownEvent
	OSError
	SymbolError
	ELFError
	ProcError
	SessionError
	MapError
	PerfBufferError
	WriteError
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case InvalidData:
		return "invalid data"
	case MustBePaused:
		return "must be paused"
	case Closed:
		return "closed"
	case EndOfRing:
		return "end of ring"
	case UnexpectedEOF:
		return "unexpected eof"
	case UnknownEvent:
		return "unknown event"
	case OSError:
		return "os error"
	case SymbolError:
		return "symbol error"
	case ELFError:
		return "elf error"
	case ProcError:
		return "proc error"
	case SessionError:
		return "session error"
	case MapError:
		return "map error"
	case PerfBufferError:
		return "perf buffer error"
	case WriteError:
		return "write error"
	default:
		return "unknown"
	}
}

// Error is a classified error: Kind lets callers branch with errors.As,
// Msg carries the human-readable detail, and Err optionally wraps the
// underlying cause for errors.Unwrap/errors.Is chains.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, symerr.Sentinel(symerr.NotFound)) work by
// comparing Kind against the Kind of a target *Error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Sentinel returns a comparable target usable with errors.Is(err, Sentinel(NotFound)).
func Sentinel(kind Kind) error { return &Error{Kind: kind} }

// UnknownEventErr carries the offending perf_event_header.Type, mirroring
// the Rust UnknownEvent(u32) variant and cilium/ebpf's unknownEventError.
type UnknownEventErr struct {
	Type uint32
}

func (e *UnknownEventErr) Error() string {
	return fmt.Sprintf("unknown event: type=%d", e.Type)
}
