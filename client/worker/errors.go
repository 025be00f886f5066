package worker

import (
	"errors"
	"fmt"
)

// Outcome is how a session ended
type Outcome int

const (
	// Completed means the server confirmed the whole file
	Completed Outcome = iota
	// Rejected means the server declined the handshake: no space, file exists or no free path
	Rejected
	// Failed means the session ended with a *Failure
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Rejected:
		return "rejected"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// FailureKind classifies why a session failed
type FailureKind int

const (
	// TransportFailure covers I/O errors, timeouts and premature disconnects
	TransportFailure FailureKind = iota + 1
	// ProtocolFailure means the server reported the finalization as failed
	ProtocolFailure
	// LocalIOFailure covers disk reads and the post-transfer delete
	LocalIOFailure
)

func (k FailureKind) String() string {
	switch k {
	case TransportFailure:
		return "transport"
	case ProtocolFailure:
		return "protocol"
	case LocalIOFailure:
		return "local io"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrFinalizationFailed is returned when the server answers the EOF marker with false
var ErrFinalizationFailed = errors.New("server responded to end of transfer as failed")

// Failure is a terminal session error
type Failure struct {
	Kind FailureKind
	Op   string
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s failure during %s: %v", f.Kind, f.Op, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// KindOf returns the failure kind carried by err, or 0 when err is not a *Failure
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return 0
}
