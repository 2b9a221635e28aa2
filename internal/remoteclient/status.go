package remoteclient

import "fmt"

// StatusKind tags a ConnectionStatus's variant. The ordered progression is
// Disconnected -> Connecting -> Pairing -> Connected -> Reconnecting{n} ->
// Connected, with a terminal Error{message} when not recoverable.
type StatusKind int

const (
	StatusDisconnected StatusKind = iota
	StatusConnecting
	StatusPairing
	StatusConnected
	StatusReconnecting
	StatusError
)

func (k StatusKind) String() string {
	switch k {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusPairing:
		return "pairing"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// ConnectionStatus is the exhaustive state a ConnectionManager record can
// be in. Attempt is only meaningful for StatusReconnecting (UI display,
// never a give-up decision). Message is only meaningful for StatusError.
type ConnectionStatus struct {
	Kind    StatusKind
	Attempt int
	Message string
}

func Disconnected() ConnectionStatus { return ConnectionStatus{Kind: StatusDisconnected} }
func Connecting() ConnectionStatus   { return ConnectionStatus{Kind: StatusConnecting} }
func Pairing() ConnectionStatus      { return ConnectionStatus{Kind: StatusPairing} }
func Connected() ConnectionStatus    { return ConnectionStatus{Kind: StatusConnected} }

func Reconnecting(attempt int) ConnectionStatus {
	return ConnectionStatus{Kind: StatusReconnecting, Attempt: attempt}
}

func Errored(format string, args ...interface{}) ConnectionStatus {
	return ConnectionStatus{Kind: StatusError, Message: fmt.Sprintf(format, args...)}
}

func (s ConnectionStatus) String() string {
	switch s.Kind {
	case StatusReconnecting:
		return fmt.Sprintf("reconnecting(attempt=%d)", s.Attempt)
	case StatusError:
		return fmt.Sprintf("error(%s)", s.Message)
	default:
		return s.Kind.String()
	}
}
