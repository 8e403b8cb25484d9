package sequencer

import "errors"

// ErrServerFull is returned by Admit when the client table is already
// at max_clients. It is not logged as a crash.
var ErrServerFull = errors.New("sequencer: server full")

// ErrBanned is returned by Admit when the connecting IP matches a ban
// record.
var ErrBanned = errors.New("sequencer: client is banned")

// ErrUnknownClient is returned when an operation names a uid that is
// not currently live, and by Unban when no ban matches. The chat-command
// handler turns it into a failure reply; the console and script bridge
// log it.
var ErrUnknownClient = errors.New("sequencer: unknown client")

// ErrNotAuthorized names the case of a sender lacking the flags a
// privileged command requires. The chat-command handler does not return
// it; it replies "not authorized" to the sender instead.
var ErrNotAuthorized = errors.New("sequencer: not authorized")

// ProtocolViolation wraps a malformed or oversized frame the dispatcher
// refuses to process. Receiving one always disconnects the connection
// with crashed=true.
type ProtocolViolation struct {
	Reason string
}

func (e *ProtocolViolation) Error() string {
	return "sequencer: protocol violation: " + e.Reason
}
