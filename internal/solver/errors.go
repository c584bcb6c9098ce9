package solver

import "errors"

var (
	// ErrTimeout means the overall deadline elapsed before a reply arrived,
	// whether the call was still queued or already on the wire.
	ErrTimeout = errors.New("solver request timed out")
	// ErrConnection covers dial, write and read failures on the socket.
	ErrConnection = errors.New("solver connection error")
	// ErrProtocol means the peer violated the framing rules.
	ErrProtocol = errors.New("solver protocol error")
	// ErrQueueClosed is returned once the queue stopped accepting submissions.
	ErrQueueClosed = errors.New("solver queue is shut down")
)
