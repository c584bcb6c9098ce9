package solver

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize bounds the payload length a peer may announce.
const MaxFrameSize = 1_000_000

// StatusAnswer is the reply status of a solver that found a room.
const StatusAnswer = "answer"

// Request is the payload sent to the solver.
type Request struct {
	ID        int64  `json:"id"`
	StartTime string `json:"start_time"`
	Duration  int    `json:"duration"`
	Corpus    string `json:"corpus"`
}

// Reply is the solver's answer. Zero values mean the field was absent.
type Reply struct {
	Cabinet int    `json:"cabinet"`
	Status  string `json:"status"`
}

// Found reports whether the reply names a room.
func (r Reply) Found() bool {
	return r.Cabinet > 0 && r.Status == StatusAnswer
}

// WriteFrame writes a 4-byte big-endian length followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: outgoing frame of %d bytes exceeds %d", ErrProtocol, len(payload), MaxFrameSize)
	}
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(payload)))
	copy(buf[4:], payload)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("%w: write frame: %w", ErrConnection, err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame. The announced length must satisfy
// 0 < n <= MaxFrameSize.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: read frame length: %w", ErrConnection, err)
	}
	// Signed, as the peer writes a Java-style int.
	n := int32(binary.BigEndian.Uint32(header[:]))
	if n <= 0 || n > MaxFrameSize {
		return nil, fmt.Errorf("%w: invalid response length %d", ErrProtocol, n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: truncated frame: %v", ErrProtocol, err)
		}
		return nil, fmt.Errorf("%w: read frame body: %w", ErrConnection, err)
	}
	return payload, nil
}

// EncodeRequest serializes a request as UTF-8 JSON.
func EncodeRequest(req Request) ([]byte, error) {
	return json.Marshal(req)
}

// DecodeReply parses a reply body. A body that is not a JSON object yields an
// empty Reply and ok=false instead of an error.
func DecodeReply(body []byte) (reply Reply, ok bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return Reply{}, false
	}
	if raw, found := fields["cabinet"]; found {
		reply.Cabinet = decodeInt(raw)
	}
	if raw, found := fields["status"]; found {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			reply.Status = s
		}
	}
	return reply, true
}

// decodeInt accepts a JSON number or a numeric string; anything else is 0.
func decodeInt(raw json.RawMessage) int {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		if f, err := n.Float64(); err == nil {
			return int(f)
		}
		return 0
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		var i int
		if _, err := fmt.Sscanf(s, "%d", &i); err == nil {
			return i
		}
	}
	return 0
}
