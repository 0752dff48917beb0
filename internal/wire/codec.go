package wire

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrConnectionLost is the single error kind surfaced for any transport
// failure: peer disconnect, short frame, or an oversize length prefix.
// Callers respond by tearing down the connection, never by retrying.
var ErrConnectionLost = errors.New("connection lost")

// ErrBadPacket is returned when a complete frame arrives but its body is not
// a decodable message. The whole frame was consumed, so the stream stays in
// sync and the connection can keep serving requests.
var ErrBadPacket = errors.New("bad packet")

// MaxFrameSize bounds a single message. Frames claiming more are treated as
// malformed framing, not as a large message.
const MaxFrameSize = 16 * 1024 * 1024

// Send writes one message: a 4-byte big-endian length prefix followed by the
// JSON body.
func Send(w io.Writer, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	frame := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[4:], body)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	return nil
}

// Recv reads one complete message. Framing failures are reported as
// ErrConnectionLost; a complete frame with an undecodable body as
// ErrBadPacket.
func Recv(r io.Reader) (Message, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return Message{}, fmt.Errorf("%w: reading length prefix: %v", ErrConnectionLost, err)
	}

	size := binary.BigEndian.Uint32(prefix[:])
	if size == 0 || size > MaxFrameSize {
		return Message{}, fmt.Errorf("%w: invalid frame size %d", ErrConnectionLost, size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return Message{}, fmt.Errorf("%w: reading frame body: %v", ErrConnectionLost, err)
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrBadPacket, err)
	}
	return msg, nil
}
