package ipc

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ulrichando/ParentShield/internal/domain"
)

// MaxMessageSize bounds a single frame body.
const MaxMessageSize = 1 << 20

// WriteMessage writes v as a frame: a 4-byte big-endian length followed by
// its JSON encoding.
func WriteMessage(w io.Writer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}
	if len(body) > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", domain.ErrMessageTooLarge, len(body))
	}

	frame := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[4:], body)
	_, err = w.Write(frame)
	return err
}

// ReadMessage reads one frame into v. A clean disconnect before the header
// returns io.EOF; a disconnect mid-frame returns io.ErrUnexpectedEOF.
func ReadMessage(r io.Reader, v any) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return err
	}

	n := binary.BigEndian.Uint32(header[:])
	if n == 0 {
		return fmt.Errorf("%w: empty frame", domain.ErrMalformedMessage)
	}
	if n > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", domain.ErrMessageTooLarge, n)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}
	return nil
}
