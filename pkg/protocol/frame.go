package protocol

import (
	"encoding/binary"
	"errors"
	"io"
	"unicode/utf8"
)

const (
	// MaxFrameSize is the maximum allowed frame payload size (64 KB).
	// Frames carry single lines of chat text; anything larger is a
	// protocol violation or a desynchronized stream.
	MaxFrameSize = 64 * 1024
)

var (
	ErrFrameTooLarge = errors.New("frame exceeds maximum size (64 KB)")
	ErrInvalidUTF8   = errors.New("frame payload is not valid UTF-8")
)

// Frame format: [Length (4 bytes, big-endian)][UTF-8 text (Length bytes)].
// The same framing is used in both directions; a frame always carries one
// logical message (a prompt, a command line, or a response line).

// WriteFrame writes one text frame to the writer.
func WriteFrame(w io.Writer, text string) error {
	if len(text) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	if !utf8.ValidString(text) {
		return ErrInvalidUTF8
	}

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(text)))
	if _, err := w.Write(length[:]); err != nil {
		return err
	}
	if _, err := io.WriteString(w, text); err != nil {
		return err
	}

	// Flush if the writer supports it (e.g., *bufio.Writer)
	type flusher interface {
		Flush() error
	}
	if fl, ok := w.(flusher); ok {
		return fl.Flush()
	}

	return nil
}

// ReadFrame reads one text frame from the reader.
func ReadFrame(r io.Reader) (string, error) {
	var lengthBuf [4]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		return "", err
	}

	length := binary.BigEndian.Uint32(lengthBuf[:])
	if length > MaxFrameSize {
		return "", ErrFrameTooLarge
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return "", err
		}
	}

	if !utf8.Valid(payload) {
		return "", ErrInvalidUTF8
	}

	return string(payload), nil
}
