package protocol

import (
	"bytes"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

// TestFrameRoundTripRapid tests that any valid UTF-8 text round-trips
// through the framing layer unchanged.
func TestFrameRoundTripRapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringN(-1, -1, 4096).Draw(t, "text")

		var buf bytes.Buffer
		if err := WriteFrame(&buf, text); err != nil {
			t.Fatalf("encode failed: %v", err)
		}

		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if got != text {
			t.Fatalf("round-trip mismatch: got %q, want %q", got, text)
		}
		if buf.Len() != 0 {
			t.Fatalf("decoder left %d bytes unread", buf.Len())
		}
	})
}

// TestParseCommandRapid tests parser invariants for arbitrary input lines:
// the action is always the first field, arguments preserve field order, and
// the raw line is kept verbatim.
func TestParseCommandRapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		line := rapid.StringN(-1, -1, 1024).Draw(t, "line")

		cmd, err := ParseCommand(line)
		fields := strings.Fields(line)

		if len(fields) == 0 {
			if err != ErrEmptyCommand {
				t.Fatalf("expected ErrEmptyCommand for blank line, got %v", err)
			}
			return
		}

		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		if cmd.Action != fields[0] {
			t.Fatalf("action mismatch: got %q, want %q", cmd.Action, fields[0])
		}
		if len(cmd.Args) != len(fields)-1 {
			t.Fatalf("arg count mismatch: got %d, want %d", len(cmd.Args), len(fields)-1)
		}
		for i, arg := range cmd.Args {
			if arg != fields[i+1] {
				t.Fatalf("arg %d mismatch: got %q, want %q", i, arg, fields[i+1])
			}
		}
		if cmd.Raw != line {
			t.Fatalf("raw line not preserved")
		}
	})
}
