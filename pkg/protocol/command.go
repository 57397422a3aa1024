package protocol

import (
	"errors"
	"strings"
)

// ErrEmptyCommand is returned when a command line contains no action token.
var ErrEmptyCommand = errors.New("empty command")

// Command is one parsed client command line. The parser only tokenizes;
// deciding whether the action is recognized is the dispatcher's job.
type Command struct {
	Action string   // First token, e.g. "/msgto"
	Args   []string // Remaining tokens, in order
	Raw    string   // Original line, kept verbatim for audit logging
}

// ParseCommand splits a raw line on whitespace. The first token becomes the
// action, the rest become arguments. No escaping: a multi-word message body
// is reconstructed by the handler via Body.
func ParseCommand(line string) (*Command, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return nil, ErrEmptyCommand
	}

	return &Command{
		Action: tokens[0],
		Args:   tokens[1:],
		Raw:    line,
	}, nil
}

// Body joins the arguments starting at index from with single spaces.
// Used by handlers whose trailing arguments form a message body.
func (c *Command) Body(from int) string {
	if from >= len(c.Args) {
		return ""
	}
	return strings.Join(c.Args[from:], " ")
}
