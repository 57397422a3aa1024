package server

import (
	"errors"
	"fmt"
	"time"
)

// ErrTargetNotActive is returned when a direct message targets a username
// with no live session.
var ErrTargetNotActive = errors.New("target user not active")

// Message is one composed chat message. Immutable once constructed; the
// timestamp is captured at construction, not at delivery.
type Message struct {
	Text      string
	Sender    string
	CreatedAt time.Time
}

func NewMessage(text, sender string) Message {
	return Message{
		Text:      text,
		Sender:    sender,
		CreatedAt: time.Now(),
	}
}

// Timestamp formats the creation time for wire lines and audit records.
func (m Message) Timestamp() string {
	return m.CreatedAt.Format(auditTimeLayout)
}

// MessageRouter delivers composed messages to session outbound paths,
// resolving targets through the directory, and persists them through the
// audit-log collaborators.
type MessageRouter struct {
	directory *Directory
	directLog *AuditLog
	metrics   *Metrics
}

func NewMessageRouter(directory *Directory, directLog *AuditLog, metrics *Metrics) *MessageRouter {
	return &MessageRouter{
		directory: directory,
		directLog: directLog,
		metrics:   metrics,
	}
}

// SendDirect pushes "<timestamp>, <sender>: <text>" to the target's
// outbound path and persists the message to the direct-message log. If the
// target is not active, nothing is delivered and nothing is persisted.
func (r *MessageRouter) SendDirect(msg Message, to string) error {
	rec, err := r.directory.Lookup(to)
	if err != nil {
		return ErrTargetNotActive
	}

	line := fmt.Sprintf("%s, %s: %s", msg.Timestamp(), msg.Sender, msg.Text)
	if err := rec.Out.WriteFrame(line); err != nil {
		// The target's session will notice its dead connection on its own
		// read path; delivery here is best effort.
		errorLog.Printf("direct delivery to %s failed: %v", to, err)
	}

	if err := r.directLog.Append(msg.CreatedAt, msg.Sender, msg.Text); err != nil {
		errorLog.Printf("persist direct message: %v", err)
	}

	if r.metrics != nil {
		r.metrics.RecordDelivery("direct", 1)
	}
	return nil
}

// SendToGroup pushes "<timestamp>, <group>, <sender>: <text>" to every
// member except the sender and returns the delivered count. Members who are
// no longer active are skipped, not errored. The message is persisted once
// to the group's own log regardless of delivery count.
func (r *MessageRouter) SendToGroup(msg Message, g *Group) int {
	line := fmt.Sprintf("%s, %s, %s: %s", msg.Timestamp(), g.Name, msg.Sender, msg.Text)

	delivered := 0
	for _, member := range g.Members() {
		if member == msg.Sender {
			continue
		}
		rec, err := r.directory.Lookup(member)
		if err != nil {
			continue // member logged out since joining; still a member
		}
		if err := rec.Out.WriteFrame(line); err != nil {
			errorLog.Printf("group delivery to %s failed: %v", member, err)
			continue
		}
		delivered++
	}

	if err := g.log.Append(msg.CreatedAt, msg.Sender, msg.Text); err != nil {
		errorLog.Printf("persist group message for %s: %v", g.Name, err)
	}

	if r.metrics != nil {
		r.metrics.RecordDelivery("group", delivered)
	}
	return delivered
}
