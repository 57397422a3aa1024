package server

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"time"
)

// auditTimeLayout matches the persisted record format "dd MMM yyyy HH:mm:ss".
const auditTimeLayout = "02 Jan 2006 15:04:05"

// AuditLog writes indexed records to one target file. The same component
// backs the direct-message log, every per-group log and the active-user
// snapshot; only the path differs.
type AuditLog struct {
	mu   sync.Mutex
	path string
	seq  int
}

func NewAuditLog(path string) *AuditLog {
	return &AuditLog{path: path}
}

// Path returns the target file.
func (l *AuditLog) Path() string {
	return l.path
}

// Append adds one "index; timestamp; username; text" record. The index is a
// running sequence number starting at 1.
func (l *AuditLog) Append(ts time.Time, username, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open audit log %s: %w", l.path, err)
	}
	defer f.Close()

	l.seq++
	if _, err := fmt.Fprintf(f, "%d; %s; %s; %s\n", l.seq, ts.Format(auditTimeLayout), username, text); err != nil {
		return fmt.Errorf("append audit log %s: %w", l.path, err)
	}
	return nil
}

// WriteSnapshot rewrites the file with the current active-user records, one
// "index; timestamp; username; address; udpPort" line per user in
// registration order. Used for the user directory snapshot, which is
// replaced on every login and logout.
func (l *AuditLog) WriteSnapshot(records []*UserRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open audit log %s: %w", l.path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i, rec := range records {
		fmt.Fprintf(w, "%d; %s; %s; %s; %d\n", i+1, rec.JoinedAt.Format(auditTimeLayout), rec.Username, rec.Contact, rec.UDPPort)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write audit log %s: %w", l.path, err)
	}
	return nil
}
