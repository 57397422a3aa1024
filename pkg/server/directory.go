package server

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrDuplicateActiveUser is returned when a username already has a live
	// authenticated session. Last-registration-wins is deliberately not used;
	// the second login is rejected.
	ErrDuplicateActiveUser = errors.New("username already active")

	// ErrNotFound is returned by lookups for usernames with no live session.
	ErrNotFound = errors.New("user not found")
)

// Outbound is the write side of a session's connection. The directory hands
// it to the router so messages can be pushed to a user without the router
// knowing anything about transports.
type Outbound interface {
	WriteFrame(text string) error
}

// UserRecord describes one active user. A record exists exactly as long as
// the owning session is authenticated.
type UserRecord struct {
	Username string
	Contact  string // remote endpoint, "(host, port)"
	UDPPort  int    // client's reachable port for the transfer side channel
	JoinedAt time.Time
	Out      Outbound
}

// Directory is the authoritative registry of active users. All operations
// are safe for concurrent use by every session goroutine; each operation is
// atomic with respect to the others.
type Directory struct {
	mu      sync.RWMutex
	byName  map[string]*UserRecord
	ordered []*UserRecord // registration order, for snapshots
}

func NewDirectory() *Directory {
	return &Directory{
		byName: make(map[string]*UserRecord),
	}
}

// Register adds a record. Fails with ErrDuplicateActiveUser if the username
// already has a live session.
func (d *Directory) Register(rec *UserRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.byName[rec.Username]; exists {
		return ErrDuplicateActiveUser
	}

	d.byName[rec.Username] = rec
	d.ordered = append(d.ordered, rec)
	return nil
}

// Lookup returns the record for an active username.
func (d *Directory) Lookup(username string) (*UserRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.byName[username]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Remove deletes a username's record. Removing an absent username is a no-op;
// a record's removal is the sole responsibility of its owning session.
func (d *Directory) Remove(username string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.byName[username]; !ok {
		return
	}
	delete(d.byName, username)

	for i, rec := range d.ordered {
		if rec.Username == username {
			d.ordered = append(d.ordered[:i], d.ordered[i+1:]...)
			break
		}
	}
}

// IsActive reports whether a username has a live session.
func (d *Directory) IsActive(username string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.byName[username]
	return ok
}

// SnapshotExcluding returns all active records except the named user's, in
// registration order.
func (d *Directory) SnapshotExcluding(username string) []*UserRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*UserRecord, 0, len(d.ordered))
	for _, rec := range d.ordered {
		if rec.Username != username {
			out = append(out, rec)
		}
	}
	return out
}

// Snapshot returns all active records in registration order.
func (d *Directory) Snapshot() []*UserRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*UserRecord, len(d.ordered))
	copy(out, d.ordered)
	return out
}
