package server

import (
	"errors"
	"regexp"
	"strings"
	"sync"
)

var (
	ErrInvalidGroupName = errors.New("invalid group name")
	ErrGroupNameTaken   = errors.New("group name already taken")
	ErrMembersNotActive = errors.New("one or more members not active")
	ErrGroupNotFound    = errors.New("group not found")

	groupNameRegex = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
)

// Group is a named, creator-owned set of usernames. The creator is always
// the first member. Membership grows via Join and never shrinks; members who
// later log out stay members (directory and group state are independently
// lived).
type Group struct {
	Name string

	mu      sync.RWMutex
	members []string
	log     *AuditLog // per-group message log
}

// Creator returns the group's creator (the first member).
func (g *Group) Creator() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.members[0]
}

// Members returns the member usernames in join order.
func (g *Group) Members() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]string, len(g.members))
	copy(out, g.members)
	return out
}

// IsMember reports whether username is in the group.
func (g *Group) IsMember(username string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.contains(username)
}

func (g *Group) contains(username string) bool {
	for _, m := range g.members {
		if m == username {
			return true
		}
	}
	return false
}

// join adds a username. Joining twice is a no-op, not an error.
func (g *Group) join(username string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.contains(username) {
		g.members = append(g.members, username)
	}
}

// MemberList formats the members as "a, b, c" for responses.
func (g *Group) MemberList() string {
	return strings.Join(g.Members(), ", ")
}

// GroupRegistry maps group names to groups. Creation validates membership
// against the directory at call time only; there is no cross-structure
// transaction, so a create racing a logout may succeed against a
// stale-but-recent snapshot. That is the defined consistency level.
type GroupRegistry struct {
	mu     sync.RWMutex
	groups map[string]*Group
	newLog func(groupName string) *AuditLog
}

// NewGroupRegistry creates a registry. newLog builds the per-group audit log
// (one log component parameterized by the group name; there is no special
// group-log type).
func NewGroupRegistry(newLog func(groupName string) *AuditLog) *GroupRegistry {
	return &GroupRegistry{
		groups: make(map[string]*Group),
		newLog: newLog,
	}
}

// Create registers a new group with the creator as first member followed by
// the listed members, deduplicated in order. All-or-nothing: on any
// validation failure nothing is created.
func (r *GroupRegistry) Create(name, creator string, members []string, directory *Directory) (*Group, error) {
	if !groupNameRegex.MatchString(name) {
		return nil, ErrInvalidGroupName
	}

	all := make([]string, 0, len(members)+1)
	all = append(all, creator)
	for _, m := range members {
		duplicate := false
		for _, seen := range all {
			if seen == m {
				duplicate = true
				break
			}
		}
		if !duplicate {
			all = append(all, m)
		}
	}

	// Membership check is snapshot-based: each member must be active now.
	for _, m := range all {
		if !directory.IsActive(m) {
			return nil, ErrMembersNotActive
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.groups[name]; exists {
		return nil, ErrGroupNameTaken
	}

	g := &Group{
		Name:    name,
		members: all,
		log:     r.newLog(name),
	}
	r.groups[name] = g
	return g, nil
}

// Join adds username to the named group. Idempotent; no activity
// precondition.
func (r *GroupRegistry) Join(name, username string) error {
	g, err := r.Get(name)
	if err != nil {
		return err
	}
	g.join(username)
	return nil
}

// Get returns the named group.
func (r *GroupRegistry) Get(name string) (*Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.groups[name]
	if !ok {
		return nil, ErrGroupNotFound
	}
	return g, nil
}

// Exists reports whether the named group has been created.
func (r *GroupRegistry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.groups[name]
	return ok
}

// IsMember reports whether username is a member of the named group.
func (r *GroupRegistry) IsMember(name, username string) bool {
	g, err := r.Get(name)
	if err != nil {
		return false
	}
	return g.IsMember(username)
}
