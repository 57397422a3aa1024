package server

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *GroupRegistry {
	t.Helper()
	dir := t.TempDir()
	return NewGroupRegistry(func(groupName string) *AuditLog {
		return NewAuditLog(filepath.Join(dir, groupName+"_messagelog.txt"))
	})
}

func activeDirectory(t *testing.T, usernames ...string) *Directory {
	t.Helper()
	d := NewDirectory()
	for _, u := range usernames {
		require.NoError(t, d.Register(record(u)))
	}
	return d
}

func TestGroupCreate(t *testing.T) {
	r := testRegistry(t)
	d := activeDirectory(t, "alice", "bob", "carol")

	g, err := r.Create("mygroup", "alice", []string{"bob", "carol"}, d)
	require.NoError(t, err)

	assert.Equal(t, "alice", g.Creator())
	assert.Equal(t, []string{"alice", "bob", "carol"}, g.Members())
	assert.Equal(t, "alice, bob, carol", g.MemberList())
	assert.True(t, r.Exists("mygroup"))
}

func TestGroupCreateDeduplicatesMembers(t *testing.T) {
	r := testRegistry(t)
	d := activeDirectory(t, "alice", "bob")

	// The creator listing themselves, or a member listed twice, collapses.
	g, err := r.Create("mygroup", "alice", []string{"bob", "alice", "bob"}, d)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, g.Members())
}

func TestGroupCreateInvalidName(t *testing.T) {
	r := testRegistry(t)
	d := activeDirectory(t, "alice", "bob")

	for _, name := range []string{"my group", "my-group", "group!", "", "grüppe"} {
		_, err := r.Create(name, "alice", []string{"bob"}, d)
		assert.ErrorIs(t, err, ErrInvalidGroupName, "name %q", name)
	}
}

func TestGroupCreateNameTaken(t *testing.T) {
	r := testRegistry(t)
	d := activeDirectory(t, "alice", "bob")

	_, err := r.Create("mygroup", "alice", []string{"bob"}, d)
	require.NoError(t, err)

	_, err = r.Create("mygroup", "bob", []string{"alice"}, d)
	assert.ErrorIs(t, err, ErrGroupNameTaken)
}

func TestGroupCreateAllOrNothing(t *testing.T) {
	r := testRegistry(t)
	d := activeDirectory(t, "alice", "bob")

	// carol is not active, so nothing is created at all.
	_, err := r.Create("mygroup", "alice", []string{"bob", "carol"}, d)
	assert.ErrorIs(t, err, ErrMembersNotActive)
	assert.False(t, r.Exists("mygroup"))
}

func TestGroupJoin(t *testing.T) {
	r := testRegistry(t)
	d := activeDirectory(t, "alice", "bob")

	_, err := r.Create("mygroup", "alice", []string{"bob"}, d)
	require.NoError(t, err)

	require.NoError(t, r.Join("mygroup", "dave"))
	assert.True(t, r.IsMember("mygroup", "dave"))

	// Joining twice keeps a single entry.
	require.NoError(t, r.Join("mygroup", "dave"))
	g, err := r.Get("mygroup")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "dave"}, g.Members())
}

func TestGroupJoinMissingGroup(t *testing.T) {
	r := testRegistry(t)

	err := r.Join("nope", "alice")
	assert.ErrorIs(t, err, ErrGroupNotFound)
	assert.False(t, r.IsMember("nope", "alice"))
}

func TestGroupMembershipSurvivesLogout(t *testing.T) {
	r := testRegistry(t)
	d := activeDirectory(t, "alice", "bob")

	g, err := r.Create("mygroup", "alice", []string{"bob"}, d)
	require.NoError(t, err)

	d.Remove("bob")
	assert.True(t, g.IsMember("bob"))
}
