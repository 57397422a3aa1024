package server

import (
	"fmt"
	"strings"

	"github.com/aeolun/chatwire/pkg/protocol"
)

// dispatch routes a parsed command to its handler. Unknown actions get the
// generic invalid-command response; the parser never rejects them itself.
// Handlers return an error only for connection write failures.
func (s *Session) dispatch(cmd *protocol.Command) error {
	switch cmd.Action {
	case "/msgto":
		return s.handleMsgTo(cmd)
	case "/activeuser":
		return s.handleActiveUser(cmd)
	case "/creategroup":
		return s.handleCreateGroup(cmd)
	case "/joingroup":
		return s.handleJoinGroup(cmd)
	case "/groupmsg":
		return s.handleGroupMsg(cmd)
	case "/logout":
		return s.handleLogout(cmd)
	case "/p2pvideo":
		// Negotiated client-side over the UDP side channel using directory
		// data the client already has; nothing for the server to do.
		return nil
	default:
		return s.conn.WriteFrame("Error, Invalid command!")
	}
}

// handleMsgTo routes a direct message to another active user.
func (s *Session) handleMsgTo(cmd *protocol.Command) error {
	if len(cmd.Args) < 2 {
		return s.conn.WriteFrame("Error:/msgto: check arguments")
	}

	target := cmd.Args[0]
	if target == s.username {
		return s.conn.WriteFrame("Error:/msgto: Can't /msgto yourself")
	}

	msg := NewMessage(cmd.Body(1), s.username)
	if err := s.srv.router.SendDirect(msg, target); err != nil {
		return s.conn.WriteFrame(fmt.Sprintf("Error:/msgto: %s is not active", target))
	}

	debugLog.Printf("%s message to %s: %s, at %s", s.username, target, msg.Text, msg.Timestamp())
	return s.conn.WriteFrame(fmt.Sprintf("message sent at %s.", msg.Timestamp()))
}

// handleActiveUser returns the directory snapshot excluding the caller, in
// registration order.
func (s *Session) handleActiveUser(cmd *protocol.Command) error {
	if len(cmd.Args) != 0 {
		return s.conn.WriteFrame("Error:/activeuser: Too many arguments")
	}

	records := s.srv.directory.SnapshotExcluding(s.username)
	if len(records) == 0 {
		return s.conn.WriteFrame("no other active user")
	}

	lines := make([]string, len(records))
	for i, rec := range records {
		lines[i] = fmt.Sprintf("%s; %s; %s; %d", rec.JoinedAt.Format(auditTimeLayout), rec.Username, rec.Contact, rec.UDPPort)
	}
	return s.conn.WriteFrame(strings.Join(lines, "\n"))
}

// handleCreateGroup creates a group with the caller as creator plus the
// listed members. All-or-nothing: any validation failure creates nothing.
func (s *Session) handleCreateGroup(cmd *protocol.Command) error {
	if len(cmd.Args) < 2 {
		return s.conn.WriteFrame("Error:/creategroup: Not enough arguments")
	}

	name := cmd.Args[0]
	g, err := s.srv.groups.Create(name, s.username, cmd.Args[1:], s.srv.directory)
	switch err {
	case nil:
	case ErrInvalidGroupName:
		return s.conn.WriteFrame("Error:/creategroup: Invalid group name")
	case ErrGroupNameTaken:
		return s.conn.WriteFrame(fmt.Sprintf("Error:/creategroup: Failed to create the group chat %s groupname exists", name))
	case ErrMembersNotActive:
		return s.conn.WriteFrame("Error:/creategroup: one of groupmember not active or invalid")
	default:
		return s.conn.WriteFrame("Error:/creategroup: " + err.Error())
	}

	debugLog.Printf("%s created group %s with users: %s", s.username, name, g.MemberList())
	return s.conn.WriteFrame(fmt.Sprintf("Group chat room created, name %s users: %s", name, g.MemberList()))
}

// handleJoinGroup joins an existing group. Idempotent; joining has no
// activity precondition.
func (s *Session) handleJoinGroup(cmd *protocol.Command) error {
	if len(cmd.Args) != 1 {
		return s.conn.WriteFrame("Error:/joingroup: Not enough arguments")
	}

	name := cmd.Args[0]
	if err := s.srv.groups.Join(name, s.username); err != nil {
		return s.conn.WriteFrame("Error:/joingroup: Group doesn't exist")
	}
	return s.conn.WriteFrame(fmt.Sprintf("Join group chat: %s successfully", name))
}

// handleGroupMsg fans a message out to all group members except the sender.
func (s *Session) handleGroupMsg(cmd *protocol.Command) error {
	if len(cmd.Args) < 2 {
		return s.conn.WriteFrame("Error:/groupmsg: Check arguments")
	}

	name := cmd.Args[0]
	g, err := s.srv.groups.Get(name)
	if err != nil {
		return s.conn.WriteFrame(fmt.Sprintf("The group chat %s does not exist.", name))
	}
	if !g.IsMember(s.username) {
		return s.conn.WriteFrame(fmt.Sprintf("You are not in this group chat: %s", name))
	}

	msg := NewMessage(cmd.Body(1), s.username)
	delivered := s.srv.router.SendToGroup(msg, g)

	debugLog.Printf("%s message to %s: %s, at %s (delivered to %d)", s.username, name, msg.Text, msg.Timestamp(), delivered)
	return s.conn.WriteFrame(fmt.Sprintf("message sent at %s.", msg.Timestamp()))
}

// handleLogout releases the directory entry, says goodbye and sends the
// LOGOUT sentinel, then marks the session Terminated. The only handler that
// ends the connection.
func (s *Session) handleLogout(cmd *protocol.Command) error {
	if len(cmd.Args) != 0 {
		return s.conn.WriteFrame("Error:/logout: Too many arguments")
	}

	s.srv.directory.Remove(s.username)
	s.srv.writeUserSnapshot()

	if err := s.conn.WriteFrame(fmt.Sprintf("Bye, %s!", s.username)); err != nil {
		return err
	}
	if err := s.conn.WriteFrame("LOGOUT"); err != nil {
		return err
	}

	debugLog.Printf("%s logout", s.username)
	s.state = StateTerminated
	return nil
}
