// Package actor keeps the live model of the channels a client is in and
// hands out immutable snapshots of it.
//
// Mutations are expected to come from a single protocol event processor,
// while snapshots may be taken from any number of goroutines.
package actor

import (
	"sort"

	"github.com/icedream/chantrack/irc/cimap"
)

// ServerInfo provides the naming rules of the server a session is connected
// to.
type ServerInfo interface {
	cimap.Folder
	IsValidChannelName(name string) bool

	// Folder returns the folder of the case mapping in effect right now.
	// Snapshots keep the one that was current when they were taken.
	Folder() cimap.Folder
}

// LineSender sends a raw protocol line unless an identical one is already
// pending. Implementations must not block.
type LineSender interface {
	SendAvoidingDuplication(line string)
}

// Mode is a channel user mode such as operator (o, @) or voice (v, +).
type Mode struct {
	Letter rune
	Prefix rune
}

func (m Mode) String() string {
	return string(m.Letter)
}

// ModeSet is a set of channel user modes.
type ModeSet map[Mode]struct{}

func NewModeSet(modes ...Mode) ModeSet {
	s := make(ModeSet, len(modes))
	for _, m := range modes {
		s[m] = struct{}{}
	}
	return s
}

func (s ModeSet) Has(m Mode) bool {
	_, ok := s[m]
	return ok
}

func (s ModeSet) Clone() ModeSet {
	c := make(ModeSet, len(s))
	for m := range s {
		c[m] = struct{}{}
	}
	return c
}

// Slice returns the modes ordered by letter.
func (s ModeSet) Slice() []Mode {
	modes := make([]Mode, 0, len(s))
	for m := range s {
		modes = append(modes, m)
	}
	sort.Slice(modes, func(i, j int) bool {
		return modes[i].Letter < modes[j].Letter
	})
	return modes
}

// Actor is anything with a name in the protocol's namespace. It is one of
// *Generic, *Channel or *User.
type Actor interface {
	Name() string
	Snapshot() Snapshot
	isActor()
}

// Generic is an actor that is neither a user nor a channel, for example a
// server or service name.
type Generic struct {
	reg  *Registry
	name string
}

func (g *Generic) isActor() {}

func (g *Generic) Name() string {
	return g.name
}

func (g *Generic) Snapshot() Snapshot {
	return &GenericSnapshot{snapshotBase: g.reg.snapshotBase(g.reg.info.Folder(), g.name)}
}

// User is a user identity parsed from a nick!user@host mask. Users are
// created fresh on every resolution and never change afterwards.
type User struct {
	reg              *Registry
	mask             string
	nick, user, host string
}

func (u *User) isActor() {}

// Name returns the full hostmask, or just the nickname if the user was only
// known by nickname.
func (u *User) Name() string {
	return u.mask
}

func (u *User) Nick() string {
	return u.nick
}

// User returns the ident, which may be empty for users only known by
// nickname.
func (u *User) User() string {
	return u.user
}

func (u *User) Host() string {
	return u.host
}

func (u *User) Snapshot() Snapshot {
	return u.UserSnapshot()
}

// UserSnapshot captures the user together with the tracked channels the
// nickname currently appears in.
func (u *User) UserSnapshot() *UserSnapshot {
	return u.snapshotWith(u.reg.info.Folder(), u.reg.channelsOf(u.nick))
}

func (u *User) snapshotWith(folder cimap.Folder, channels []string) *UserSnapshot {
	sort.Strings(channels)
	return &UserSnapshot{
		snapshotBase: u.reg.snapshotBase(folder, u.mask),
		nick:         u.nick,
		user:         u.user,
		host:         u.host,
		channels:     channels,
	}
}
