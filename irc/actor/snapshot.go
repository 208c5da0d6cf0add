package actor

import (
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/icedream/chantrack/irc/cimap"
)

// Snapshot is an immutable view of an actor at one point in time. It is one
// of *GenericSnapshot, *ChannelSnapshot or *UserSnapshot.
//
// Two snapshots of the same kind are equal if they come from the same
// session and their names fold to the same value.
type Snapshot interface {
	Name() string
	CreatedAt() time.Time
	Session() uuid.UUID
	Equal(other Snapshot) bool
	Hash() uint64
	isSnapshot()
}

type snapshotBase struct {
	session uuid.UUID
	folder  cimap.Folder
	name    string
	created time.Time
}

func (b *snapshotBase) isSnapshot() {}

func (b *snapshotBase) Name() string {
	return b.name
}

func (b *snapshotBase) CreatedAt() time.Time {
	return b.created
}

// Session identifies the registry the snapshot was taken from.
func (b *snapshotBase) Session() uuid.UUID {
	return b.session
}

func (b *snapshotBase) sameAs(o *snapshotBase) bool {
	return b.session == o.session &&
		b.folder.Fold(b.name) == b.folder.Fold(o.name)
}

func (b *snapshotBase) hash(kind byte) uint64 {
	d := xxhash.New()
	d.Write(b.session[:])
	d.Write([]byte{kind})
	d.WriteString(b.folder.Fold(b.name))
	return d.Sum64()
}

// GenericSnapshot is the snapshot of an actor that is neither user nor
// channel.
type GenericSnapshot struct {
	snapshotBase
}

func (s *GenericSnapshot) Equal(other Snapshot) bool {
	o, ok := other.(*GenericSnapshot)
	return ok && o != nil && s.sameAs(&o.snapshotBase)
}

func (s *GenericSnapshot) Hash() uint64 {
	return s.hash('g')
}

// Topic is a channel topic. Time is zero and Setter nil when the topic was
// learned without provenance.
type Topic struct {
	Text   string
	Time   time.Time
	Setter Snapshot
}

// HasProvenance reports whether time and setter of the topic are known.
func (t Topic) HasProvenance() bool {
	return !t.Time.IsZero() && t.Setter != nil
}

// ChannelSnapshot is an immutable copy of a channel's state. Names are
// compared under the case mapping in effect when it was taken.
type ChannelSnapshot struct {
	snapshotBase
	nicknames []string
	users     []*UserSnapshot
	byNick    *cimap.Map[*UserSnapshot]
	modes     *cimap.Map[ModeSet]
	complete  bool
	topic     Topic
}

// RFC 2812 section 1.3: channel names are case insensitive.
func (s *ChannelSnapshot) Equal(other Snapshot) bool {
	o, ok := other.(*ChannelSnapshot)
	return ok && o != nil && s.sameAs(&o.snapshotBase)
}

func (s *ChannelSnapshot) Hash() uint64 {
	return s.hash('c')
}

// MessagingName is the target to use when messaging the channel.
func (s *ChannelSnapshot) MessagingName() string {
	return s.name
}

// Nicknames returns the members' nicknames in join order.
func (s *ChannelSnapshot) Nicknames() []string {
	return append([]string(nil), s.nicknames...)
}

// Users returns the members in join order.
//
// The channels of each user are collected after the member list was copied,
// so a user who left in between may not list this channel any more.
func (s *ChannelSnapshot) Users() []*UserSnapshot {
	return append([]*UserSnapshot(nil), s.users...)
}

func (s *ChannelSnapshot) User(nick string) (*UserSnapshot, bool) {
	if nick == "" {
		panic("actor: nick must not be empty")
	}
	return s.byNick.Get(nick)
}

// UserModes returns a copy of the modes the member holds.
func (s *ChannelSnapshot) UserModes(nick string) (ModeSet, bool) {
	if nick == "" {
		panic("actor: nick must not be empty")
	}
	modes, ok := s.modes.Get(nick)
	if !ok {
		return nil, false
	}
	return modes.Clone(), true
}

func (s *ChannelSnapshot) Topic() Topic {
	return s.topic
}

// IsComplete reports whether the server had confirmed the member list when
// the snapshot was taken.
func (s *ChannelSnapshot) IsComplete() bool {
	return s.complete
}

// UserSnapshot is an immutable copy of a user together with the channels the
// nickname was seen in at capture time.
type UserSnapshot struct {
	snapshotBase
	nick, user, host string
	channels         []string
}

func (s *UserSnapshot) Equal(other Snapshot) bool {
	o, ok := other.(*UserSnapshot)
	return ok && o != nil && s.sameAs(&o.snapshotBase)
}

func (s *UserSnapshot) Hash() uint64 {
	return s.hash('u')
}

func (s *UserSnapshot) MessagingName() string {
	return s.nick
}

func (s *UserSnapshot) Nick() string {
	return s.nick
}

func (s *UserSnapshot) User() string {
	return s.user
}

func (s *UserSnapshot) Host() string {
	return s.host
}

// Channels returns the names of the tracked channels the user was in, sorted.
func (s *UserSnapshot) Channels() []string {
	return append([]string(nil), s.channels...)
}

func (s *UserSnapshot) InChannel(name string) bool {
	folded := s.folder.Fold(name)
	for _, channel := range s.channels {
		if s.folder.Fold(channel) == folded {
			return true
		}
	}
	return false
}
