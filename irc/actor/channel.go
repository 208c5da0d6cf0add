package actor

import (
	"time"

	"github.com/fluffle/goirc/logging"

	dsync "github.com/icedream/chantrack/debug/sync"
	"github.com/icedream/chantrack/irc/cimap"
)

type member struct {
	user  *User
	modes ModeSet
}

// Channel is the live state of a channel. It is owned by its Registry while
// tracked; every field below mu is guarded by it.
type Channel struct {
	reg  *Registry
	name string

	mu          dsync.Mutex
	members     *cimap.Map[*member]
	topic       string
	topicTime   time.Time
	topicSetter Snapshot
	complete    bool
	tracked     bool
	lastRefresh time.Time
}

func (c *Channel) isActor() {}

func (c *Channel) Name() string {
	return c.name
}

func (c *Channel) IsTracked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracked
}

func (c *Channel) IsComplete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.complete
}

func (c *Channel) HasMember(nick string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.members.Has(nick)
}

// setTracked flips the tracked flag. Each tracking lifetime starts over with
// an unconfirmed member list.
func (c *Channel) setTracked(tracked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tracked && !c.tracked {
		c.complete = false
		c.lastRefresh = c.reg.now()
	}
	c.tracked = tracked
}

// memberLocked returns the entry for nick, creating an empty one for
// nicknames that were not known yet.
func (c *Channel) memberLocked(nick string) *member {
	m, ok := c.members.Get(nick)
	if !ok {
		m = &member{user: c.reg.nickOnlyUser(nick), modes: ModeSet{}}
		c.members.Put(nick, m)
	}
	return m
}

// TrackJoin adds user to the member list, replacing any previous entry for
// the nickname. modes may be nil.
func (c *Channel) TrackJoin(user *User, modes ModeSet) {
	if user == nil {
		panic("actor: user must not be nil")
	}
	if modes == nil {
		modes = ModeSet{}
	} else {
		modes = modes.Clone()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.members.Put(user.nick, &member{user: user, modes: modes})
}

// TrackNick merges modes into the entry for a nickname that was reported
// without a hostmask, as in a NAMES reply.
func (c *Channel) TrackNick(nick string, modes ModeSet) {
	requireNick(nick)
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.memberLocked(nick)
	for mode := range modes {
		m.modes[mode] = struct{}{}
	}
}

// TrackPart removes nick from the member list. Unknown nicknames are
// ignored.
func (c *Channel) TrackPart(nick string) {
	requireNick(nick)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.members.Delete(nick)
}

// TrackQuit is TrackPart; which channels a quit touches is up to the caller.
func (c *Channel) TrackQuit(nick string) {
	c.TrackPart(nick)
}

func (c *Channel) TrackModeAdd(nick string, mode Mode) {
	requireNick(nick)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memberLocked(nick).modes[mode] = struct{}{}
}

func (c *Channel) TrackModeRemove(nick string, mode Mode) {
	requireNick(nick)
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.memberLocked(nick).modes, mode)
}

// TrackRename moves the entry of oldNick over to newUser, keeping its modes.
// Nothing happens if oldNick is not a member.
func (c *Channel) TrackRename(oldNick string, newUser *User) {
	requireNick(oldNick)
	if newUser == nil {
		panic("actor: user must not be nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.members.Delete(oldNick)
	if !ok {
		return
	}
	c.members.Put(newUser.nick, &member{user: newUser, modes: m.modes})
}

// SetTopic sets the topic text and forgets who set it and when.
func (c *Channel) SetTopic(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topic = text
	c.topicTime = time.Time{}
	c.topicSetter = nil
}

// SetTopicProvenance records when and by whom the current topic was set,
// leaving its text alone.
func (c *Channel) SetTopicProvenance(when time.Time, setter Actor) {
	if setter == nil {
		panic("actor: setter must not be nil")
	}
	// Taken before locking, user snapshots look at every tracked channel.
	snapshot := setter.Snapshot()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topicTime = when
	c.topicSetter = snapshot
}

// MarkListComplete records that the server confirmed the member list.
func (c *Channel) MarkListComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.complete = true
}

func (c *Channel) Snapshot() Snapshot {
	return c.ChannelSnapshot()
}

// ChannelSnapshot copies the channel's state. While the channel is tracked
// but its member list unconfirmed, this also asks the server for the member
// list again, at most once per refresh interval.
func (c *Channel) ChannelSnapshot() *ChannelSnapshot {
	r := c.reg
	folder := r.info.Folder()

	c.mu.Lock()
	if c.tracked && !c.complete {
		if now := r.now(); now.Sub(c.lastRefresh) >= r.refreshInterval {
			c.lastRefresh = now
			logging.Debug("Member list of %v is incomplete, refreshing", c.name)
			r.sender.SendAvoidingDuplication("WHO " + c.name)
		}
	}
	nicknames := c.members.Keys()
	users := make([]*User, 0, len(nicknames))
	modes := cimap.New[ModeSet](folder)
	c.members.Range(func(nick string, m *member) bool {
		users = append(users, m.user)
		modes.Put(nick, m.modes.Clone())
		return true
	})
	complete := c.complete
	topic := Topic{Text: c.topic, Time: c.topicTime, Setter: c.topicSetter}
	c.mu.Unlock()

	// Never hold two channel locks at once: the index locks each tracked
	// channel in turn, this one included.
	index := r.membershipIndex(folder)
	byNick := cimap.New[*UserSnapshot](folder)
	snapshots := make([]*UserSnapshot, 0, len(users))
	for _, u := range users {
		channels, _ := index.Get(u.nick)
		us := u.snapshotWith(folder, append([]string(nil), channels...))
		snapshots = append(snapshots, us)
		byNick.Put(u.nick, us)
	}

	return &ChannelSnapshot{
		snapshotBase: r.snapshotBase(folder, c.name),
		nicknames:    nicknames,
		users:        snapshots,
		byNick:       byNick,
		modes:        modes,
		complete:     complete,
		topic:        topic,
	}
}

// Nicknames returns the current members' nicknames without the side effects
// of taking a snapshot.
func (c *Channel) Nicknames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.members.Keys()
}

func requireNick(nick string) {
	if nick == "" {
		panic("actor: nick must not be empty")
	}
}
