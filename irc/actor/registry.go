package actor

import (
	"strings"
	"time"

	"github.com/fluffle/goirc/logging"
	"github.com/google/uuid"

	dsync "github.com/icedream/chantrack/debug/sync"
	"github.com/icedream/chantrack/irc/cimap"
)

// DefaultRefreshInterval is the minimum time between two member list
// refreshes of the same incomplete channel.
const DefaultRefreshInterval = 5 * time.Second

// Registry resolves raw names into actors and owns the tracked channels of
// one client session.
type Registry struct {
	id              uuid.UUID
	info            ServerInfo
	sender          LineSender
	now             func() time.Time
	refreshInterval time.Duration

	mu      dsync.RWMutex
	tracked *cimap.Map[*Channel]
}

type Option func(*Registry)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func WithRefreshInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.refreshInterval = d
		}
	}
}

// New creates a registry for a new session.
func New(info ServerInfo, sender LineSender, opts ...Option) *Registry {
	if info == nil {
		panic("actor: server info must not be nil")
	}
	if sender == nil {
		panic("actor: line sender must not be nil")
	}
	r := &Registry{
		id:              uuid.New(),
		info:            info,
		sender:          sender,
		now:             time.Now,
		refreshInterval: DefaultRefreshInterval,
		tracked:         cimap.New[*Channel](info),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.mu.Name = "registry " + r.id.String()
	return r
}

// Now returns the current time of the registry's clock.
func (r *Registry) Now() time.Time {
	return r.now()
}

// ID distinguishes snapshots of this session from those of others.
func (r *Registry) ID() uuid.UUID {
	return r.id
}

func (r *Registry) snapshotBase(folder cimap.Folder, name string) snapshotBase {
	return snapshotBase{
		session: r.id,
		folder:  folder,
		name:    name,
		created: r.now(),
	}
}

// Resolve turns a raw name as seen on the wire into an actor. Tracked
// channels are returned as is; valid but untracked channel names produce a
// new, untracked channel.
func (r *Registry) Resolve(raw string) Actor {
	if raw == "" {
		panic("actor: name must not be empty")
	}
	switch id := Classify(raw, r.info.IsValidChannelName).(type) {
	case UserIdentity:
		return r.newUser(raw, id)
	case ChannelIdentity:
		if ch, ok := r.Channel(id.Name); ok {
			return ch
		}
	}
	return &Generic{reg: r, name: raw}
}

// User resolves mask into a user. Masks that are not in nick!user@host
// shape are taken as a bare nickname.
func (r *Registry) User(mask string) *User {
	if mask == "" {
		panic("actor: mask must not be empty")
	}
	if id, ok := Classify(mask, nil).(UserIdentity); ok {
		return r.newUser(mask, id)
	}
	return r.nickOnlyUser(mask)
}

func (r *Registry) newUser(mask string, id UserIdentity) *User {
	return &User{reg: r, mask: mask, nick: id.Nick, user: id.User, host: id.Host}
}

func (r *Registry) nickOnlyUser(nick string) *User {
	return &User{reg: r, mask: nick, nick: nick}
}

// Channel returns the tracked channel called name, or a new untracked one if
// name is a valid channel name.
func (r *Registry) Channel(name string) (*Channel, bool) {
	r.mu.RLock()
	ch, ok := r.tracked.Get(name)
	r.mu.RUnlock()
	if ok {
		return ch, true
	}
	if name == "" || !r.info.IsValidChannelName(name) {
		return nil, false
	}
	return r.newChannel(name), true
}

func (r *Registry) newChannel(name string) *Channel {
	ch := &Channel{
		reg:         r,
		name:        name,
		members:     cimap.New[*member](r.info),
		lastRefresh: r.now(),
	}
	ch.mu.Name = "channel " + name
	return ch
}

// TrackedChannel returns the channel only if it is tracked.
func (r *Registry) TrackedChannel(name string) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tracked.Get(name)
}

// Track starts tracking ch, replacing any other channel of the same name.
func (r *Registry) Track(ch *Channel) {
	r.requireOwn(ch)
	ch.setTracked(true)
	r.mu.Lock()
	old, replaced := r.tracked.Get(ch.name)
	r.tracked.Put(ch.name, ch)
	r.mu.Unlock()
	if replaced && old != ch {
		old.setTracked(false)
	}
	logging.Debug("Tracking %v", ch.name)
}

// Untrack stops tracking ch. Snapshots taken before stay valid.
func (r *Registry) Untrack(ch *Channel) {
	r.requireOwn(ch)
	r.mu.Lock()
	if current, ok := r.tracked.Get(ch.name); ok && current == ch {
		r.tracked.Delete(ch.name)
	}
	r.mu.Unlock()
	ch.setTracked(false)
	logging.Debug("No longer tracking %v", ch.name)
}

// UntrackAll stops tracking every channel, for example after a disconnect.
func (r *Registry) UntrackAll() {
	for _, ch := range r.TrackedChannels() {
		r.Untrack(ch)
	}
}

func (r *Registry) requireOwn(ch *Channel) {
	if ch == nil {
		panic("actor: channel must not be nil")
	}
	if ch.reg != r {
		panic("actor: channel belongs to another registry")
	}
}

// TrackedChannels returns the tracked channels in the order they were first
// tracked.
func (r *Registry) TrackedChannels() []*Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tracked.Values()
}

// Snapshots takes a snapshot of every tracked channel.
func (r *Registry) Snapshots() []*ChannelSnapshot {
	channels := r.TrackedChannels()
	snapshots := make([]*ChannelSnapshot, 0, len(channels))
	for _, ch := range channels {
		snapshots = append(snapshots, ch.ChannelSnapshot())
	}
	return snapshots
}

// RenameUser applies a nick change to every tracked channel and returns the
// user under the new nickname.
func (r *Registry) RenameUser(old *User, newNick string) *User {
	if old == nil {
		panic("actor: user must not be nil")
	}
	if newNick == "" || strings.ContainsAny(newNick, "!@ ") {
		panic("actor: invalid nickname " + newNick)
	}
	var newUser *User
	if i := strings.IndexByte(old.mask, '!'); i >= 0 {
		newUser = r.User(newNick + old.mask[i:])
	} else {
		newUser = r.nickOnlyUser(newNick)
	}
	for _, ch := range r.TrackedChannels() {
		ch.TrackRename(old.nick, newUser)
	}
	return newUser
}

// DropUser removes the user from every tracked channel, as on QUIT.
func (r *Registry) DropUser(user *User) {
	if user == nil {
		panic("actor: user must not be nil")
	}
	for _, ch := range r.TrackedChannels() {
		ch.TrackQuit(user.nick)
	}
}

// channelsOf returns the names of the tracked channels nick is in.
func (r *Registry) channelsOf(nick string) []string {
	var names []string
	for _, ch := range r.TrackedChannels() {
		if ch.HasMember(nick) {
			names = append(names, ch.name)
		}
	}
	return names
}

// membershipIndex maps every nickname in a tracked channel to the names of
// the tracked channels it is in.
func (r *Registry) membershipIndex(folder cimap.Folder) *cimap.Map[[]string] {
	index := cimap.New[[]string](folder)
	for _, ch := range r.TrackedChannels() {
		for _, nick := range ch.Nicknames() {
			names, _ := index.Get(nick)
			index.Put(nick, append(names, ch.name))
		}
	}
	return index
}
