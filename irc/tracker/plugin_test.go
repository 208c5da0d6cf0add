package tracker

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fluffle/goirc/client"
	"github.com/fluffle/goirc/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icedream/chantrack/irc/actor"
	"github.com/icedream/chantrack/irc/isupport"
	"github.com/icedream/chantrack/irc/mode"
)

type fakeConn struct {
	nick     string
	handlers map[string][]client.HandlerFunc
}

type remover func()

func (r remover) Remove() { r() }

func (c *fakeConn) HandleFunc(name string, hf client.HandlerFunc) client.Remover {
	if c.handlers == nil {
		c.handlers = map[string][]client.HandlerFunc{}
	}
	c.handlers[name] = append(c.handlers[name], hf)
	return remover(func() {})
}

func (c *fakeConn) Me() *state.Nick {
	return &state.Nick{Nick: c.nick}
}

// send dispatches a line as goirc would, with the source split up.
func (c *fakeConn) send(src, cmd string, args ...string) {
	line := &client.Line{Src: src, Cmd: cmd, Args: args, Time: time.Unix(1700000000, 0)}
	line.Nick = src
	if nick, rest, ok := strings.Cut(src, "!"); ok {
		line.Nick = nick
		line.Ident, line.Host, _ = strings.Cut(rest, "@")
	}
	for _, hf := range c.handlers[cmd] {
		hf(nil, line)
	}
}

type recordingSender struct {
	mu    sync.Mutex
	lines []string
}

func (s *recordingSender) SendAvoidingDuplication(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
}

func (s *recordingSender) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

type testEnv struct {
	conn    *fakeConn
	sender  *recordingSender
	now     time.Time
	tracker *Plugin
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		conn:   &fakeConn{nick: "me"},
		sender: &recordingSender{},
		now:    time.Unix(1700000000, 0),
	}
	is := isupport.New(env.conn)
	is.Supports().Set("PREFIX", "(ov)@+")
	is.Supports().Set("CASEMAPPING", "rfc1459")
	modes := mode.New(env.conn, is)
	registry := actor.New(is, env.sender, actor.WithClock(func() time.Time { return env.now }))
	env.tracker = New(env.conn, registry, is, modes)
	return env
}

func (env *testEnv) joinSelf(t *testing.T, channel string) {
	t.Helper()
	env.conn.send("me!bot@bot.host", client.JOIN, channel)
}

func (env *testEnv) snapshot(t *testing.T, channel string) *actor.ChannelSnapshot {
	t.Helper()
	snap, ok := env.tracker.Channel(channel)
	require.True(t, ok, "%v is not tracked", channel)
	return snap
}

var (
	op    = actor.Mode{Letter: 'o', Prefix: '@'}
	voice = actor.Mode{Letter: 'v', Prefix: '+'}
)

func TestTracker_JoinAndNames(t *testing.T) {
	env := newTestEnv(t)

	env.joinSelf(t, "#Chan")
	require.NotNil(t, env.tracker.Me())
	assert.Equal(t, "me!bot@bot.host", env.tracker.Me().Name())

	snap := env.snapshot(t, "#chan")
	assert.False(t, snap.IsComplete())
	assert.Equal(t, []string{"me"}, snap.Nicknames())

	env.conn.send("irc.server", "353", "me", "=", "#chan", "me @alice +bob @+carol")
	env.conn.send("irc.server", "366", "me", "#chan", "End of /NAMES list.")

	snap = env.snapshot(t, "#CHAN")
	assert.True(t, snap.IsComplete())
	assert.Equal(t, []string{"me", "alice", "bob", "carol"}, snap.Nicknames())
	modes, _ := snap.UserModes("carol")
	assert.Equal(t, []actor.Mode{op, voice}, modes.Slice())
	modes, _ = snap.UserModes("bob")
	assert.Equal(t, []actor.Mode{voice}, modes.Slice())

	me, ok := snap.User("me")
	require.True(t, ok)
	assert.Equal(t, "bot.host", me.Host())
	assert.Equal(t, []string{"#Chan"}, me.Channels())
}

func TestTracker_UserhostInNames(t *testing.T) {
	env := newTestEnv(t)
	env.joinSelf(t, "#chan")

	env.conn.send("irc.server", "353", "me", "=", "#chan", "@alice!a@a.host me!bot@bot.host")
	env.conn.send("irc.server", "366", "me", "#chan", "End of /NAMES list.")

	alice, ok := env.snapshot(t, "#chan").User("alice")
	require.True(t, ok)
	assert.Equal(t, "a", alice.User())
	assert.Equal(t, "a.host", alice.Host())
}

func TestTracker_OthersJoinPartKickQuit(t *testing.T) {
	env := newTestEnv(t)
	env.joinSelf(t, "#a")
	env.joinSelf(t, "#b")

	env.conn.send("alice!a@host", client.JOIN, "#a")
	env.conn.send("alice!a@host", client.JOIN, "#b")
	env.conn.send("bob!b@host", client.JOIN, "#a")
	env.conn.send("carol!c@host", client.JOIN, "#a")
	env.conn.send("dave!d@host", client.JOIN, "#untracked")

	env.conn.send("bob!b@host", client.PART, "#a", "bye")
	env.conn.send("me!bot@bot.host", client.KICK, "#a", "carol", "go away")
	env.conn.send("alice!a@host", client.QUIT, "Quit: leaving")

	assert.Equal(t, []string{"me"}, env.snapshot(t, "#a").Nicknames())
	assert.Equal(t, []string{"me"}, env.snapshot(t, "#b").Nicknames())
	_, ok := env.tracker.Channel("#untracked")
	assert.False(t, ok)
}

func TestTracker_NickChange(t *testing.T) {
	env := newTestEnv(t)
	env.joinSelf(t, "#a")
	env.conn.send("alice!a@host", client.JOIN, "#a")
	env.conn.send("me!bot@bot.host", client.MODE, "#a", "+o", "alice")

	env.conn.send("alice!a@host", client.NICK, "alicia")

	snap := env.snapshot(t, "#a")
	assert.Equal(t, []string{"me", "alicia"}, snap.Nicknames())
	modes, ok := snap.UserModes("alicia")
	require.True(t, ok)
	assert.True(t, modes.Has(op))
	u, _ := snap.User("alicia")
	assert.Equal(t, "alicia!a@host", u.Name())
}

func TestTracker_OwnNickChange(t *testing.T) {
	env := newTestEnv(t)
	env.joinSelf(t, "#a")

	env.conn.nick = "newme"
	env.conn.send("me!bot@bot.host", client.NICK, "newme")

	require.NotNil(t, env.tracker.Me())
	assert.Equal(t, "newme!bot@bot.host", env.tracker.Me().Name())
	assert.Equal(t, []string{"newme"}, env.snapshot(t, "#a").Nicknames())
}

func TestTracker_InvalidNickChangeIgnored(t *testing.T) {
	env := newTestEnv(t)
	env.joinSelf(t, "#a")
	env.conn.send("alice!a@host", client.JOIN, "#a")

	env.conn.send("alice!a@host", client.NICK, "bad!nick")

	assert.Equal(t, []string{"me", "alice"}, env.snapshot(t, "#a").Nicknames())
}

func TestTracker_ModeChanges(t *testing.T) {
	env := newTestEnv(t)
	env.joinSelf(t, "#a")
	env.conn.send("alice!a@host", client.JOIN, "#a")

	env.conn.send("chanserv!s@services", client.MODE, "#a", "+ov-v+n", "alice", "alice", "alice")
	modes, _ := env.snapshot(t, "#a").UserModes("alice")
	assert.Equal(t, []actor.Mode{op}, modes.Slice())

	env.conn.send("chanserv!s@services", client.MODE, "#a", "-o", "ALICE")
	modes, _ = env.snapshot(t, "#a").UserModes("alice")
	assert.Empty(t, modes)
}

func TestTracker_Topic(t *testing.T) {
	env := newTestEnv(t)
	env.joinSelf(t, "#a")

	env.conn.send("irc.server", "332", "me", "#a", "Welcome to #a")
	topic := env.snapshot(t, "#a").Topic()
	assert.Equal(t, "Welcome to #a", topic.Text)
	assert.False(t, topic.HasProvenance())

	env.conn.send("irc.server", "333", "me", "#a", "alice!a@host", "1600000000")
	topic = env.snapshot(t, "#a").Topic()
	require.True(t, topic.HasProvenance())
	assert.Equal(t, time.Unix(1600000000, 0), topic.Time)
	assert.Equal(t, "alice!a@host", topic.Setter.Name())

	env.conn.send("bob!b@host", client.TOPIC, "#a", "New topic")
	topic = env.snapshot(t, "#a").Topic()
	assert.Equal(t, "New topic", topic.Text)
	setter, ok := topic.Setter.(*actor.UserSnapshot)
	require.True(t, ok)
	assert.Equal(t, "bob", setter.Nick())
	assert.Equal(t, time.Unix(1700000000, 0), topic.Time)

	env.conn.send("irc.server", "333", "me", "#a", "services.net", "1600000000")
	_, ok = env.snapshot(t, "#a").Topic().Setter.(*actor.GenericSnapshot)
	assert.True(t, ok, "servers can set topics too")

	env.conn.send("irc.server", "331", "me", "#a", "No topic is set")
	assert.Empty(t, env.snapshot(t, "#a").Topic().Text)
}

func TestTracker_TopicWithoutServerTimeUsesRegistryClock(t *testing.T) {
	env := newTestEnv(t)
	env.joinSelf(t, "#a")
	env.now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	env.tracker.handleTopic(&client.Line{
		Src: "bob!b@host", Nick: "bob", Ident: "b", Host: "host",
		Cmd: client.TOPIC, Args: []string{"#a", "Clockwork"},
	})

	topic := env.snapshot(t, "#a").Topic()
	assert.Equal(t, "Clockwork", topic.Text)
	assert.Equal(t, env.now, topic.Time)
}

func TestTracker_SnapshotsSurviveCaseMappingReset(t *testing.T) {
	env := newTestEnv(t)
	env.tracker.isupport.Supports().Set("CASEMAPPING", "ascii")
	env.joinSelf(t, "#a[")
	env.conn.send("irc.server", "353", "me", "=", "#a[", "me @Nick[")

	snap := env.snapshot(t, "#a[")
	other, ok := env.tracker.Registry().Channel("#a{")
	require.True(t, ok)
	otherSnap := other.ChannelSnapshot()
	hash := snap.Hash()
	require.False(t, snap.Equal(otherSnap))

	// Falls back to rfc1459, where "[" and "{" fold together.
	env.conn.send("", client.DISCONNECTED)

	assert.Equal(t, hash, snap.Hash())
	assert.False(t, snap.Equal(otherSnap))
	modes, ok := snap.UserModes("Nick[")
	require.True(t, ok)
	assert.Equal(t, []actor.Mode{op}, modes.Slice())
}

func TestTracker_WhoRefreshConverges(t *testing.T) {
	env := newTestEnv(t)
	env.joinSelf(t, "#a")
	env.conn.send("alice!a@host", client.JOIN, "#a")
	env.conn.send("ghost!g@host", client.JOIN, "#a")

	env.now = env.now.Add(10 * time.Second)
	env.snapshot(t, "#a")
	assert.Equal(t, []string{"WHO #a"}, env.sender.Lines())

	env.conn.send("irc.server", "352", "me", "#a", "bot", "bot.host", "irc.server", "me", "H", "0 Bot")
	env.conn.send("irc.server", "352", "me", "#a", "a", "new.host", "irc.server", "alice", "G@", "0 Alice")
	env.conn.send("irc.server", "352", "me", "#a", "b", "host", "irc.server", "bob", "H+", "0 Bob")
	env.conn.send("irc.server", "315", "me", "#a", "End of /WHO list.")

	snap := env.snapshot(t, "#a")
	assert.True(t, snap.IsComplete())
	assert.Equal(t, []string{"me", "alice", "bob"}, snap.Nicknames())
	alice, _ := snap.User("alice")
	assert.Equal(t, "new.host", alice.Host())
	modes, _ := snap.UserModes("alice")
	assert.Equal(t, []actor.Mode{op}, modes.Slice())

	env.now = env.now.Add(time.Minute)
	env.snapshot(t, "#a")
	assert.Len(t, env.sender.Lines(), 1, "complete channels are not refreshed")
}

func TestTracker_SelfLeaves(t *testing.T) {
	env := newTestEnv(t)
	env.joinSelf(t, "#a")
	env.joinSelf(t, "#b")
	env.joinSelf(t, "#c")
	before := env.snapshot(t, "#a")

	env.conn.send("me!bot@bot.host", client.PART, "#a")
	env.conn.send("op!o@host", client.KICK, "#b", "ME", "bye")

	_, ok := env.tracker.Channel("#a")
	assert.False(t, ok)
	_, ok = env.tracker.Channel("#b")
	assert.False(t, ok)
	assert.Len(t, env.tracker.Channels(), 1)
	assert.Equal(t, []string{"me"}, before.Nicknames())

	env.conn.send("", client.DISCONNECTED)
	assert.Empty(t, env.tracker.Channels())
	assert.Nil(t, env.tracker.Me())
}

func TestTracker_RejoinStartsIncomplete(t *testing.T) {
	env := newTestEnv(t)
	env.joinSelf(t, "#a")
	env.conn.send("irc.server", "366", "me", "#a", "End of /NAMES list.")
	assert.True(t, env.snapshot(t, "#a").IsComplete())

	env.conn.send("me!bot@bot.host", client.PART, "#a")
	env.joinSelf(t, "#a")
	assert.False(t, env.snapshot(t, "#a").IsComplete())
}

func TestTracker_Preconditions(t *testing.T) {
	conn := &fakeConn{nick: "me"}
	is := isupport.New(conn)
	modes := mode.New(conn, is)
	registry := actor.New(is, &recordingSender{})

	assert.Panics(t, func() { New(conn, nil, is, modes) })
	assert.Panics(t, func() { New(conn, registry, nil, modes) })
	assert.Panics(t, func() { New(conn, registry, is, nil) })
}
