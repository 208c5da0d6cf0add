// Package tracker feeds channel membership events from the connection into
// an actor.Registry.
package tracker

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fluffle/goirc/client"
	"github.com/fluffle/goirc/logging"
	"github.com/fluffle/goirc/state"

	"github.com/icedream/chantrack/irc/actor"
	"github.com/icedream/chantrack/irc/isupport"
	"github.com/icedream/chantrack/irc/mode"
)

const (
	// ":<prefix> 331 <menick> <channel> :No topic is set"
	ircReplyNoTopic = "331"
	// ":<prefix> 332 <menick> <channel> :<topic>"
	ircReplyTopic = "332"
	// ":<prefix> 333 <menick> <channel> <setter> <unix time>"
	ircReplyTopicWhoTime = "333"
	// ":<prefix> 352 <menick> <channel> <user> <host> <server> <nick> <flags> :<hops> <real name>"
	ircReplyWho = "352"
	// ":<prefix> 315 <menick> <mask> :End of WHO list"
	ircReplyEndOfWho = "315"
	// ":<prefix> 353 <menick> <type> <channel> :*( [prefix] <nick> " " )"
	ircReplyNames = "353"
	// ":<prefix> 366 <menick> <channel> :End of NAMES list"
	ircReplyEndOfNames = "366"
)

// Conn is the part of a goirc connection the tracker needs.
type Conn interface {
	isupport.Conn
	Me() *state.Nick
}

type Plugin struct {
	conn     Conn
	registry *actor.Registry
	isupport *isupport.Plugin

	mu sync.Mutex
	me *actor.User
	// Nicknames seen per channel in the NAMES or WHO reply currently
	// arriving, both keyed by folded name.
	batches map[string]map[string]struct{}
}

// Creates a new plugin instance.
func New(conn Conn, registry *actor.Registry, isupportPlugin *isupport.Plugin, modePlugin *mode.Plugin) *Plugin {
	if registry == nil {
		panic("registry must not be nil")
	}
	if isupportPlugin == nil {
		panic("isupportPlugin must not be nil")
	}
	if modePlugin == nil {
		panic("modePlugin must not be nil")
	}
	plugin := &Plugin{
		conn:     conn,
		registry: registry,
		isupport: isupportPlugin,
		batches:  map[string]map[string]struct{}{},
	}

	handlers := map[string]func(*client.Line){
		client.JOIN:          plugin.handleJoin,
		client.PART:          plugin.handlePart,
		client.KICK:          plugin.handleKick,
		client.QUIT:          plugin.handleQuit,
		client.NICK:          plugin.handleNick,
		client.TOPIC:         plugin.handleTopic,
		client.DISCONNECTED:  plugin.handleDisconnected,
		ircReplyNoTopic:      plugin.handleNoTopic,
		ircReplyTopic:        plugin.handleTopicReply,
		ircReplyTopicWhoTime: plugin.handleTopicWhoTime,
		ircReplyNames:        plugin.handleNames,
		ircReplyEndOfNames:   plugin.handleEndOfList,
		ircReplyWho:          plugin.handleWho,
		ircReplyEndOfWho:     plugin.handleEndOfList,
	}
	for name, h := range handlers {
		h := h
		conn.HandleFunc(name,
			func(conn *client.Conn, line *client.Line) {
				h(line)
			})
	}
	modePlugin.HandleTracking("*", plugin.handleModeChange)

	return plugin
}

// Registry returns the registry the tracker feeds.
func (p *Plugin) Registry() *actor.Registry {
	return p.registry
}

// Me returns who we are, or nil if we have not joined any channel yet in
// this connection.
func (p *Plugin) Me() *actor.User {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.me
}

func (p *Plugin) setMe(u *actor.User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.me = u
}

// Channel returns a snapshot of the tracked channel called name.
func (p *Plugin) Channel(name string) (*actor.ChannelSnapshot, bool) {
	ch, ok := p.registry.TrackedChannel(name)
	if !ok {
		return nil, false
	}
	return ch.ChannelSnapshot(), true
}

// Channels returns a snapshot of every tracked channel.
func (p *Plugin) Channels() []*actor.ChannelSnapshot {
	return p.registry.Snapshots()
}

func (p *Plugin) isMe(nick string) bool {
	me := p.conn.Me()
	return me != nil && nick != "" && p.isupport.Fold(me.Nick) == p.isupport.Fold(nick)
}

func (p *Plugin) trackedChannel(name string) (*actor.Channel, bool) {
	if name == "" {
		return nil, false
	}
	return p.registry.TrackedChannel(name)
}

func (p *Plugin) sourceUser(line *client.Line) (*actor.User, bool) {
	if line.Src == "" {
		return nil, false
	}
	return p.registry.User(line.Src), true
}

// modes turns prefix symbols such as "@+" into channel user modes.
func (p *Plugin) modes(symbols []rune) actor.ModeSet {
	prefixes, _ := p.isupport.Supports().Prefix()
	set := actor.ModeSet{}
	for _, symbol := range symbols {
		if letter, ok := prefixes.SymbolToLetter(symbol); ok {
			set[actor.Mode{Letter: letter, Prefix: symbol}] = struct{}{}
		}
	}
	return set
}

// seen records nick as listed in the member list reply for ch.
func (p *Plugin) seen(ch *actor.Channel, nick string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := p.isupport.Fold(ch.Name())
	batch, ok := p.batches[key]
	if !ok {
		batch = map[string]struct{}{}
		p.batches[key] = batch
	}
	batch[p.isupport.Fold(nick)] = struct{}{}
}

// finishBatch removes every member of ch that the reply just finished did not
// list.
func (p *Plugin) finishBatch(ch *actor.Channel) {
	p.mu.Lock()
	key := p.isupport.Fold(ch.Name())
	batch, ok := p.batches[key]
	delete(p.batches, key)
	p.mu.Unlock()
	if !ok {
		return
	}
	for _, nick := range ch.Nicknames() {
		if _, listed := batch[p.isupport.Fold(nick)]; !listed {
			logging.Debug("%v is no longer in %v", nick, ch.Name())
			ch.TrackPart(nick)
		}
	}
}

func (p *Plugin) handleJoin(line *client.Line) {
	// Arguments: [ <channel> (, <account>, <realname>) ]
	if len(line.Args) < 1 {
		return
	}
	user, ok := p.sourceUser(line)
	if !ok {
		return
	}
	name := line.Args[0]

	if p.isMe(line.Nick) {
		ch, ok := p.registry.Channel(name)
		if !ok {
			logging.Warn("Joined %v which is not a valid channel name", name)
			return
		}
		p.registry.Track(ch)
		p.setMe(user)
		logging.Info("Joined %v, tracking its members", name)
		ch.TrackJoin(user, nil)
		return
	}

	if ch, ok := p.trackedChannel(name); ok {
		ch.TrackJoin(user, nil)
	}
}

func (p *Plugin) handlePart(line *client.Line) {
	// Arguments: [ <channel> (, <reason>) ]
	if len(line.Args) < 1 || line.Nick == "" {
		return
	}
	for _, name := range strings.Split(line.Args[0], ",") {
		p.leave(name, line.Nick)
	}
}

func (p *Plugin) handleKick(line *client.Line) {
	// Arguments: [ <channel>, <nick>, <reason> ]
	if len(line.Args) < 2 || line.Args[1] == "" {
		return
	}
	p.leave(line.Args[0], line.Args[1])
}

func (p *Plugin) leave(name, nick string) {
	ch, ok := p.trackedChannel(name)
	if !ok {
		return
	}
	if p.isMe(nick) {
		logging.Info("Left %v, no longer tracking it", name)
		p.registry.Untrack(ch)
		return
	}
	ch.TrackPart(nick)
}

func (p *Plugin) handleQuit(line *client.Line) {
	// Arguments: [ <reason> ]
	if p.isMe(line.Nick) {
		return // DISCONNECTED takes care of it
	}
	if user, ok := p.sourceUser(line); ok {
		p.registry.DropUser(user)
	}
}

func (p *Plugin) handleNick(line *client.Line) {
	// Arguments: [ <new nick> ]
	if len(line.Args) < 1 {
		return
	}
	newNick := line.Args[0]
	if newNick == "" || strings.ContainsAny(newNick, "!@ ") {
		logging.Warn("Ignoring nick change of %v to invalid nick %q", line.Nick, newNick)
		return
	}
	user, ok := p.sourceUser(line)
	if !ok {
		return
	}

	// Depending on handler order the connection may already know our new
	// nick, so check both.
	self := p.isMe(line.Nick) || p.isMe(newNick)
	newUser := p.registry.RenameUser(user, newNick)
	if self {
		p.setMe(newUser)
	}
}

func (p *Plugin) handleModeChange(e *mode.ModeChangeEvent) {
	if !e.IsChannel || e.Prefix == 0 || !e.HasArgument || e.Argument == "" {
		return
	}
	ch, ok := p.trackedChannel(e.Target)
	if !ok {
		return
	}
	m := actor.Mode{Letter: e.Mode, Prefix: e.Prefix}
	switch e.Action {
	case mode.ModeChangeAction_Added:
		ch.TrackModeAdd(e.Argument, m)
	case mode.ModeChangeAction_Removed:
		ch.TrackModeRemove(e.Argument, m)
	}
}

func (p *Plugin) handleTopic(line *client.Line) {
	// Arguments: [ <channel>, <topic> ]
	if len(line.Args) < 2 || line.Src == "" {
		return
	}
	ch, ok := p.trackedChannel(line.Args[0])
	if !ok {
		return
	}
	when := line.Time
	if when.IsZero() {
		when = p.registry.Now()
	}
	ch.SetTopic(line.Args[1])
	ch.SetTopicProvenance(when, p.registry.Resolve(line.Src))
}

func (p *Plugin) handleNoTopic(line *client.Line) {
	if len(line.Args) < 2 {
		return
	}
	if ch, ok := p.trackedChannel(line.Args[1]); ok {
		ch.SetTopic("")
	}
}

func (p *Plugin) handleTopicReply(line *client.Line) {
	if len(line.Args) < 3 {
		return
	}
	if ch, ok := p.trackedChannel(line.Args[1]); ok {
		ch.SetTopic(line.Args[2])
	}
}

func (p *Plugin) handleTopicWhoTime(line *client.Line) {
	if len(line.Args) < 4 || line.Args[2] == "" {
		return
	}
	ch, ok := p.trackedChannel(line.Args[1])
	if !ok {
		return
	}
	v, err := strconv.ParseInt(line.Args[3], 10, 64)
	if err != nil {
		logging.Debug("Failed to parse topic time %q: %v", line.Args[3], err)
		return
	}
	ch.SetTopicProvenance(time.Unix(v, 0), p.registry.Resolve(line.Args[2]))
}

func (p *Plugin) handleNames(line *client.Line) {
	if len(line.Args) < 4 {
		return
	}
	ch, ok := p.trackedChannel(line.Args[2])
	if !ok {
		return
	}
	prefixes, _ := p.isupport.Supports().Prefix()
	for _, name := range strings.Fields(line.Args[3]) {
		symbols, rest := isupport.SplitIrcPrefix(name, prefixes.Symbols)
		if rest == "" {
			continue
		}
		// With userhost-in-names we get full masks
		if _, ok := actor.Classify(rest, nil).(actor.UserIdentity); ok {
			user := p.registry.User(rest)
			ch.TrackJoin(user, p.modes(symbols))
			p.seen(ch, user.Nick())
			continue
		}
		ch.TrackNick(rest, p.modes(symbols))
		p.seen(ch, rest)
	}
}

func (p *Plugin) handleWho(line *client.Line) {
	if len(line.Args) < 7 {
		return
	}
	ch, ok := p.trackedChannel(line.Args[1])
	if !ok {
		return
	}
	ident, host, nick, flags := line.Args[2], line.Args[3], line.Args[5], line.Args[6]
	if ident == "" || host == "" || nick == "" {
		return
	}
	prefixes, _ := p.isupport.Supports().Prefix()
	var symbols []rune
	for _, flag := range flags {
		if _, ok := prefixes.SymbolToLetter(flag); ok {
			symbols = append(symbols, flag)
		}
	}
	ch.TrackJoin(p.registry.User(nick+"!"+ident+"@"+host), p.modes(symbols))
	p.seen(ch, nick)
}

// handleEndOfList handles both end of NAMES and end of WHO for a channel.
func (p *Plugin) handleEndOfList(line *client.Line) {
	if len(line.Args) < 2 {
		return
	}
	if ch, ok := p.trackedChannel(line.Args[1]); ok {
		p.finishBatch(ch)
		if !ch.IsComplete() {
			logging.Debug("Member list of %v is complete", ch.Name())
		}
		ch.MarkListComplete()
	}
}

func (p *Plugin) handleDisconnected(line *client.Line) {
	p.registry.UntrackAll()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.me = nil
	p.batches = map[string]map[string]struct{}{}
}

// Registers this plugin with the connection.
func Register(conn Conn, registry *actor.Registry, isupportPlugin *isupport.Plugin, modePlugin *mode.Plugin) *Plugin {
	return New(conn, registry, isupportPlugin, modePlugin)
}
