package autojoin

import (
	"sync"
	"time"

	"github.com/fluffle/goirc/client"
	"github.com/fluffle/goirc/logging"
	"github.com/fluffle/goirc/state"

	"github.com/icedream/chantrack/irc/cimap"
	"github.com/icedream/chantrack/irc/isupport"
)

const invite = "INVITE"

// DefaultRejoinDelay is how long to wait before rejoining a channel we got
// kicked from.
const DefaultRejoinDelay = 10 * time.Second

// Conn is the part of a goirc connection this plugin needs.
type Conn interface {
	isupport.Conn
	Me() *state.Nick
	Join(channel string, key ...string)
}

// Plugin keeps us in a fixed set of channels. It joins them on connect,
// rejoins them after a kick and accepts invites to them.
type Plugin struct {
	conn     Conn
	folder   cimap.Folder
	channels []string

	RejoinDelay time.Duration

	// after schedules the delayed rejoin, replaced in tests.
	after func(time.Duration, func())

	mu      sync.Mutex
	pending map[uint64]*time.Timer
	next    uint64
	stopped bool
}

// Creates a new plugin instance.
func New(conn Conn, folder cimap.Folder, channels []string) *Plugin {
	if conn == nil || folder == nil {
		panic("autojoin: nil connection or folder")
	}
	plugin := &Plugin{
		conn:        conn,
		folder:      folder,
		channels:    append([]string(nil), channels...),
		RejoinDelay: DefaultRejoinDelay,
		pending:     map[uint64]*time.Timer{},
	}
	plugin.after = plugin.schedule

	conn.HandleFunc(client.CONNECTED,
		func(*client.Conn, *client.Line) {
			plugin.joinAll()
		})

	// Arguments: [ <channel>, <nick>, <reason> ]
	conn.HandleFunc(client.KICK,
		func(_ *client.Conn, line *client.Line) {
			if len(line.Args) < 2 || !plugin.isMe(line.Args[1]) {
				return
			}
			channel := line.Args[0]
			if !plugin.wanted(channel) {
				return
			}
			logging.Info("Kicked from %v by %v, rejoining in %v",
				channel, line.Nick, plugin.RejoinDelay)
			plugin.after(plugin.RejoinDelay, func() {
				plugin.conn.Join(channel)
			})
		})

	// Arguments: [ <nick>, <channel> ]
	conn.HandleFunc(invite,
		func(_ *client.Conn, line *client.Line) {
			if len(line.Args) < 2 {
				return
			}
			channel := line.Args[1]
			if !plugin.wanted(channel) {
				logging.Debug("Ignoring invite from %v to %v", line.Nick, channel)
				return
			}
			plugin.conn.Join(channel)
		})

	conn.HandleFunc(client.DISCONNECTED,
		func(*client.Conn, *client.Line) {
			plugin.cancelPending()
		})

	return plugin
}

// Channels returns the channels this plugin keeps us in.
func (p *Plugin) Channels() []string {
	return append([]string(nil), p.channels...)
}

func (p *Plugin) joinAll() {
	for _, channel := range p.channels {
		logging.Info("Joining %v", channel)
		p.conn.Join(channel)
	}
}

func (p *Plugin) isMe(nick string) bool {
	me := p.conn.Me()
	return me != nil && p.folder.Fold(me.Nick) == p.folder.Fold(nick)
}

func (p *Plugin) wanted(channel string) bool {
	folded := p.folder.Fold(channel)
	for _, c := range p.channels {
		if p.folder.Fold(c) == folded {
			return true
		}
	}
	return false
}

func (p *Plugin) schedule(d time.Duration, f func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.next++
	key := p.next
	p.pending[key] = time.AfterFunc(d, func() {
		p.mu.Lock()
		delete(p.pending, key)
		p.mu.Unlock()
		f()
	})
}

func (p *Plugin) cancelPending() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, timer := range p.pending {
		timer.Stop()
		delete(p.pending, key)
	}
}

// Stop cancels pending rejoins and prevents new ones.
func (p *Plugin) Stop() {
	p.cancelPending()
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
}

// Registers this plugin with the connection.
func Register(conn Conn, folder cimap.Folder, channels []string) *Plugin {
	return New(conn, folder, channels)
}
