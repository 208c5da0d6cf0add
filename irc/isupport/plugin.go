package isupport

import (
	"strings"

	"github.com/fluffle/goirc/client"
	"github.com/fluffle/goirc/logging"

	"github.com/icedream/chantrack/irc/casemap"
	"github.com/icedream/chantrack/irc/cimap"
)

const (
	// ":<prefix> 005 <menick> *( <key> ( "=" <value> ) " " )"
	ircISupport = "005"
)

// Conn is the part of a goirc connection the plugins register with.
type Conn interface {
	HandleFunc(name string, hf client.HandlerFunc) client.Remover
}

type Plugin struct {
	supports *Support
}

// Creates a new plugin instance.
func New(conn Conn) *Plugin {
	plugin := &Plugin{
		supports: NewSupport(),
	}

	// Handle 005/ISUPPORT
	conn.HandleFunc(ircISupport,
		func(conn *client.Conn, line *client.Line) {
			plugin.handleISupport(line)
		})

	// Every connection starts over with the RFC defaults
	conn.HandleFunc(client.DISCONNECTED,
		func(conn *client.Conn, line *client.Line) {
			plugin.supports.Reset()
		})

	return plugin
}

func (plugin *Plugin) handleISupport(line *client.Line) {
	if len(line.Args) < 2 ||
		!strings.HasSuffix(
			line.Args[len(line.Args)-1],
			"are supported by this server") {
		return
	}

	// First arg is our name, last arg is "are supported by this server"
	for _, support := range line.Args[1 : len(line.Args)-1] {
		name, value, _ := strings.Cut(support, "=")
		name = strings.ToUpper(name)
		if strings.HasPrefix(name, "-") {
			plugin.supports.Unset(name[1:])
			continue
		}
		plugin.supports.Set(name, value)
		if name == "CASEMAPPING" {
			if _, ok := casemap.Lookup(value); !ok {
				logging.Warn("Unknown case mapping %q, falling back to %v",
					value, casemap.Default)
			}
		}
	}
}

// Returns the table of things the server reported as supported.
func (plugin *Plugin) Supports() *Support {
	return plugin.supports
}

// Returns whether the target is a channel.
func (p *Plugin) IsChannel(target string) (ok bool, prefixes []rune, name string) {
	chantypes, _ := p.supports.ChanTypes()
	prefixes, name = SplitIrcPrefix(target, chantypes)
	ok = len(prefixes) > 0
	return
}

// IsValidChannelName reports whether name starts with one of the channel
// types the server supports.
func (p *Plugin) IsValidChannelName(name string) bool {
	if len(name) < 2 {
		return false
	}
	chantypes, _ := p.supports.ChanTypes()
	for _, chantype := range chantypes {
		if rune(name[0]) == chantype {
			return !strings.ContainsAny(name, " ,\x07")
		}
	}
	return false
}

// Fold normalizes name using the server's case mapping.
func (p *Plugin) Fold(name string) string {
	return p.Folder().Fold(name)
}

// Folder returns the folder for the server's current case mapping.
func (p *Plugin) Folder() cimap.Folder {
	v, _ := p.supports.CaseMapping()
	folder, _ := casemap.Lookup(v)
	return folder
}

// Registers this plugin with the connection.
func Register(conn Conn) *Plugin {
	return New(conn)
}
