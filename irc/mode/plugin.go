package mode

import (
	"github.com/fluffle/goirc/client"
	"github.com/fluffle/goirc/logging"

	"github.com/icedream/chantrack/irc/isupport"
)

type ModeChangeAction byte

const (
	ModeChangeAction_Added ModeChangeAction = iota
	ModeChangeAction_Removed
)

type ModeChange struct {
	Action      ModeChangeAction
	Mode        rune
	HasArgument bool
	Argument    string

	// The symbol shown in front of nicknames for channel user modes such as
	// op (@) or voice (+), zero for every other mode.
	Prefix rune
}

type ModeChangeEvent struct {
	Host, Ident, Nick, Src string
	Tags                   map[string]string

	// Either a channel or, for user modes, a nickname.
	Target    string
	IsChannel bool
	ModeChange
}

type Plugin struct {
	isupport *isupport.Plugin

	trackers *hSet
	handlers *hSet
}

// Creates a new plugin instance.
func New(conn isupport.Conn, isupportPlugin *isupport.Plugin) *Plugin {
	if isupportPlugin == nil {
		panic("isupportPlugin must not be nil")
	}
	plugin := &Plugin{
		isupport: isupportPlugin,
		trackers: handlerSet(),
		handlers: handlerSet(),
	}

	// Handle MODE
	conn.HandleFunc(client.MODE,
		func(conn *client.Conn, line *client.Line) {
			for _, e := range plugin.Parse(line) {
				plugin.dispatch(e)
			}
		})

	return plugin
}

// Parse splits a MODE line into one event per mode change. Lines with broken
// syntax produce the events up to the point where parsing failed.
func (plugin *Plugin) Parse(line *client.Line) (events []*ModeChangeEvent) {
	if len(line.Args) < 2 {
		return
	}

	target := line.Args[0]
	isChannel := plugin.isupport.IsValidChannelName(target)
	modes := line.Args[1]
	var action ModeChangeAction
	hasAction := false
	paramIndex := 2

	getParam := func() (retval string, ok bool) {
		if len(line.Args) <= paramIndex {
			return
		}
		retval = line.Args[paramIndex]
		ok = true
		paramIndex++
		return
	}

	prefixes, _ := plugin.isupport.Supports().Prefix()
	knownModes, _ := plugin.isupport.Supports().ChanModes()
	for _, mode := range modes {
		switch mode {
		case '-':
			hasAction = true
			action = ModeChangeAction_Removed
		case '+':
			hasAction = true
			action = ModeChangeAction_Added
		default:
			if !hasAction {
				logging.Debug("Ignoring MODE %v without + or -", modes)
				return // + or - must come first!
			}

			modeChange := ModeChange{
				Mode:   mode,
				Action: action,
			}

			// User modes never take parameters
			takesParam := false
			if isChannel {
				if symbol, ok := prefixes.LetterToSymbol(mode); ok {
					modeChange.Prefix = symbol
					takesParam = true
				} else {
					for _, knownMode := range knownModes {
						if knownMode.Mode == mode {
							takesParam = knownMode.TakesParam(action == ModeChangeAction_Added)
							break
						}
					}
				}
			}
			if takesParam {
				arg, ok := getParam()
				if !ok {
					logging.Debug("MODE %v is missing a parameter for %c", modes, mode)
					return // invalid syntax
				}
				modeChange.HasArgument = true
				modeChange.Argument = arg
			}

			events = append(events, &ModeChangeEvent{
				ModeChange: modeChange,

				Host:  line.Host,
				Ident: line.Ident,
				Nick:  line.Nick,
				Src:   line.Src,
				Tags:  line.Tags,

				Target:    target,
				IsChannel: isChannel,
			})
		}
	}
	return
}

// Registers this plugin with the connection.
func Register(conn isupport.Conn, isupportPlugin *isupport.Plugin) *Plugin {
	return New(conn, isupportPlugin)
}
