package isupport

import (
	"testing"

	"github.com/fluffle/goirc/client"
	"github.com/stretchr/testify/assert"
)

type fakeConn struct {
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

func (c *fakeConn) dispatch(line *client.Line) {
	for _, hf := range c.handlers[line.Cmd] {
		hf(nil, line)
	}
}

func isupportLine(tokens ...string) *client.Line {
	args := append([]string{"me"}, tokens...)
	args = append(args, "are supported by this server")
	return &client.Line{Cmd: ircISupport, Args: args}
}

func TestPlugin_ParsesTokens(t *testing.T) {
	conn := &fakeConn{}
	p := New(conn)

	conn.dispatch(isupportLine("CHANTYPES=#", "casemapping=ascii", "NETWORK=Test", "SAFELIST"))

	types, _ := p.Supports().ChanTypes()
	assert.Equal(t, []rune("#"), types)
	assert.Equal(t, "foo[]", p.Fold("FOO[]"))
	_, ok := p.Supports().Get("SAFELIST")
	assert.True(t, ok)

	conn.dispatch(isupportLine("-NETWORK"))
	_, ok = p.Supports().Network()
	assert.False(t, ok)
}

func TestPlugin_IgnoresOtherNumerics(t *testing.T) {
	conn := &fakeConn{}
	p := New(conn)

	conn.dispatch(&client.Line{Cmd: ircISupport, Args: []string{"me", "CHANTYPES=!", "something else"}})

	types, _ := p.Supports().ChanTypes()
	assert.Equal(t, DefaultChanTypes, types)
}

func TestPlugin_DefaultsToRFC1459(t *testing.T) {
	p := New(&fakeConn{})
	assert.Equal(t, "nick{}|~", p.Fold("NICK[]\\^"))
}

func TestPlugin_IsValidChannelName(t *testing.T) {
	conn := &fakeConn{}
	p := New(conn)

	assert.True(t, p.IsValidChannelName("#general"))
	assert.True(t, p.IsValidChannelName("&local"))
	assert.False(t, p.IsValidChannelName("#"))
	assert.False(t, p.IsValidChannelName("general"))
	assert.False(t, p.IsValidChannelName("#with space"))
	assert.False(t, p.IsValidChannelName(""))

	conn.dispatch(isupportLine("CHANTYPES=#"))
	assert.False(t, p.IsValidChannelName("&local"))

	ok, prefixes, name := p.IsChannel("#general")
	assert.True(t, ok)
	assert.Equal(t, []rune("#"), prefixes)
	assert.Equal(t, "general", name)
}

func TestPlugin_ResetOnDisconnect(t *testing.T) {
	conn := &fakeConn{}
	p := New(conn)
	conn.dispatch(isupportLine("CASEMAPPING=ascii"))
	assert.Equal(t, "~", p.Fold("~"))

	conn.dispatch(&client.Line{Cmd: client.DISCONNECTED})
	assert.Equal(t, "~", p.Fold("^"))
}
