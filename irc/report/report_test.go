package report

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/icedream/chantrack/irc/actor"
	"github.com/icedream/chantrack/irc/cimap"
)

type testServer struct{}

func (testServer) Fold(name string) string {
	return strings.ToLower(name)
}

func (testServer) IsValidChannelName(name string) bool {
	return strings.HasPrefix(name, "#")
}

func (s testServer) Folder() cimap.Folder {
	return cimap.FolderFunc(s.Fold)
}

type nopSender struct{}

func (nopSender) SendAvoidingDuplication(string) {}

func newChannel(t *testing.T, r *actor.Registry, name string) *actor.Channel {
	t.Helper()
	ch, ok := r.Channel(name)
	if !ok {
		t.Fatalf("invalid channel %v", name)
	}
	r.Track(ch)
	return ch
}

func TestSummarize(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r := actor.New(testServer{}, nopSender{}, actor.WithClock(func() time.Time { return now }))
	ch := newChannel(t, r, "#go")
	for i := 0; i < 1200; i++ {
		ch.TrackNick("user"+strings.Repeat("x", i%7)+string(rune('a'+i%26))+string(rune('a'+i/26)), nil)
	}
	ch.TrackModeAdd("useraa", actor.Mode{Letter: 'o', Prefix: '@'})

	assert.Equal(t, "#go: 1,200 members, 1 with status, member list incomplete, no topic",
		Summarize(ch.ChannelSnapshot(), now))

	ch.MarkListComplete()
	ch.SetTopic("Gophers")
	assert.Equal(t, `#go: 1,200 members, 1 with status, topic "Gophers"`,
		Summarize(ch.ChannelSnapshot(), now))

	ch.SetTopicProvenance(now.Add(-3*time.Hour), r.Resolve("alice!a@host"))
	assert.Equal(t, `#go: 1,200 members, 1 with status, topic "Gophers" set by alice 3 hours ago`,
		Summarize(ch.ChannelSnapshot(), now))

	ch.SetTopicProvenance(now.Add(-3*time.Hour), r.Resolve("services.example"))
	assert.Contains(t, Summarize(ch.ChannelSnapshot(), now), "set by services.example")
}

type countingSource struct {
	mu    sync.Mutex
	calls int
}

func (s *countingSource) Channels() []*actor.ChannelSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return nil
}

func (s *countingSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestReporter_Run(t *testing.T) {
	source := &countingSource{}
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		New(source, time.Millisecond).Run(done)
	}()

	assert.Eventually(t, func() bool { return source.Calls() >= 2 }, time.Second, time.Millisecond)
	close(done)
	<-stopped
}

func TestReporter_DisabledReturnsImmediately(t *testing.T) {
	source := &countingSource{}
	New(source, 0).Run(make(chan struct{}))
	assert.Zero(t, source.Calls())
}
