package actor

import (
	"strings"
	"sync"
	"testing"
	"time"

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

// switchingServer is a server whose case mapping can change mid-test.
type switchingServer struct {
	mu     sync.Mutex
	folder cimap.Folder
}

func (s *switchingServer) Fold(name string) string {
	return s.Folder().Fold(name)
}

func (s *switchingServer) Folder() cimap.Folder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.folder
}

func (s *switchingServer) IsValidChannelName(name string) bool {
	return strings.HasPrefix(name, "#")
}

func (s *switchingServer) setFolder(folder cimap.Folder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folder = folder
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

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var (
	op    = Mode{Letter: 'o', Prefix: '@'}
	voice = Mode{Letter: 'v', Prefix: '+'}
)

func newTestRegistry(t *testing.T) (*Registry, *recordingSender, *fakeClock) {
	t.Helper()
	sender := &recordingSender{}
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	return New(testServer{}, sender, WithClock(clock.Now)), sender, clock
}

func trackedChannel(t *testing.T, r *Registry, name string) *Channel {
	t.Helper()
	ch, ok := r.Channel(name)
	if !ok {
		t.Fatalf("%v is not a valid channel name", name)
	}
	r.Track(ch)
	return ch
}
