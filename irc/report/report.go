// Package report periodically logs what is known about the tracked channels.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fluffle/goirc/logging"

	"github.com/icedream/chantrack/irc/actor"
)

// Source provides snapshots of the tracked channels, *tracker.Plugin
// implements it.
type Source interface {
	Channels() []*actor.ChannelSnapshot
}

type Reporter struct {
	source   Source
	interval time.Duration
}

func New(source Source, interval time.Duration) *Reporter {
	if source == nil {
		panic("source must not be nil")
	}
	return &Reporter{
		source:   source,
		interval: interval,
	}
}

// Run logs a summary of every tracked channel each interval until done is
// closed. A zero interval disables reporting.
func (r *Reporter) Run(done <-chan struct{}) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			r.Report(now)
		}
	}
}

// Report logs a summary of every tracked channel once.
func (r *Reporter) Report(now time.Time) {
	for _, snap := range r.source.Channels() {
		logging.Info("%v", Summarize(snap, now))
	}
}

// Summarize describes a channel snapshot in one line.
func Summarize(snap *actor.ChannelSnapshot, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v: %v members, %v with status",
		snap.Name(), humanize.Comma(int64(len(snap.Nicknames()))),
		humanize.Comma(int64(countWithStatus(snap))))
	if !snap.IsComplete() {
		b.WriteString(", member list incomplete")
	}

	topic := snap.Topic()
	switch {
	case topic.Text == "":
		b.WriteString(", no topic")
	case topic.HasProvenance():
		fmt.Fprintf(&b, ", topic %q set by %v %v", topic.Text, setterName(topic.Setter),
			humanize.RelTime(topic.Time, now, "ago", "from now"))
	default:
		fmt.Fprintf(&b, ", topic %q", topic.Text)
	}
	return b.String()
}

// countWithStatus counts the members holding at least one channel user mode.
func countWithStatus(snap *actor.ChannelSnapshot) int {
	n := 0
	for _, nick := range snap.Nicknames() {
		if modes, ok := snap.UserModes(nick); ok && len(modes) > 0 {
			n++
		}
	}
	return n
}

func setterName(s actor.Snapshot) string {
	if u, ok := s.(*actor.UserSnapshot); ok {
		return u.Nick()
	}
	return s.Name()
}
