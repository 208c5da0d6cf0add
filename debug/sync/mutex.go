// Package sync wraps the standard mutexes so lock traffic can be traced
// through the logger while debugging stuck handlers.
package sync

import (
	"runtime"
	_sync "sync"
	"sync/atomic"

	"github.com/fluffle/goirc/logging"
)

var trace atomic.Bool

// SetTrace toggles logging of every lock and unlock together with the
// calling location. Logged at debug level.
func SetTrace(enabled bool) {
	trace.Store(enabled)
}

func logCaller(name, what string) {
	if !trace.Load() {
		return
	}
	_, f, l, _ := runtime.Caller(2)
	logging.Debug("%v: %v at %v:%v", name, what, f, l)
}

// Mutex is a sync.Mutex that logs its lock traffic when tracing is enabled.
// The zero value is an unlocked mutex.
type Mutex struct {
	Name string
	m    _sync.Mutex
}

func (m *Mutex) Lock() {
	logCaller(m.Name, "Locked")
	m.m.Lock()
}

func (m *Mutex) Unlock() {
	logCaller(m.Name, "Unlocked")
	m.m.Unlock()
}

// RWMutex is a sync.RWMutex that logs its lock traffic when tracing is
// enabled. The zero value is an unlocked mutex.
type RWMutex struct {
	Name string
	m    _sync.RWMutex
}

func (m *RWMutex) Lock() {
	logCaller(m.Name, "Locked")
	m.m.Lock()
}

func (m *RWMutex) Unlock() {
	logCaller(m.Name, "Unlocked")
	m.m.Unlock()
}

func (m *RWMutex) RLock() {
	logCaller(m.Name, "Read-locked")
	m.m.RLock()
}

func (m *RWMutex) RUnlock() {
	logCaller(m.Name, "Read-unlocked")
	m.m.RUnlock()
}
