package mode

/*
The handler set is modelled after goirc's own dispatcher:
  https://github.com/fluffle/goirc/blob/8be75dd9d4b2b2be3519a9dc9612ead627b7a721/client/dispatch.go
*/

import (
	"strings"
	"sync"

	"github.com/fluffle/goirc/client"
	"github.com/fluffle/goirc/logging"
)

// Handlers are triggered on incoming mode changes from the server. The handler
// name corresponds to the mode change that has been done, with the first
// character being either "+" (add) or "-" (remove) and the second being the
// mode character. The handler name can also be "*" to handle all mode changes.
//
// All handlers for one mode change have finished before the handlers for the
// next one start. They are run in parallel but block the event loop, so care
// should be taken to ensure these handlers are quick :-)
type ModeChangeHandler interface {
	Handle(*ModeChangeEvent)
}

// ModeChangeHandlerFunc allows a bare function with this signature to
// implement the ModeChangeHandler interface.
type ModeChangeHandlerFunc func(*ModeChangeEvent)

func (hf ModeChangeHandlerFunc) Handle(e *ModeChangeEvent) {
	hf(e)
}

// Handlers are kept in a map of linked lists keyed by handler name.
type hSet struct {
	set map[string]*hList
	sync.RWMutex
}

type hList struct {
	start, end *hNode
}

// Storing the forward and backward links in the node allows O(1) removal.
type hNode struct {
	next, prev *hNode
	set        *hSet
	event      string
	handler    ModeChangeHandler
}

func (hn *hNode) Handle(e *ModeChangeEvent) {
	hn.handler.Handle(e)
}

// Remove implements client.Remover.
func (hn *hNode) Remove() {
	if hs := hn.set; hs != nil {
		hs.remove(hn)
	}
}

func handlerSet() *hSet {
	return &hSet{set: make(map[string]*hList)}
}

func (hs *hSet) add(ev string, h ModeChangeHandler) client.Remover {
	hs.Lock()
	defer hs.Unlock()
	ev = strings.ToLower(ev)
	hn := &hNode{
		set:     hs,
		event:   ev,
		handler: h,
	}
	l, ok := hs.set[ev]
	if !ok {
		l = &hList{start: hn}
		hs.set[ev] = l
	} else {
		hn.prev = l.end
		l.end.next = hn
	}
	l.end = hn
	return hn
}

func (hs *hSet) remove(hn *hNode) {
	hs.Lock()
	defer hs.Unlock()
	l, ok := hs.set[hn.event]
	if !ok || hn.set == nil {
		logging.Error("Removing node for unknown mode change '%s'", hn.event)
		return
	}
	if hn.next == nil {
		l.end = hn.prev
	} else {
		hn.next.prev = hn.prev
	}
	if hn.prev == nil {
		l.start = hn.next
	} else {
		hn.prev.next = hn.next
	}
	hn.next = nil
	hn.prev = nil
	hn.set = nil
	if l.start == nil || l.end == nil {
		delete(hs.set, hn.event)
	}
}

func (hs *hSet) dispatch(name string, e *ModeChangeEvent) {
	hs.RLock()
	defer hs.RUnlock()
	list, ok := hs.set[strings.ToLower(name)]
	if !ok {
		return
	}
	wg := &sync.WaitGroup{}
	for hn := list.start; hn != nil; hn = hn.next {
		wg.Add(1)
		go func(hn *hNode) {
			defer wg.Done()
			hn.Handle(e)
		}(hn)
	}
	wg.Wait()
}

// HandleFunc adds the provided function as a handler for the named mode
// change. It returns a Remover that allows the handler to be removed again.
func (plugin *Plugin) HandleFunc(name string, hf ModeChangeHandlerFunc) client.Remover {
	return plugin.handlers.add(name, hf)
}

// HandleTracking adds a state tracking handler. Those run before all handlers
// added with HandleFunc, so that regular handlers see the state after the
// change.
func (plugin *Plugin) HandleTracking(name string, hf ModeChangeHandlerFunc) client.Remover {
	return plugin.trackers.add(name, hf)
}

func (plugin *Plugin) dispatch(e *ModeChangeEvent) {
	name := string([]rune{'+', e.Mode})
	if e.Action == ModeChangeAction_Removed {
		name = string([]rune{'-', e.Mode})
	}
	for _, hs := range []*hSet{plugin.trackers, plugin.handlers} {
		hs.dispatch("*", e)
		hs.dispatch(name, e)
	}
}
