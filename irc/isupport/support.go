package isupport

import (
	"strings"
	"sync"
)

var DefaultChanTypes = []rune("#&")
var DefaultPrefixLetters = []rune("ov")
var DefaultPrefixSymbols = []rune("@+")

// Assumed when the server does not send CHANMODES, see RFC 2811.
const DefaultChanModes = "beI,k,l,aimnqpsrt"

// Support is the table of ISUPPORT tokens the server sent. It is safe for
// concurrent use.
type Support struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewSupport() *Support {
	return &Support{data: map[string]string{}}
}

func (s *Support) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[strings.ToUpper(name)] = value
}

func (s *Support) Unset(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, strings.ToUpper(name))
}

// Reset forgets everything the server sent.
func (s *Support) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = map[string]string{}
}

func (s *Support) Get(name string) (value string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok = s.data[strings.ToUpper(name)]
	return
}

// Returns a list of channel modes a person can get and the respective prefix a
// channel or nickname will get in case the person has it. The order of the
// modes goes from most powerful to least powerful. Those prefixes are shown in
// the output of the WHOIS, WHO and NAMES command.
//
// Note: Some servers only show the most powerful, others may show all of them.
func (s *Support) Prefix() (retval *Prefixes, ok bool) {
	retval = &Prefixes{
		Letters: DefaultPrefixLetters,
		Symbols: DefaultPrefixSymbols,
	}

	v, ok := s.Get("PREFIX")
	if !ok {
		return // No prefix given by the server
	}
	ok = false

	if !strings.HasPrefix(v, "(") {
		return // Missing start bracket
	}

	// Look where the letters end
	endIndex := strings.IndexRune(v, ')')
	if endIndex < 1 {
		return // Missing end bracket
	}

	// (modes)prefixes
	letters := []rune(v[1:endIndex])
	symbols := []rune(v[endIndex+1:])
	if len(letters) != len(symbols) {
		return // Not as many symbols as letters
	}

	retval = &Prefixes{
		Letters: letters,
		Symbols: symbols,
	}
	ok = true

	return
}

// Returns the supported channel prefixes.
func (s *Support) ChanTypes() (retval []rune, ok bool) {
	retval = DefaultChanTypes

	v, ok := s.Get("CHANTYPES")
	if !ok {
		return
	}

	retval = []rune(v)
	return
}

// Returns the list of channel modes according to 4 types.
// They are documented with the ChanModeType constants.
// Falls back to DefaultChanModes if the server sent nothing usable.
func (s *Support) ChanModes() (retval []ChanMode, ok bool) {
	v, ok := s.Get("CHANMODES")
	modes := strings.Split(v, ",")
	if !ok || len(modes) < 4 {
		ok = false
		modes = strings.Split(DefaultChanModes, ",")
	}

	order := []ChanModeType{
		ChanModeType_List,
		ChanModeType_Setting,
		ChanModeType_Setting_ParamWhenSet,
		ChanModeType_Setting_NoParam,
	}

	// Types beyond the fourth may be added in the future and are ignored.
	for index, modeType := range order {
		for _, modeRune := range modes[index] {
			retval = append(retval, ChanMode{Mode: modeRune, Type: modeType})
		}
	}

	return
}

// Case mapping used for nick- and channel name comparing.
//
// Current possible values:
//   - ascii: The chars [a-z] are lowercase of [A-Z].
//   - rfc1459: ascii with additional {}|~ the lowercase of []\^.
//   - strict-rfc1459: ascii with additional {}| the lowercase of []\.
//   - rfc8265: PRECIS UsernameCaseMapped.
//
// Note: RFC1459 forgot to mention the ~ and ^ although in all known
// implementations those are considered equivalent too.
func (s *Support) CaseMapping() (retval string, ok bool) {
	v, ok := s.Get("CASEMAPPING")
	if !ok || len(v) <= 0 {
		ok = false
		return
	}

	retval = v
	return
}

// The name of the IRC network.
func (s *Support) Network() (retval string, ok bool) {
	return s.Get("NETWORK")
}
