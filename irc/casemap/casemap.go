// Package casemap implements the case mappings IRC servers advertise through
// the CASEMAPPING ISUPPORT token.
package casemap

import (
	"strings"

	"golang.org/x/text/secure/precis"

	"github.com/icedream/chantrack/irc/cimap"
)

const (
	NameASCII         = "ascii"
	NameRFC1459       = "rfc1459"
	NameStrictRFC1459 = "strict-rfc1459"
	NameRFC8265       = "rfc8265"
)

// Default is the mapping assumed when the server did not advertise one.
const Default = NameRFC1459

// The chars [a-z] are lowercase of [A-Z].
var ASCII cimap.Folder = cimap.FolderFunc(foldASCII)

// ascii with additional {}|~ the lowercase of []\^.
var RFC1459 cimap.Folder = cimap.FolderFunc(func(s string) string {
	return foldTable(s, '^')
})

// ascii with additional {}| the lowercase of []\.
var StrictRFC1459 cimap.Folder = cimap.FolderFunc(func(s string) string {
	return foldTable(s, ']')
})

// PRECIS UsernameCaseMapped, as used by some modern servers. Names the
// profile rejects are folded as ascii so they can still be keyed.
var RFC8265 cimap.Folder = cimap.FolderFunc(func(s string) string {
	folded, err := precis.UsernameCaseMapped.String(s)
	if err != nil {
		return foldASCII(s)
	}
	return folded
})

// Lookup returns the folder for a CASEMAPPING value.
func Lookup(name string) (folder cimap.Folder, ok bool) {
	switch strings.ToLower(name) {
	case NameASCII:
		return ASCII, true
	case NameRFC1459:
		return RFC1459, true
	case NameStrictRFC1459:
		return StrictRFC1459, true
	case NameRFC8265:
		return RFC8265, true
	}
	return RFC1459, false
}

func foldASCII(s string) string {
	return foldTable(s, 'Z')
}

// foldTable lowercases every byte between 'A' and last, which covers plain
// ascii ('Z'), strict-rfc1459 (']') or rfc1459 ('^').
func foldTable(s string, last byte) string {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 'A' && c <= last {
			b := []byte(s)
			for ; i < len(b); i++ {
				if c := b[i]; c >= 'A' && c <= last {
					b[i] = c + ('a' - 'A')
				}
			}
			return string(b)
		}
	}
	return s
}
