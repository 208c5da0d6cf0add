package isupport

// SplitIrcPrefix strips any of the given prefixes off the start of s, for
// example the "@+" off "@+nick" in a NAMES reply.
func SplitIrcPrefix(s string, availablePrefixes []rune) (prefixes []rune, rest string) {
	rest = s
	gotPrefix := true
	for gotPrefix && len(rest) > 0 {
		gotPrefix = false
		for _, availablePrefix := range availablePrefixes {
			if rune(rest[0]) == availablePrefix {
				gotPrefix = true
				rest = rest[1:]
				prefixes = append(prefixes, availablePrefix)
				break
			}
		}
	}
	return
}
