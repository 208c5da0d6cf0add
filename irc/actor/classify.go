package actor

import "regexp"

// Nick characters are not validated, servers are too inconsistent about
// them. Anything shaped like nick!user@host is a user.
var hostmaskPattern = regexp.MustCompile(`^([^!@]+)!([^!@]+)@([^!@]+)$`)

// Identity is the result of classifying a raw actor name. It is one of
// UserIdentity, ChannelIdentity or GenericIdentity.
type Identity interface {
	identity()
}

type UserIdentity struct {
	Nick, User, Host string
}

type ChannelIdentity struct {
	Name string
}

type GenericIdentity struct {
	Name string
}

func (UserIdentity) identity()    {}
func (ChannelIdentity) identity() {}
func (GenericIdentity) identity() {}

// Classify decides what kind of actor raw names. It never fails, anything
// that is neither a hostmask nor a valid channel name is generic.
func Classify(raw string, isChannel func(string) bool) Identity {
	if m := hostmaskPattern.FindStringSubmatch(raw); m != nil {
		return UserIdentity{Nick: m[1], User: m[2], Host: m[3]}
	}
	if isChannel != nil && isChannel(raw) {
		return ChannelIdentity{Name: raw}
	}
	return GenericIdentity{Name: raw}
}
