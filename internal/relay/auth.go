// Package relay holds the small set of domain types shared between the
// sequencer core and its collaborators (the script bridge, the
// authorization store, the listing client) so none of them need to
// import the sequencer package just to talk about a uid or an auth flag.
package relay

// AuthFlags is a bitset over the five privilege/role bits a client can
// carry. RANKED and BANNED are never sourced from the authorization
// store directly; only the sequencer itself may set them on a live entry.
type AuthFlags uint8

const (
	AuthAdmin AuthFlags = 1 << iota
	AuthMod
	AuthRanked
	AuthBot
	AuthBanned
)

// storeMask is cleared from whatever an authorization store resolves,
// per the mixed-auth-sources rule: only the server grants RANKED, and
// BANNED is purely a function of the ban list.
const storeMask = AuthRanked | AuthBanned

// MaskStoreFlags clears the flags an authorization store is never
// trusted to set.
func MaskStoreFlags(f AuthFlags) AuthFlags {
	return f &^ storeMask
}

// Has reports whether f carries every bit in want.
func (f AuthFlags) Has(want AuthFlags) bool {
	return f&want == want
}

// Any reports whether f carries at least one bit of want.
func (f AuthFlags) Any(want AuthFlags) bool {
	return f&want != 0
}

// Letters renders the flag set the way !list and the heartbeat snapshot
// do: one letter per set bit, in a fixed order.
func (f AuthFlags) Letters() string {
	var b []byte
	if f.Has(AuthAdmin) {
		b = append(b, 'A')
	}
	if f.Has(AuthMod) {
		b = append(b, 'M')
	}
	if f.Has(AuthRanked) {
		b = append(b, 'R')
	}
	if f.Has(AuthBot) {
		b = append(b, 'B')
	}
	if f.Has(AuthBanned) {
		b = append(b, 'X')
	}
	return string(b)
}
