package models

import "strings"

// Identity prefixes: accounts advertise "05", groups "03".
const (
	UserPrefix  = "05"
	GroupPrefix = "03"
)

// IsGroup reports whether the identity names a group.
func IsGroup(identity string) bool {
	return strings.HasPrefix(identity, GroupPrefix)
}

// UserMetadata is the fixed-path identity record, overwritten wholesale on
// every save.
type UserMetadata struct {
	// AccountID is the user's "05"-prefixed public identity.
	AccountID string `msgpack:"a"`
	// SecretKey is the ed25519 secret key backing the identity.
	SecretKey []byte `msgpack:"sk"`
	// UnreadCount is the badge count at the time of the save.
	UnreadCount int `msgpack:"u"`
}
