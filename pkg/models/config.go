package models

// Variant names one independently-replicated config-library state category.
type Variant string

const (
	VariantUserProfile       Variant = "UserProfile"
	VariantContacts          Variant = "Contacts"
	VariantConvoInfoVolatile Variant = "ConvoInfoVolatile"
	VariantUserGroups        Variant = "UserGroups"
	VariantGroupInfo         Variant = "GroupInfo"
	VariantGroupMembers      Variant = "GroupMembers"
	VariantGroupKeys         Variant = "GroupKeys"
)

// UserVariants are replicated for the account identity.
func UserVariants() []Variant {
	return []Variant{VariantUserProfile, VariantContacts, VariantConvoInfoVolatile, VariantUserGroups}
}

// GroupVariants are replicated per group identity.
func GroupVariants() []Variant {
	return []Variant{VariantGroupInfo, VariantGroupMembers, VariantGroupKeys}
}

// GroupScoped reports whether the variant belongs to group identities.
func (v Variant) GroupScoped() bool {
	switch v {
	case VariantGroupInfo, VariantGroupMembers, VariantGroupKeys:
		return true
	}
	return false
}

// ConfigDump is a snapshot of one config variant's state for one identity,
// produced and consumed by the external config library.
type ConfigDump struct {
	Identity string  `msgpack:"i"`
	Variant  Variant `msgpack:"v"`
	// Data is the config library's own serialized state, opaque here.
	Data []byte `msgpack:"d"`
	// TimestampMs is the source-of-truth freshness in ms since epoch.
	TimestampMs int64 `msgpack:"ts"`
}
