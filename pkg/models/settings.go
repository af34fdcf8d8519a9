package models

// NotifyMode controls which events in a conversation raise a notification.
type NotifyMode int8

const (
	NotifyAll NotifyMode = iota
	NotifyMentionsOnly
	NotifyNone
)

// Setting holds per-conversation notification preferences.
type Setting struct {
	Mode NotifyMode `msgpack:"m"`
	// MutedUntilMs silences the conversation until the given time; zero
	// means not muted.
	MutedUntilMs int64 `msgpack:"mu,omitempty"`
}

// DefaultSetting is what absent entries mean.
var DefaultSetting = Setting{Mode: NotifyAll}

// IsDefault reports whether the setting carries no information beyond the
// default. Default entries are omitted from the replica.
func (s Setting) IsDefault() bool {
	return s == DefaultSetting
}

// NotificationSettings maps threadID to its notification preferences.
type NotificationSettings map[string]Setting

// Get returns the setting for threadID, or the default when absent.
func (n NotificationSettings) Get(threadID string) Setting {
	if s, ok := n[threadID]; ok {
		return s
	}
	return DefaultSetting
}

// Compact returns a copy with default-valued entries dropped.
func (n NotificationSettings) Compact() NotificationSettings {
	out := NotificationSettings{}
	for id, s := range n {
		if !s.IsDefault() {
			out[id] = s
		}
	}
	return out
}
