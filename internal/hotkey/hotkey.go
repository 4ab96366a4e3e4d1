// Package hotkey observes the global recording keys. Both keys are
// combined with the Option/Alt modifier so plain typing never triggers
// a recording.
package hotkey

// Event is a state change of one of the recording keys.
type Event int

const (
	PushToTalkDown Event = iota
	PushToTalkUp
	ToggleDown
)

func (e Event) String() string {
	switch e {
	case PushToTalkDown:
		return "push_to_talk_down"
	case PushToTalkUp:
		return "push_to_talk_up"
	case ToggleDown:
		return "toggle_down"
	default:
		return "unknown"
	}
}
