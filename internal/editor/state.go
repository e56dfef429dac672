package editor

// State is the lifecycle position of an Editor.
type State int

const (
	StateUnloaded State = iota
	StateDescribing
	StateLoaded
	StateInserting
	StateEditing
	StateDeleting
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateDescribing:
		return "describing"
	case StateLoaded:
		return "loaded"
	case StateInserting:
		return "inserting"
	case StateEditing:
		return "editing"
	case StateDeleting:
		return "deleting"
	default:
		return "unknown"
	}
}
