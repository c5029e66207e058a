package override

// ClearSentinel is the modelPath value that requests a reset instead of an
// asset swap.
const ClearSentinel = "clear"

// Override describes the replacement model currently shown by the displays.
// Nil fields are absent on the wire; a nil *Override means no override has
// ever been set.
type Override struct {
	ModelPath *string  `json:"modelPath,omitempty"`
	Scale     *float64 `json:"scale,omitempty"`
	Rotation  *float64 `json:"rotation,omitempty"`
	Elevation *float64 `json:"elevation,omitempty"`
	Visible   *bool    `json:"visible,omitempty"`
	Cleared   *bool    `json:"cleared,omitempty"`
}

// IsCleared reports whether the override is in the reset state: either the
// explicit flag, or no model fields with visibility forced off.
func (o *Override) IsCleared() bool {
	if o == nil {
		return false
	}
	if o.Cleared != nil && *o.Cleared {
		return true
	}
	return o.ModelPath == nil && o.Scale == nil && o.Rotation == nil &&
		o.Elevation == nil && o.Visible != nil && !*o.Visible
}

// Fields is a validated partial update. Nil fields were not part of the
// request and must not disturb the stored value.
type Fields struct {
	ModelPath *string
	Scale     *float64
	Rotation  *float64
	Elevation *float64
	Visible   *bool
	Cleared   *bool
}

// Empty reports whether the update carries no fields at all.
func (f Fields) Empty() bool {
	return f.ModelPath == nil && f.Scale == nil && f.Rotation == nil &&
		f.Elevation == nil && f.Visible == nil && f.Cleared == nil
}

// IsClearRequest reports whether the update is one of the two clear
// shorthands: modelPath set to the sentinel, or an explicit cleared flag.
func (f Fields) IsClearRequest() bool {
	if f.Cleared != nil && *f.Cleared {
		return true
	}
	return f.ModelPath != nil && *f.ModelPath == ClearSentinel
}

// State owns the single shared override record. It is not safe for
// concurrent use on its own; the owning service serializes all access.
type State struct {
	current *Override
}

// NewState starts with no override set.
func NewState() *State {
	return &State{}
}

// Current returns the stored override, or nil if none was ever set.
func (s *State) Current() *Override {
	return s.current
}

// Apply merges a validated, non-empty update over the stored override and
// returns the new value. The boolean is false only when the update was a
// clear request against an already-cleared state, in which case nothing
// changed and callers must not broadcast.
//
// Merge rules: fields present in the update win over stored ones. Setting a
// new modelPath without touching visible forces visible back to true, so a
// fresh model reappears even after an explicit hide. Conversely, an update
// that touches neither modelPath nor visible drops a stored visible:false
// instead of carrying it forward, leaving the field unset until someone
// re-asserts it.
func (s *State) Apply(partial Fields) (*Override, bool) {
	if partial.IsClearRequest() {
		return s.Clear()
	}

	next := &Override{}
	if s.current != nil {
		*next = *s.current
	}

	if partial.ModelPath != nil {
		next.ModelPath = partial.ModelPath
	}
	if partial.Scale != nil {
		next.Scale = partial.Scale
	}
	if partial.Rotation != nil {
		next.Rotation = partial.Rotation
	}
	if partial.Elevation != nil {
		next.Elevation = partial.Elevation
	}

	switch {
	case partial.Visible != nil:
		next.Visible = partial.Visible
	case partial.ModelPath != nil:
		visible := true
		next.Visible = &visible
	case next.Visible != nil && !*next.Visible:
		next.Visible = nil
	}

	// The cleared flag only survives the transition that produced it.
	next.Cleared = partial.Cleared

	s.current = next
	return next, true
}

// Clear resets the override to the canonical shape {cleared: true,
// visible: false}. Clearing an already-cleared state is a no-op and returns
// false so callers skip the broadcast.
func (s *State) Clear() (*Override, bool) {
	if s.current.IsCleared() {
		return s.current, false
	}

	cleared := true
	visible := false
	s.current = &Override{Cleared: &cleared, Visible: &visible}
	return s.current, true
}
