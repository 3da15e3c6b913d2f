package domain

// State is a point-in-time snapshot of a session manager.
type State struct {
	User    *User `json:"user"`
	Loading bool  `json:"loading"`
}

// Authenticated reports whether the snapshot holds a principal.
func (s State) Authenticated() bool {
	return s.User != nil
}
