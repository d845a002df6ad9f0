package models

// AssignmentSet tracks which users and roles were chosen for a stage.
// Roles are stored as opaque references; their membership is never resolved here.
type AssignmentSet struct {
	Users []ActorRef `json:"users"`
	Roles []ActorRef `json:"roles"`
}

// Assign merges actors into the set, skipping any reference already present.
// Insertion order is preserved.
func (s *AssignmentSet) Assign(actors ...ActorRef) {
	for _, actor := range actors {
		if s.Contains(actor) {
			continue
		}

		switch actor.Kind {
		case ActorKindUser:
			s.Users = append(s.Users, actor)
		case ActorKindRole:
			s.Roles = append(s.Roles, actor)
		}
	}
}

// Unassign removes the actor matching (kind, id). Removing an absent actor is a no-op.
func (s *AssignmentSet) Unassign(actor ActorRef) {
	switch actor.Kind {
	case ActorKindUser:
		s.Users = without(s.Users, actor)
	case ActorKindRole:
		s.Roles = without(s.Roles, actor)
	}
}

// Normalize rebuilds the set through Assign, so duplicates are dropped and every
// reference sits in the list of its kind. References with an unknown kind are dropped.
func (s *AssignmentSet) Normalize() {
	members := s.Members()

	*s = AssignmentSet{Users: []ActorRef{}, Roles: []ActorRef{}}
	s.Assign(members...)
}

// Contains reports whether the actor is already assigned.
func (s AssignmentSet) Contains(actor ActorRef) bool {
	for _, existing := range s.list(actor.Kind) {
		if existing.Same(actor) {
			return true
		}
	}

	return false
}

// Members returns users followed by roles.
func (s AssignmentSet) Members() []ActorRef {
	members := make([]ActorRef, 0, s.Size())
	members = append(members, s.Users...)

	return append(members, s.Roles...)
}

// Size is the number of assigned users plus roles.
func (s AssignmentSet) Size() int {
	return len(s.Users) + len(s.Roles)
}

// Clone returns a copy backed by fresh slices.
func (s AssignmentSet) Clone() AssignmentSet {
	return AssignmentSet{
		Users: append([]ActorRef{}, s.Users...),
		Roles: append([]ActorRef{}, s.Roles...),
	}
}

func (s AssignmentSet) list(kind ActorKind) []ActorRef {
	if kind == ActorKindRole {
		return s.Roles
	}

	return s.Users
}

func without(refs []ActorRef, actor ActorRef) []ActorRef {
	kept := make([]ActorRef, 0, len(refs))

	for _, ref := range refs {
		if !ref.Same(actor) {
			kept = append(kept, ref)
		}
	}

	return kept
}
