package models

import "errors"

// ErrInvalidActorKind is returned when an actor reference carries an unknown kind.
var ErrInvalidActorKind = errors.New("invalid actor kind")

// ActorKind distinguishes assignable users from roles.
type ActorKind string

const (
	ActorKindUser ActorKind = "user"
	ActorKindRole ActorKind = "role"
)

// Valid reports whether k is a known actor kind.
func (k ActorKind) Valid() bool {
	return k == ActorKindUser || k == ActorKindRole
}

// ActorRef points at a user or role owned by the actor directory.
// Two references are the same actor iff Kind and ID match; the display
// fields are a snapshot taken when the reference was chosen.
type ActorRef struct {
	Kind        ActorKind `json:"kind"                   validate:"required,oneof=user role" yaml:"kind"`
	ID          string    `json:"id"                     validate:"required"                 yaml:"id"`
	DisplayName string    `json:"display_name"           yaml:"display_name"`
	MemberCount int       `json:"member_count,omitempty" yaml:"member_count,omitempty"` // Roles only
}

// User builds a user reference.
func User(id, displayName string) ActorRef {
	return ActorRef{Kind: ActorKindUser, ID: id, DisplayName: displayName}
}

// Role builds a role reference.
func Role(id, displayName string, memberCount int) ActorRef {
	return ActorRef{Kind: ActorKindRole, ID: id, DisplayName: displayName, MemberCount: memberCount}
}

// Key identifies the actor independently of its display data.
func (a ActorRef) Key() ActorKey {
	return ActorKey{Kind: a.Kind, ID: a.ID}
}

// Same reports whether a and other reference the same actor.
func (a ActorRef) Same(other ActorRef) bool {
	return a.Kind == other.Kind && a.ID == other.ID
}

// IsUser reports whether the reference points at a user.
func (a ActorRef) IsUser() bool {
	return a.Kind == ActorKindUser
}

// IsRole reports whether the reference points at a role.
func (a ActorRef) IsRole() bool {
	return a.Kind == ActorKindRole
}

// ActorKey is the identity part of an ActorRef.
type ActorKey struct {
	Kind ActorKind `json:"kind"`
	ID   string    `json:"id"`
}
