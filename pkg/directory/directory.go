// Package directory provides the actor directory and the basic info catalogs the
// console picks from. Definitions only store ids; labels come from here.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/stageflow/pkg/config"
	"github.com/dukex/stageflow/pkg/models"
)

var (
	// ErrUnknownActor is returned when a referenced user or role is not in the directory.
	ErrUnknownActor = errors.New("unknown actor")

	// ErrInvalidCatalog is returned when a catalog file cannot be used.
	ErrInvalidCatalog = errors.New("invalid directory catalog")
)

// Option is a selectable catalog entry.
type Option struct {
	ID    string `json:"id"    validate:"required" yaml:"id"`
	Label string `json:"label" validate:"required" yaml:"label"`
}

// Directory lists the users and roles that may be assigned or escalated to.
type Directory interface {
	ListAssignableUsers(ctx context.Context) ([]models.ActorRef, error)
	ListAssignableRoles(ctx context.Context) ([]models.ActorRef, error)
}

// Catalog lists the selectable basic info options.
type Catalog interface {
	Branches(ctx context.Context) ([]Option, error)
	Departments(ctx context.Context) ([]Option, error)
	Actions(ctx context.Context) ([]Option, error)
}

// UnknownActorError lists every reference that could not be resolved.
type UnknownActorError struct {
	Keys []models.ActorKey
}

func (e *UnknownActorError) Error() string {
	parts := make([]string, 0, len(e.Keys))
	for _, key := range e.Keys {
		parts = append(parts, string(key.Kind)+":"+key.ID)
	}

	return fmt.Sprintf("%v: %s", ErrUnknownActor, strings.Join(parts, ", "))
}

func (e *UnknownActorError) Unwrap() error {
	return ErrUnknownActor
}

// IsUnknownActor checks if an error indicates an unresolvable actor reference.
func IsUnknownActor(err error) bool {
	return errors.Is(err, ErrUnknownActor)
}

// Resolve maps keys to the directory's current references, preserving order. Any key
// not present yields an *UnknownActorError naming all missing keys.
func Resolve(ctx context.Context, dir Directory, keys []models.ActorKey) ([]models.ActorRef, error) {
	index := make(map[models.ActorKey]models.ActorRef)

	for _, kind := range []models.ActorKind{models.ActorKindUser, models.ActorKindRole} {
		if !needs(keys, kind) {
			continue
		}

		list := dir.ListAssignableUsers
		if kind == models.ActorKindRole {
			list = dir.ListAssignableRoles
		}

		refs, err := list(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list assignable %ss: %w", kind, err)
		}

		for _, ref := range refs {
			index[ref.Key()] = ref
		}
	}

	resolved := make([]models.ActorRef, 0, len(keys))
	missing := make([]models.ActorKey, 0)

	for _, key := range keys {
		ref, ok := index[key]
		if !ok {
			missing = append(missing, key)

			continue
		}

		resolved = append(resolved, ref)
	}

	if len(missing) > 0 {
		return nil, &UnknownActorError{Keys: missing}
	}

	return resolved, nil
}

func needs(keys []models.ActorKey, kind models.ActorKind) bool {
	for _, key := range keys {
		if key.Kind == kind {
			return true
		}
	}

	return false
}

// Static is an in-memory directory and catalog, usually loaded from a JSON file.
type Static struct {
	Users             []models.ActorRef `json:"users"       yaml:"users"`
	Roles             []models.ActorRef `json:"roles"       yaml:"roles"`
	BranchOptions     []Option          `json:"branches"    yaml:"branches"`
	DepartmentOptions []Option          `json:"departments" yaml:"departments"`
	ActionOptions     []Option          `json:"actions"     yaml:"actions"`
}

// LoadFile reads a JSON or YAML catalog, picked by file extension. Entries in users
// and roles get their kind from the list they appear in.
func LoadFile(path string) (*Static, error) {
	var static Static

	err := config.Load(path, &static)
	if errors.Is(err, config.ErrInvalidConfig) {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidCatalog, path, err)
	}

	if err != nil {
		return nil, err
	}

	for i := range static.Users {
		static.Users[i].Kind = models.ActorKindUser
	}

	for i := range static.Roles {
		static.Roles[i].Kind = models.ActorKindRole
	}

	err = static.Validate()
	if err != nil {
		return nil, err
	}

	return &static, nil
}

// Validate checks every entry and rejects duplicate ids within a list.
func (s *Static) Validate() error {
	validate := models.NewValidator()

	for _, refs := range [][]models.ActorRef{s.Users, s.Roles} {
		seen := make(map[string]bool)

		for _, ref := range refs {
			if err := validate.Struct(ref); err != nil {
				return fmt.Errorf("%w: actor %q: %w", ErrInvalidCatalog, ref.ID, err)
			}

			if seen[ref.ID] {
				return fmt.Errorf("%w: duplicate %s %q", ErrInvalidCatalog, ref.Kind, ref.ID)
			}

			seen[ref.ID] = true
		}
	}

	for name, options := range map[string][]Option{"branch": s.BranchOptions, "department": s.DepartmentOptions, "action": s.ActionOptions} {
		seen := make(map[string]bool)

		for _, option := range options {
			if err := validate.Struct(option); err != nil {
				return fmt.Errorf("%w: %s %q: %w", ErrInvalidCatalog, name, option.ID, err)
			}

			if seen[option.ID] {
				return fmt.Errorf("%w: duplicate %s %q", ErrInvalidCatalog, name, option.ID)
			}

			seen[option.ID] = true
		}
	}

	return nil
}

func (s *Static) ListAssignableUsers(_ context.Context) ([]models.ActorRef, error) {
	return append([]models.ActorRef{}, s.Users...), nil
}

func (s *Static) ListAssignableRoles(_ context.Context) ([]models.ActorRef, error) {
	return append([]models.ActorRef{}, s.Roles...), nil
}

func (s *Static) Branches(_ context.Context) ([]Option, error) {
	return append([]Option{}, s.BranchOptions...), nil
}

func (s *Static) Departments(_ context.Context) ([]Option, error) {
	return append([]Option{}, s.DepartmentOptions...), nil
}

func (s *Static) Actions(_ context.Context) ([]Option, error) {
	return append([]Option{}, s.ActionOptions...), nil
}

// Default returns the built-in catalog used when no directory file is configured.
func Default() *Static {
	return &Static{
		Users: []models.ActorRef{
			models.User("u-ada", "Ada Obi"),
			models.User("u-grace", "Grace Eze"),
			models.User("u-tunde", "Tunde Bello"),
		},
		Roles: []models.ActorRef{
			models.Role("r-compliance", "Compliance Officer", 4),
			models.Role("r-branch-manager", "Branch Manager", 2),
			models.Role("r-treasury", "Treasury Desk", 6),
		},
		BranchOptions: []Option{
			{ID: "br-lagos", Label: "Lagos Island"},
			{ID: "br-abuja", Label: "Abuja Central"},
		},
		DepartmentOptions: []Option{
			{ID: "dep-treasury", Label: "Treasury"},
			{ID: "dep-compliance", Label: "Compliance"},
			{ID: "dep-operations", Label: "Operations"},
		},
		ActionOptions: []Option{
			{ID: "act-purchase", Label: "FX purchase request"},
			{ID: "act-transfer", Label: "Outgoing transfer"},
			{ID: "act-limit-change", Label: "Customer limit change"},
		},
	}
}
