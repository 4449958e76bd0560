package order

import (
	"errors"
	"fmt"
	"strings"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/pkg/errs"
	"orderflow/internal/pkg/guard"
)

var ErrActorIsNotConstructed = errors.New("Actor must be created via NewActor constructor")

// Role is the audience an actor belongs to.
type Role int

const (
	RoleUnknown Role = iota
	RoleCustomer
	RolePartner
	RoleAgent
)

var roleNames = map[Role]string{
	RoleUnknown:  "unknown",
	RoleCustomer: "customer",
	RolePartner:  "partner",
	RoleAgent:    "agent",
}

// ParseRole maps a token role claim to a Role.
func ParseRole(s string) (Role, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for r, name := range roleNames {
		if r != RoleUnknown && name == needle {
			return r, nil
		}
	}
	return RoleUnknown, errs.NewValueIsInvalidErrorWithCause("role", fmt.Errorf("%q is not a known role", s))
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return roleNames[RoleUnknown]
}

// Actor is the authenticated party requesting a transition. Name is carried
// into events that a receiving audience displays (e.g. the agent name shown
// to the partner on pickup).
type Actor struct {
	role Role
	id   kernel.UUID
	name string

	guard guard.ConstructorGuard
}

// NewActor validates role and id; name is optional.
func NewActor(role Role, id kernel.UUID, name string) (Actor, error) {
	if _, ok := roleNames[role]; !ok || role == RoleUnknown {
		return Actor{}, errs.NewValueIsInvalidErrorWithCause("role", fmt.Errorf("%d is not a valid role", role))
	}
	if err := id.Validate(); err != nil {
		return Actor{}, err
	}
	return Actor{
		role:  role,
		id:    id,
		name:  strings.TrimSpace(name),
		guard: guard.NewConstructorGuard(),
	}, nil
}

func (a Actor) Role() Role {
	return a.role
}

func (a Actor) ID() kernel.UUID {
	return a.id
}

func (a Actor) Name() string {
	return a.name
}

// Validate rejects a zero-value Actor.
func (a Actor) Validate() error {
	return a.guard.Validate(ErrActorIsNotConstructed)
}

// String renders "role:id" for logs and the transition record.
func (a Actor) String() string {
	return a.role.String() + ":" + a.id.String()
}
