package order_test

import (
	"testing"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTransition(t *testing.T) {
	for _, tr := range order.Transitions() {
		parsed, err := order.ParseTransition(tr.String())
		require.NoError(t, err)
		assert.Equal(t, tr, parsed)
	}

	parsed, err := order.ParseTransition("  PickUp ")
	require.NoError(t, err)
	assert.Equal(t, order.PickUp, parsed)

	_, err = order.ParseTransition("cancel")
	require.ErrorIs(t, err, errs.ErrValueIsInvalid)

	_, err = order.ParseTransition("unknown")
	require.ErrorIs(t, err, errs.ErrValueIsInvalid)
}

func TestTransition_RequiredRole(t *testing.T) {
	assert.Equal(t, order.RolePartner, order.Accept.RequiredRole())
	assert.Equal(t, order.RolePartner, order.Reject.RequiredRole())
	assert.Equal(t, order.RolePartner, order.MarkReady.RequiredRole())
	assert.Equal(t, order.RoleAgent, order.AssignAgent.RequiredRole())
	assert.Equal(t, order.RoleAgent, order.PickUp.RequiredRole())
	assert.Equal(t, order.RoleAgent, order.Deliver.RequiredRole())
	assert.Equal(t, order.RoleUnknown, order.UnknownTransition.RequiredRole())
}

func TestTransition_Validate(t *testing.T) {
	require.NoError(t, order.Deliver.Validate())
	require.ErrorIs(t, order.UnknownTransition.Validate(), errs.ErrValueIsInvalid)
	require.ErrorIs(t, order.Transition(40).Validate(), errs.ErrValueIsInvalid)
}

func TestNewActor(t *testing.T) {
	id := kernel.NewUUID()

	actor, err := order.NewActor(order.RoleAgent, id, "  Dana ")
	require.NoError(t, err)
	require.NoError(t, actor.Validate())
	assert.Equal(t, "Dana", actor.Name())
	assert.Equal(t, "agent:"+id.String(), actor.String())

	_, err = order.NewActor(order.RoleUnknown, id, "")
	require.ErrorIs(t, err, errs.ErrValueIsInvalid)

	_, err = order.NewActor(order.RolePartner, kernel.UUID{}, "")
	require.ErrorIs(t, err, kernel.ErrUUIDIsNotConstructed)

	require.ErrorIs(t, order.Actor{}.Validate(), order.ErrActorIsNotConstructed)
}

func TestParseRole(t *testing.T) {
	role, err := order.ParseRole("Partner")
	require.NoError(t, err)
	assert.Equal(t, order.RolePartner, role)

	_, err = order.ParseRole("admin")
	require.Error(t, err)
}
