package orders

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/thalibox/marketplace-backend/pkg/db/models"
	"github.com/thalibox/marketplace-backend/pkg/enums"
	pkgerrors "github.com/thalibox/marketplace-backend/pkg/errors"
)

var allStatuses = []enums.OrderStatus{
	enums.OrderStatusPending,
	enums.OrderStatusConfirmed,
	enums.OrderStatusPreparing,
	enums.OrderStatusReady,
	enums.OrderStatusOutForDelivery,
	enums.OrderStatusDelivered,
	enums.OrderStatusCancelled,
}

func TestCancelReachableFromEveryNonTerminalStatus(t *testing.T) {
	for _, from := range allStatuses {
		if from.IsTerminal() {
			continue
		}
		assert.True(t, CanTransition(from, enums.OrderStatusCancelled), "cancel from %s", from)
	}
}

func TestTerminalStatusesAdmitNothing(t *testing.T) {
	for _, from := range []enums.OrderStatus{enums.OrderStatusDelivered, enums.OrderStatusCancelled} {
		for _, to := range allStatuses {
			assert.False(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestForwardPathIsStrictlyAdjacent(t *testing.T) {
	assert.True(t, CanTransition(enums.OrderStatusPending, enums.OrderStatusConfirmed))
	assert.True(t, CanTransition(enums.OrderStatusOutForDelivery, enums.OrderStatusDelivered))

	assert.False(t, CanTransition(enums.OrderStatusPending, enums.OrderStatusDelivered))
	assert.False(t, CanTransition(enums.OrderStatusReady, enums.OrderStatusConfirmed))
	assert.False(t, CanTransition(enums.OrderStatusConfirmed, enums.OrderStatusConfirmed))
	assert.False(t, CanTransition(enums.OrderStatusPending, "shipped"))
}

func TestTransitionChecksActor(t *testing.T) {
	seller := uuid.New()
	order := &models.Order{ID: uuid.New(), SellerID: seller, Status: enums.OrderStatusPending}

	err := Transition(order, enums.OrderStatusConfirmed, Actor{UserID: uuid.New(), Role: enums.UserRoleSeller})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden))

	assert.NoError(t, Transition(order, enums.OrderStatusConfirmed, Actor{UserID: seller, Role: enums.UserRoleSeller}))
	assert.NoError(t, Transition(order, enums.OrderStatusCancelled, Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}))
	assert.Equal(t, enums.OrderStatusPending, order.Status, "Transition must not mutate")
}

func TestTransitionRejectsInvalidTargets(t *testing.T) {
	seller := uuid.New()
	actor := Actor{UserID: seller, Role: enums.UserRoleSeller}

	err := Transition(&models.Order{SellerID: seller, Status: enums.OrderStatusPending}, "teleported", actor)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidTransition))

	err = Transition(&models.Order{SellerID: seller, Status: enums.OrderStatusDelivered}, enums.OrderStatusCancelled, actor)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidTransition))

	err = Transition(&models.Order{SellerID: seller, Status: enums.OrderStatusPending}, enums.OrderStatusReady, actor)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidTransition))
}
