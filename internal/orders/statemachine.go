package orders

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/thalibox/marketplace-backend/pkg/db/models"
	"github.com/thalibox/marketplace-backend/pkg/enums"
	pkgerrors "github.com/thalibox/marketplace-backend/pkg/errors"
)

// Actor is the authenticated caller of an order operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func (a Actor) IsAdmin() bool { return a.Role == enums.UserRoleAdmin }

// nextStatus is the forward fulfilment path. Cancellation is handled apart.
var nextStatus = map[enums.OrderStatus]enums.OrderStatus{
	enums.OrderStatusPending:        enums.OrderStatusConfirmed,
	enums.OrderStatusConfirmed:      enums.OrderStatusPreparing,
	enums.OrderStatusPreparing:      enums.OrderStatusReady,
	enums.OrderStatusReady:          enums.OrderStatusOutForDelivery,
	enums.OrderStatusOutForDelivery: enums.OrderStatusDelivered,
}

// NextStatus returns the forward step from current, if any.
func NextStatus(current enums.OrderStatus) (enums.OrderStatus, bool) {
	next, ok := nextStatus[current]
	return next, ok
}

// CanTransition reports whether from → to is an edge of the state machine.
func CanTransition(from, to enums.OrderStatus) bool {
	if !to.IsValid() || from.IsTerminal() {
		return false
	}
	if to == enums.OrderStatusCancelled {
		return true
	}
	next, ok := nextStatus[from]
	return ok && next == to
}

// Transition validates moving order to status on behalf of actor. It does not
// mutate the order.
func Transition(order *models.Order, to enums.OrderStatus, actor Actor) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if !actor.IsAdmin() && actor.UserID != order.SellerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the order's seller or an admin may change its status")
	}
	if !to.IsValid() {
		return invalidTransition(order.Status, to, "unknown status")
	}
	if order.Status.IsTerminal() {
		return invalidTransition(order.Status, to, "order is already "+string(order.Status))
	}
	if !CanTransition(order.Status, to) {
		return invalidTransition(order.Status, to, "status must advance one step or cancel")
	}
	return nil
}

func invalidTransition(from, to enums.OrderStatus, reason string) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot move order from %s to %s", from, to)).
		WithDetails(map[string]string{"from": string(from), "to": string(to), "reason": reason})
}
