package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thalibox/marketplace-backend/pkg/db/dbtest"
	"github.com/thalibox/marketplace-backend/pkg/db/models"
	"github.com/thalibox/marketplace-backend/pkg/enums"
	pkgerrors "github.com/thalibox/marketplace-backend/pkg/errors"
	"github.com/thalibox/marketplace-backend/pkg/pagination"
	"github.com/thalibox/marketplace-backend/pkg/realtime"
	"github.com/thalibox/marketplace-backend/pkg/types"
)

type emitted struct {
	target string
	event  string
	data   any
}

type recordingEmitter struct {
	events []emitted
	err    error
}

func (r *recordingEmitter) Emit(_ context.Context, target, event string, data any) error {
	r.events = append(r.events, emitted{target: target, event: event, data: data})
	return r.err
}

func newTestService(t *testing.T, emitter realtime.Emitter) Service {
	t.Helper()
	svc, err := NewService(NewRepository(dbtest.Open(t)), emitter, nil)
	require.NoError(t, err)
	return svc
}

func TestNotifyPersistsAndPushes(t *testing.T) {
	emitter := &recordingEmitter{}
	svc := newTestService(t, emitter)
	userID := uuid.New()
	orderID := uuid.New()

	n, err := svc.Notify(context.Background(), userID, enums.NotificationTypeOrder, "Order updated", types.OrderPayload(orderID, enums.OrderStatusConfirmed))
	require.NoError(t, err)

	require.Len(t, emitter.events, 1)
	assert.Equal(t, realtime.UserTarget(userID), emitter.events[0].target)
	assert.Equal(t, realtime.EventNotification, emitter.events[0].event)

	page, err := svc.List(context.Background(), userID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, n.ID, page.Items[0].ID)
	require.NotNil(t, page.Items[0].Data.Order)
	assert.Equal(t, orderID, page.Items[0].Data.Order.OrderID)
}

func TestNotifyPushFailureDoesNotFail(t *testing.T) {
	svc := newTestService(t, &recordingEmitter{err: errors.New("redis down")})
	userID := uuid.New()

	_, err := svc.Notify(context.Background(), userID, enums.NotificationTypeKYC, "KYC approved", types.KYCPayload(enums.KYCStatusVerified, ""))
	require.NoError(t, err)

	count, err := svc.UnreadCount(context.Background(), userID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestNotifyValidatesInput(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	payload := types.OrderPayload(uuid.New(), enums.OrderStatusPending)

	_, err := svc.Notify(ctx, uuid.Nil, enums.NotificationTypeOrder, "x", payload)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.Notify(ctx, uuid.New(), "spam", "x", payload)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.Notify(ctx, uuid.New(), enums.NotificationTypeOrder, "x", types.NotificationPayload{Kind: types.PayloadKindOrder})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestOwnerScopedMutations(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	owner := uuid.New()
	stranger := uuid.New()
	payload := types.OrderPayload(uuid.New(), enums.OrderStatusPending)

	first, err := svc.Notify(ctx, owner, enums.NotificationTypeOrder, "one", payload)
	require.NoError(t, err)
	_, err = svc.Notify(ctx, owner, enums.NotificationTypeOrder, "two", payload)
	require.NoError(t, err)

	err = svc.MarkRead(ctx, stranger, first.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	require.NoError(t, svc.MarkRead(ctx, owner, first.ID))

	count, err := svc.UnreadCount(ctx, owner)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	updated, err := svc.MarkAllRead(ctx, owner)
	require.NoError(t, err)
	assert.EqualValues(t, 1, updated)

	err = svc.Delete(ctx, stranger, first.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	require.NoError(t, svc.Delete(ctx, owner, first.ID))

	page, err := svc.List(ctx, owner, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "two", page.Items[0].Message)
}

func TestPurgeReadKeepsUnread(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), nil, nil)
	require.NoError(t, err)
	ctx := context.Background()
	userID := uuid.New()
	old := time.Now().Add(-48 * time.Hour)

	rows := []models.Notification{
		{ID: uuid.New(), UserID: userID, Type: enums.NotificationTypeOrder, Message: "old read", IsRead: true, CreatedAt: old},
		{ID: uuid.New(), UserID: userID, Type: enums.NotificationTypeOrder, Message: "old unread", IsRead: false, CreatedAt: old},
	}
	for i := range rows {
		rows[i].Data = types.OrderPayload(uuid.New(), enums.OrderStatusPending)
		require.NoError(t, conn.Create(&rows[i]).Error)
	}

	deleted, err := svc.PurgeRead(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	page, err := svc.List(ctx, userID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "old unread", page.Items[0].Message)
}
