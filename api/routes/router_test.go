package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thalibox/marketplace-backend/api/controllers"
	"github.com/thalibox/marketplace-backend/internal/notifications"
	ordersvc "github.com/thalibox/marketplace-backend/internal/orders"
	"github.com/thalibox/marketplace-backend/internal/sellers"
	"github.com/thalibox/marketplace-backend/internal/settlements"
	"github.com/thalibox/marketplace-backend/internal/users"
	pkgAuth "github.com/thalibox/marketplace-backend/pkg/auth"
	"github.com/thalibox/marketplace-backend/pkg/auth/session"
	"github.com/thalibox/marketplace-backend/pkg/config"
	"github.com/thalibox/marketplace-backend/pkg/db/models"
	"github.com/thalibox/marketplace-backend/pkg/enums"
	pkgerrors "github.com/thalibox/marketplace-backend/pkg/errors"
	"github.com/thalibox/marketplace-backend/pkg/pagination"
	"github.com/thalibox/marketplace-backend/pkg/types"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubSessions struct{}

func (stubSessions) HasSession(context.Context, string) (bool, error) { return true, nil }

type fakeOrders struct {
	lastStatus ordersvc.UpdateStatusInput
	sellerList *enums.OrderStatus
}

func (f *fakeOrders) PlaceCOD(_ context.Context, buyerID uuid.UUID, in ordersvc.NewOrderInput) (*models.Order, error) {
	return &models.Order{ID: uuid.New(), UserID: buyerID, SellerID: in.SellerID, Total: in.Total, Status: enums.OrderStatusPending}, nil
}

func (f *fakeOrders) ListForBuyer(context.Context, uuid.UUID, pagination.Params) (pagination.Page[models.Order], error) {
	return pagination.Page[models.Order]{Items: []models.Order{}}, nil
}

func (f *fakeOrders) GetForBuyer(_ context.Context, _, orderID uuid.UUID) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (f *fakeOrders) OpenDispute(_ context.Context, _, orderID uuid.UUID, _ string) (*models.Order, error) {
	return &models.Order{ID: orderID, DisputeStatus: enums.DisputeStatusOpen}, nil
}

func (f *fakeOrders) Rate(_ context.Context, in ordersvc.RateInput) (*models.Order, error) {
	return &models.Order{ID: in.OrderID, Rating: &in.Rating}, nil
}

func (f *fakeOrders) ListForSeller(_ context.Context, _ uuid.UUID, status *enums.OrderStatus, _ pagination.Params) (pagination.Page[models.Order], error) {
	f.sellerList = status
	return pagination.Page[models.Order]{Items: []models.Order{}}, nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, in ordersvc.UpdateStatusInput) (*models.Order, error) {
	f.lastStatus = in
	if !in.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "unknown status")
	}
	return &models.Order{ID: in.OrderID, Status: in.Status}, nil
}

func (f *fakeOrders) ListAll(context.Context, *enums.OrderStatus, pagination.Params) (pagination.Page[models.Order], error) {
	return pagination.Page[models.Order]{Items: []models.Order{}}, nil
}

func (f *fakeOrders) Refund(_ context.Context, orderID, _ uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: orderID, PaymentStatus: enums.PaymentStatusRefunded}, nil
}

func (f *fakeOrders) ResolveDispute(_ context.Context, in ordersvc.ResolveDisputeInput) (*models.Order, error) {
	return &models.Order{ID: in.OrderID, DisputeStatus: in.Status}, nil
}

type fakeSettlements struct {
	processed settlements.ProcessInput
}

func (f *fakeSettlements) ListForSeller(context.Context, uuid.UUID, pagination.Params) (pagination.Page[models.Settlement], error) {
	return pagination.Page[models.Settlement]{Items: []models.Settlement{}}, nil
}

func (f *fakeSettlements) List(context.Context, *enums.SettlementStatus, pagination.Params) (pagination.Page[models.Settlement], error) {
	return pagination.Page[models.Settlement]{Items: []models.Settlement{}}, nil
}

func (f *fakeSettlements) Process(_ context.Context, in settlements.ProcessInput) (*models.Settlement, error) {
	f.processed = in
	admin := in.AdminID
	return &models.Settlement{ID: in.SettlementID, Status: enums.SettlementStatusSettled, ProcessedBy: &admin, NetAmount: decimal.NewFromInt(720)}, nil
}

func (f *fakeSettlements) Fail(_ context.Context, in settlements.FailInput) (*models.Settlement, error) {
	return &models.Settlement{ID: in.SettlementID, Status: enums.SettlementStatusFailed}, nil
}

type fakeSellers struct {
	rates sellers.RatesInput
}

func (f *fakeSellers) ApproveKYC(_ context.Context, in sellers.KYCDecisionInput) (*users.UserDTO, error) {
	status := enums.KYCStatusVerified
	return &users.UserDTO{ID: in.SellerID, Role: enums.UserRoleSeller, KYCStatus: &status}, nil
}

func (f *fakeSellers) RejectKYC(_ context.Context, in sellers.KYCDecisionInput) (*users.UserDTO, error) {
	status := enums.KYCStatusRejected
	return &users.UserDTO{ID: in.SellerID, Role: enums.UserRoleSeller, KYCStatus: &status}, nil
}

func (f *fakeSellers) UpdateRates(_ context.Context, in sellers.RatesInput) (*users.UserDTO, error) {
	f.rates = in
	return &users.UserDTO{ID: in.SellerID, CustomCommission: in.CommissionPercent, CustomGST: in.GSTPercent}, nil
}

type fakeAudit struct{}

func (fakeAudit) ListRecent(context.Context, int) ([]models.AuditLog, error) {
	return []models.AuditLog{}, nil
}

type fakeNotifications struct {
	notifications.Service
	unread int64
}

func (f fakeNotifications) UnreadCount(context.Context, uuid.UUID) (int64, error) {
	return f.unread, nil
}

type harness struct {
	cfg         *config.Config
	handler     http.Handler
	orders      *fakeOrders
	settlements *fakeSettlements
	sellers     *fakeSellers
}

func newHarness(t *testing.T, readiness map[string]controllers.Pinger) *harness {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Env: "dev"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "thalibox", ExpirationMinutes: 60},
	}
	h := &harness{
		cfg:         cfg,
		orders:      &fakeOrders{},
		settlements: &fakeSettlements{},
		sellers:     &fakeSellers{},
	}
	h.handler = NewRouter(Deps{
		Config:        cfg,
		Readiness:     readiness,
		Sessions:      stubSessions{},
		Orders:        h.orders,
		Settlements:   h.settlements,
		Sellers:       h.sellers,
		Audit:         fakeAudit{},
		Notifications: fakeNotifications{unread: 3},
	})
	return h
}

func (h *harness) token(t *testing.T, role enums.UserRole) (uuid.UUID, string) {
	t.Helper()
	id := uuid.New()
	token, err := pkgAuth.MintAccessToken(h.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: id,
		Role:   role,
		JTI:    session.NewAccessID(),
	})
	require.NoError(t, err)
	return id, token
}

func (h *harness) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code  string   `json:"code"`
		Debug []string `json:"debug"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness(t, map[string]controllers.Pinger{"db": stubPinger{}, "redis": stubPinger{}})

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/health/live", "", "").Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/health/ready", "", "").Code)
	assert.NotEmpty(t, h.do(http.MethodGet, "/health/live", "", "").Header().Get("X-Request-Id"))
}

func TestHealthReadyReportsDownDependency(t *testing.T) {
	h := newHarness(t, map[string]controllers.Pinger{"db": stubPinger{}, "redis": stubPinger{err: errors.New("refused")}})

	rec := h.do(http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeDependency), decode(t, rec).Error.Code)
}

func TestRoleGates(t *testing.T) {
	h := newHarness(t, nil)
	_, buyer := h.token(t, enums.UserRoleUser)
	_, seller := h.token(t, enums.UserRoleSeller)
	_, admin := h.token(t, enums.UserRoleAdmin)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"anonymous orders", http.MethodGet, "/api/v1/orders", "", http.StatusUnauthorized},
		{"buyer orders", http.MethodGet, "/api/v1/orders", buyer, http.StatusOK},
		{"seller on buyer orders", http.MethodGet, "/api/v1/orders", seller, http.StatusForbidden},
		{"seller orders", http.MethodGet, "/api/v1/seller/orders?status=all", seller, http.StatusOK},
		{"buyer on seller orders", http.MethodGet, "/api/v1/seller/orders", buyer, http.StatusForbidden},
		{"seller settlements", http.MethodGet, "/api/v1/seller/settlements", seller, http.StatusOK},
		{"admin settlements", http.MethodGet, "/api/v1/admin/settlements?status=pending", admin, http.StatusOK},
		{"seller on admin", http.MethodGet, "/api/v1/admin/settlements", seller, http.StatusForbidden},
		{"buyer on admin", http.MethodGet, "/api/v1/admin/audit-logs", buyer, http.StatusForbidden},
		{"admin audit logs", http.MethodGet, "/api/v1/admin/audit-logs", admin, http.StatusOK},
		{"any role notifications", http.MethodGet, "/api/v1/notifications/unread-count", seller, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, h.do(tc.method, tc.path, tc.token, "").Code)
		})
	}
}

func TestSellerOrderStatusFilter(t *testing.T) {
	h := newHarness(t, nil)
	_, seller := h.token(t, enums.UserRoleSeller)

	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/v1/seller/orders?status=ready", seller, "").Code)
	require.NotNil(t, h.orders.sellerList)
	assert.Equal(t, enums.OrderStatusReady, *h.orders.sellerList)

	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/v1/seller/orders?status=all", seller, "").Code)
	assert.Nil(t, h.orders.sellerList)

	rec := h.do(http.MethodGet, "/api/v1/seller/orders?status=teleported", seller, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateStatusPassesActor(t *testing.T) {
	h := newHarness(t, nil)
	adminID, admin := h.token(t, enums.UserRoleAdmin)
	orderID := uuid.New()

	rec := h.do(http.MethodPatch, "/api/v1/seller/orders/"+orderID.String()+"/status", admin, `{"status":"cancelled","cancellationReason":"out of stock"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, orderID, h.orders.lastStatus.OrderID)
	assert.Equal(t, adminID, h.orders.lastStatus.Actor.UserID)
	assert.True(t, h.orders.lastStatus.Actor.IsAdmin())
	require.NotNil(t, h.orders.lastStatus.CancellationReason)
	assert.Equal(t, "out of stock", *h.orders.lastStatus.CancellationReason)
}

func TestUpdateStatusUnknownStatusIsInvalidTransition(t *testing.T) {
	h := newHarness(t, nil)
	_, seller := h.token(t, enums.UserRoleSeller)

	rec := h.do(http.MethodPatch, "/api/v1/seller/orders/"+uuid.NewString()+"/status", seller, `{"status":"teleported"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeInvalidTransition), decode(t, rec).Error.Code)
}

func TestProcessSettlementWithoutBody(t *testing.T) {
	h := newHarness(t, nil)
	adminID, admin := h.token(t, enums.UserRoleAdmin)
	id := uuid.New()

	rec := h.do(http.MethodPost, "/api/v1/admin/settlements/"+id.String()+"/process", admin, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, id, h.settlements.processed.SettlementID)
	assert.Equal(t, adminID, h.settlements.processed.AdminID)

	var st models.Settlement
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &st))
	assert.Equal(t, enums.SettlementStatusSettled, st.Status)
}

func TestUpdateRatesNullClearsOverride(t *testing.T) {
	h := newHarness(t, nil)
	_, admin := h.token(t, enums.UserRoleAdmin)

	rec := h.do(http.MethodPut, "/api/v1/admin/sellers/"+uuid.NewString()+"/rates", admin, `{"customCommission":"7.5","customGst":null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, h.sellers.rates.CommissionPercent)
	assert.True(t, decimal.RequireFromString("7.5").Equal(*h.sellers.rates.CommissionPercent))
	assert.Nil(t, h.sellers.rates.GSTPercent)
}

func TestPlaceOrderValidatesBody(t *testing.T) {
	h := newHarness(t, nil)
	_, buyer := h.token(t, enums.UserRoleUser)

	rec := h.do(http.MethodPost, "/api/v1/orders", buyer, `{"sellerId":"`+uuid.NewString()+`","items":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), decode(t, rec).Error.Code)
}

func TestPlaceOrderCreated(t *testing.T) {
	h := newHarness(t, nil)
	_, buyer := h.token(t, enums.UserRoleUser)

	body, err := json.Marshal(ordersvc.NewOrderInput{
		SellerID: uuid.New(),
		Items: types.OrderItems{{
			ProductID: uuid.New(), Name: "Thali", Quantity: 2, Price: decimal.NewFromInt(150),
		}},
		Total:           decimal.NewFromInt(300),
		DeliveryAddress: types.DeliveryAddress{Street: "1 MG Road", City: "Pune", State: "MH", Pincode: "411001"},
	})
	require.NoError(t, err)

	rec := h.do(http.MethodPost, "/api/v1/orders", buyer, string(body))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestOrderDetailNotFoundCarriesDebugOutsideProd(t *testing.T) {
	h := newHarness(t, nil)
	_, buyer := h.token(t, enums.UserRoleUser)

	rec := h.do(http.MethodGet, "/api/v1/orders/"+uuid.NewString(), buyer, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, string(pkgerrors.CodeNotFound), env.Error.Code)
	assert.NotEmpty(t, env.Error.Debug)
}

func TestUnreadCount(t *testing.T) {
	h := newHarness(t, nil)
	_, buyer := h.token(t, enums.UserRoleUser)

	rec := h.do(http.MethodGet, "/api/v1/notifications/unread-count", buyer, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":3}`, string(decode(t, rec).Data))
}

func TestWebSocketAcceptsQueryToken(t *testing.T) {
	h := newHarness(t, nil)
	_, buyer := h.token(t, enums.UserRoleUser)

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/ws", "", "").Code)

	// no hub is wired in the harness, so an authenticated request gets NOT_CONFIGURED
	rec := h.do(http.MethodGet, "/ws?token="+buyer, "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeNotConfigured), decode(t, rec).Error.Code)
}
