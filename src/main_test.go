package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"tablebook/src/config"
	"tablebook/src/lifecycle"
	"tablebook/src/logger"
	"tablebook/src/models"
	"tablebook/src/notify"
	"tablebook/src/store/memory"
	"tablebook/src/types"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/tidwall/gjson"
)

const (
	jwtSecret     = "secret"
	webhookSecret = "whsec_test"
	ownerID       = 7
	staffID       = 2
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateCharge(ctx context.Context, req types.ChargeRequest) (*types.Charge, error) {
	args := m.Called(ctx, req)
	c, _ := args.Get(0).(*types.Charge)
	return c, args.Error(1)
}

func (m *mockGateway) RetrieveCharge(ctx context.Context, id string) (*types.Charge, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*types.Charge)
	return c, args.Error(1)
}

func (m *mockGateway) CreateRefund(ctx context.Context, req types.RefundRequest) (*types.GatewayRefund, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*types.GatewayRefund)
	return r, args.Error(1)
}

type TestSuite struct {
	suite.Suite
	store   *memory.Store
	gateway *mockGateway
	router  *gin.Engine
	res     models.Reservation
	guest   string
	staff   string
}

func generateJWT(userID uint, role types.UserRole) (string, error) {
	claims := types.Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(userID),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
}

func (s *TestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	registerValidators()

	var err error
	s.guest, err = generateJWT(ownerID, types.ROLE_GUEST)
	s.Require().NoError(err)
	s.staff, err = generateJWT(staffID, types.ROLE_STAFF)
	s.Require().NoError(err)
}

func (s *TestSuite) SetupTest() {
	s.store = memory.New()
	s.gateway = new(mockGateway)

	s.store.SeedEvent(models.Event{ID: 1, Name: "Summer Gala"})
	s.store.SeedTable(models.Table{ID: 1, EventID: 1, Number: 1, Price: 100})
	s.store.SeedTable(models.Table{ID: 2, EventID: 1, Number: 2, Price: 150})
	s.store.SeedTable(models.Table{ID: 3, EventID: 1, Number: 3, Price: 50})

	paymentID := "pi_orig"
	s.res = models.Reservation{ID: uuid.New()}
	s.res.EventID = 1
	s.res.TableID = 1
	s.res.TableNumber = 1
	s.res.UserID = ownerID
	s.res.GuestName = "Maria"
	s.res.GuestEmail = "maria@example.com"
	s.res.Status = types.RESERVATION_CONFIRMED
	s.res.TotalAmount = 100
	s.res.Currency = "usd"
	s.res.PaymentID = &paymentID
	s.store.SeedReservation(s.res)
	s.Require().NoError(s.store.Tables().Reserve(context.Background(), 1, 1, s.res.ID, ownerID))

	log := logger.Nop()
	dispatcher := notify.NewMailDispatcher(notify.LogSender{Log: log}, notify.LogAlerter{Log: log}, config.MailConfig{From: "reservations@example.com"}, log)
	engine := lifecycle.NewEngine(s.store, s.gateway, dispatcher, lifecycle.WithLogger(log))
	s.router = newRouter(engine, []byte(jwtSecret), webhookSecret)
}

func (s *TestSuite) TearDownTest() {
	s.gateway.AssertExpectations(s.T())
}

func (s *TestSuite) request(method, url, token, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req, _ = http.NewRequest(method, url, nil)
	} else {
		req, _ = http.NewRequest(method, url, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	s.router.ServeHTTP(w, req)
	return w
}

func (s *TestSuite) path(suffix string) string {
	return fmt.Sprintf("%s/reservations/%s%s", apiPrefix, s.res.ID, suffix)
}

func TestRunner(t *testing.T) {
	suite.Run(t, new(TestSuite))
}

func (s *TestSuite) TestPingRoute() {
	w := s.request(http.MethodGet, "/", "", "")
	assert.Equal(s.T(), http.StatusOK, w.Code)
}

func (s *TestSuite) TestMaintenanceMode() {
	os.Setenv("MAINTENANCE_MODE", "true")
	defer os.Unsetenv("MAINTENANCE_MODE")

	w := s.request(http.MethodGet, s.path(""), s.guest, "")
	assert.Equal(s.T(), http.StatusServiceUnavailable, w.Code)
}

func (s *TestSuite) TestRequiresToken() {
	w := s.request(http.MethodGet, s.path(""), "", "")
	assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
}

func (s *TestSuite) TestGetReservation() {
	w := s.request(http.MethodGet, s.path(""), s.guest, "")
	s.Require().Equal(http.StatusOK, w.Code)
	assert.Equal(s.T(), s.res.ID.String(), gjson.Get(w.Body.String(), "data.id").String())
	assert.Equal(s.T(), "confirmed", gjson.Get(w.Body.String(), "data.status").String())

	other, err := generateJWT(8, types.ROLE_GUEST)
	s.Require().NoError(err)
	w = s.request(http.MethodGet, s.path(""), other, "")
	assert.Equal(s.T(), http.StatusNotFound, w.Code)
	assert.Equal(s.T(), "not_found", gjson.Get(w.Body.String(), "code").String())

	w = s.request(http.MethodGet, apiPrefix+"/reservations/not-a-uuid", s.staff, "")
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *TestSuite) TestListForUser() {
	w := s.request(http.MethodGet, fmt.Sprintf("%s/users/%d/reservations", apiPrefix, ownerID), s.guest, "")
	s.Require().Equal(http.StatusOK, w.Code)
	assert.Equal(s.T(), int64(1), gjson.Get(w.Body.String(), "count").Int())
	assert.Equal(s.T(), s.res.ID.String(), gjson.Get(w.Body.String(), "data.0.id").String())

	w = s.request(http.MethodGet, fmt.Sprintf("%s/users/%d/reservations", apiPrefix, 8), s.guest, "")
	assert.Equal(s.T(), http.StatusForbidden, w.Code)
}

func (s *TestSuite) TestDowngrade() {
	s.gateway.On("CreateRefund", mock.Anything, mock.Anything).Return(&types.GatewayRefund{ID: "re_1", Amount: 55}, nil)

	w := s.request(http.MethodPost, s.path("/change-table"), s.guest, `{"table_id": 3}`)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	body := w.Body.String()
	assert.Equal(s.T(), "table_changed", gjson.Get(body, "data.outcome").String())
	assert.Equal(s.T(), -55.0, gjson.Get(body, "data.delta").Float())
	assert.Equal(s.T(), 55.0, gjson.Get(body, "data.refund_amount").Float())
	assert.Equal(s.T(), 45.0, gjson.Get(body, "data.reservation.total_amount").Float())
	assert.False(s.T(), gjson.Get(body, "data.refund_failed").Bool())
}

func (s *TestSuite) TestUpgradeNeedsPayment() {
	s.gateway.On("CreateCharge", mock.Anything, mock.Anything).
		Return(&types.Charge{ID: "pi_up", ClientSecret: "pi_up_secret", Amount: 55}, nil)

	w := s.request(http.MethodPost, s.path("/change-table"), s.guest, `{"table_id": 2}`)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	body := w.Body.String()
	assert.Equal(s.T(), "payment_required", gjson.Get(body, "data.outcome").String())
	assert.Equal(s.T(), "pi_up_secret", gjson.Get(body, "data.client_secret").String())
	assert.Equal(s.T(), 55.0, gjson.Get(body, "data.amount_due").Float())

	w = s.request(http.MethodPost, s.path("/change-table"), s.guest, `{"table_id": 2, "defer_payment": true}`)
	assert.Equal(s.T(), http.StatusForbidden, w.Code)
}

func (s *TestSuite) TestCheckIn() {
	w := s.request(http.MethodPost, s.path("/check-in"), s.guest, "")
	assert.Equal(s.T(), http.StatusForbidden, w.Code)

	w = s.request(http.MethodPost, s.path("/check-in"), s.staff, `{"staff_name": "Ana"}`)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	assert.Equal(s.T(), "checked-in", gjson.Get(w.Body.String(), "data.status").String())

	w = s.request(http.MethodPost, s.path("/check-in"), s.staff, "")
	assert.Equal(s.T(), http.StatusConflict, w.Code)
	assert.Equal(s.T(), "already_checked_in", gjson.Get(w.Body.String(), "code").String())
	assert.Equal(s.T(), "Ana", gjson.Get(w.Body.String(), "checked_in_by").String())
}

func (s *TestSuite) TestCancel() {
	w := s.request(http.MethodPost, s.path("/cancel"), s.staff, `{"refund_amount": 10.123}`)
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)

	s.gateway.On("CreateRefund", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("%w: card declined", types.ErrGateway)).Once()
	w = s.request(http.MethodPost, s.path("/cancel"), s.staff, `{"refund_amount": 50}`)
	assert.Equal(s.T(), http.StatusBadGateway, w.Code)
	assert.Equal(s.T(), "refund_failed", gjson.Get(w.Body.String(), "code").String())

	w = s.request(http.MethodPost, s.path("/cancel"), s.staff, `{"reason": "No show"}`)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	assert.Equal(s.T(), "cancelled", gjson.Get(w.Body.String(), "data.reservation.status").String())
	assert.True(s.T(), gjson.Get(w.Body.String(), "data.table_released").Bool())

	w = s.request(http.MethodPost, s.path("/cancel"), s.staff, `{}`)
	assert.Equal(s.T(), http.StatusConflict, w.Code)
	assert.Equal(s.T(), "already_cancelled", gjson.Get(w.Body.String(), "code").String())
}

func (s *TestSuite) TestSendConfirmation() {
	w := s.request(http.MethodPost, s.path("/confirmation"), s.staff, "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	assert.False(s.T(), gjson.Get(w.Body.String(), "data.already_sent").Bool())
	assert.NotEmpty(s.T(), gjson.Get(w.Body.String(), "data.message_id").String())

	w = s.request(http.MethodPost, s.path("/confirmation"), s.staff, "")
	s.Require().Equal(http.StatusOK, w.Code)
	assert.True(s.T(), gjson.Get(w.Body.String(), "data.already_sent").Bool())
}

func (s *TestSuite) TestCreate() {
	s.gateway.On("RetrieveCharge", mock.Anything, "pi_new").
		Return(&types.Charge{ID: "pi_new", Status: types.CHARGE_SUCCEEDED, Amount: 150, Currency: "usd"}, nil)

	body := `{"event_id":1,"table_id":2,"user_id":9,"guest_name":"Leo","guest_email":"leo@example.com","payment_id":"pi_new","total_amount":150}`
	w := s.request(http.MethodPost, apiPrefix+"/reservations", s.staff, body)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(s.T(), int64(2), gjson.Get(w.Body.String(), "data.table_number").Int())

	w = s.request(http.MethodPost, apiPrefix+"/reservations", s.staff, body)
	assert.Equal(s.T(), http.StatusConflict, w.Code)
	assert.Equal(s.T(), "table_unavailable", gjson.Get(w.Body.String(), "code").String())
}

func (s *TestSuite) webhook(payload string) *httptest.ResponseRecorder {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    webhookSecret,
		Timestamp: time.Now(),
	})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, apiPrefix+"/webhook/stripe", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	s.router.ServeHTTP(w, req)
	return w
}

func (s *TestSuite) TestWebhookCompletesTableChange() {
	meta := map[string]string{
		types.MetaReservationID: s.res.ID.String(),
		types.MetaTableID:       "2",
		types.MetaFromTableID:   "1",
		types.MetaPurpose:       types.PurposeTableChange,
	}
	s.gateway.On("RetrieveCharge", mock.Anything, "pi_up").
		Return(&types.Charge{ID: "pi_up", Status: types.CHARGE_SUCCEEDED, Amount: 55, Metadata: meta}, nil)

	payload := fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"api_version": %q,
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_up", "object": "payment_intent", "status": "succeeded",
			"metadata": {"reservationId": %q, "tableId": "2", "fromTableId": "1", "purpose": "table_change"}}}
	}`, stripe.APIVersion, s.res.ID)

	w := s.webhook(payload)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	assert.Equal(s.T(), "table_changed", gjson.Get(w.Body.String(), "outcome").String())

	r, err := s.store.Reservations().Get(context.Background(), s.res.ID)
	s.Require().NoError(err)
	assert.Equal(s.T(), uint(2), r.TableID)
	assert.Equal(s.T(), 155.0, r.TotalAmount)

	// Stripe redelivers events; the second delivery is a no-op.
	w = s.webhook(payload)
	s.Require().Equal(http.StatusOK, w.Code)
	assert.Equal(s.T(), "already_applied", gjson.Get(w.Body.String(), "outcome").String())
}

// A paid upgrade whose table was taken before the payment landed is refunded.
func (s *TestSuite) TestWebhookRefundsUnappliedCharge() {
	other := models.Reservation{ID: uuid.New()}
	other.EventID = 1
	other.TableID = 2
	other.TableNumber = 2
	other.UserID = 8
	other.Status = types.RESERVATION_CONFIRMED
	other.TotalAmount = 150
	s.store.SeedReservation(other)
	s.Require().NoError(s.store.Tables().Reserve(context.Background(), 1, 2, other.ID, 8))

	s.gateway.On("RetrieveCharge", mock.Anything, "pi_late").
		Return(&types.Charge{ID: "pi_late", Status: types.CHARGE_SUCCEEDED, Amount: 55}, nil).Once()
	s.gateway.On("CreateRefund", mock.Anything, mock.MatchedBy(func(req types.RefundRequest) bool {
		return req.ChargeID == "pi_late" && req.Amount == 55
	})).Return(&types.GatewayRefund{ID: "re_late", Amount: 55}, nil).Once()

	payload := fmt.Sprintf(`{
		"id": "evt_3",
		"object": "event",
		"api_version": %q,
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_late", "object": "payment_intent", "status": "succeeded",
			"metadata": {"reservationId": %q, "tableId": "2", "fromTableId": "1", "purpose": "table_change"}}}
	}`, stripe.APIVersion, s.res.ID)

	w := s.webhook(payload)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	assert.Equal(s.T(), "rejected", gjson.Get(w.Body.String(), "outcome").String())
	assert.Equal(s.T(), "table_unavailable", gjson.Get(w.Body.String(), "code").String())
	assert.Equal(s.T(), "succeeded", gjson.Get(w.Body.String(), "refund_status").String())

	refunds, err := s.store.Refunds().ListForReservation(context.Background(), s.res.ID)
	s.Require().NoError(err)
	s.Require().Len(refunds, 1)
	assert.Equal(s.T(), types.REFUND_TABLE_CHANGE, refunds[0].Kind)
	assert.Equal(s.T(), "re_late", *refunds[0].GatewayRefundID)
	r, err := s.store.Reservations().Get(context.Background(), s.res.ID)
	s.Require().NoError(err)
	assert.Equal(s.T(), uint(1), r.TableID)
	assert.Equal(s.T(), 100.0, r.TotalAmount)

	// a redelivery is acknowledged without a second refund
	w = s.webhook(payload)
	s.Require().Equal(http.StatusOK, w.Code)
	assert.Equal(s.T(), "succeeded", gjson.Get(w.Body.String(), "refund_status").String())
}

func (s *TestSuite) TestWebhookRejectsBadSignature() {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, apiPrefix+"/webhook/stripe", strings.NewReader(`{"id":"evt_1"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	s.router.ServeHTTP(w, req)
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *TestSuite) TestWebhookIgnoresOtherEvents() {
	payload := fmt.Sprintf(`{"id":"evt_2","object":"event","api_version":%q,"type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`, stripe.APIVersion)
	w := s.webhook(payload)
	assert.Equal(s.T(), http.StatusOK, w.Code)
}
