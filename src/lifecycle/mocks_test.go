package lifecycle

import (
	"context"

	"tablebook/src/notify"
	"tablebook/src/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
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

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) SendTableChangeNotification(ctx context.Context, n notify.TableChange) error {
	return m.Called(ctx, n).Error(0)
}

func (m *mockDispatcher) SendTableChangePaymentRequired(ctx context.Context, n notify.PaymentRequired) error {
	return m.Called(ctx, n).Error(0)
}

func (m *mockDispatcher) SendReservationConfirmation(ctx context.Context, n notify.Confirmation) (string, error) {
	args := m.Called(ctx, n)
	return args.String(0), args.Error(1)
}

func (m *mockDispatcher) NotifyCheckinAlert(ctx context.Context, n notify.CheckinAlert) error {
	return m.Called(ctx, n).Error(0)
}

func (m *mockDispatcher) SendCancellationNotification(ctx context.Context, n notify.Cancellation) error {
	return m.Called(ctx, n).Error(0)
}

type mockQueue struct {
	mock.Mock
}

func (m *mockQueue) Enqueue(ctx context.Context, kind string, reservationID uuid.UUID, payload types.JSONB) error {
	return m.Called(ctx, kind, reservationID, payload).Error(0)
}

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) Lock(ctx context.Context, key string) (func(), error) {
	args := m.Called(ctx, key)
	if err := args.Error(0); err != nil {
		return nil, err
	}
	return func() { m.MethodCalled("Unlock", key) }, nil
}
