package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/freelance-market-backend/internal/gateway"
	"github.com/ignatzorin/freelance-market-backend/internal/models"
	"github.com/ignatzorin/freelance-market-backend/internal/repository"
)

func newReconcileService(payments *mockPaymentRepo, orders *mockOrderReader, users *mockUserDirectory, gw *mockGateway) *ReconcileService {
	return NewReconcileService(payments, orders, users, gw, nil)
}

func intentEvent(eventType, intentID string) *gateway.Event {
	data, _ := json.Marshal(map[string]string{"id": intentID})
	return &gateway.Event{ID: "evt_1", Type: eventType, Data: data}
}

func TestReconcileService_PaymentSucceeded(t *testing.T) {
	payments := new(mockPaymentRepo)
	orders := new(mockOrderReader)
	gw := new(mockGateway)
	svc := newReconcileService(payments, orders, new(mockUserDirectory), gw)
	ctx := context.Background()

	paymentID := uuid.New()
	orderID := uuid.New()
	chargeID := "ch_1"
	payments.On("GetByPaymentIntentID", ctx, "pi_1").Return(&models.Payment{
		ID:             paymentID,
		OrderID:        orderID,
		Status:         models.PaymentStatusPending,
		StripeChargeID: &chargeID,
	}, nil)
	payments.On("MarkSucceeded", ctx, paymentID).Return(true, nil)
	orders.On("SetPaymentStatus", ctx, orderID, models.OrderPaymentStatusPaid).Return(nil)
	orders.On("GetByID", ctx, orderID).Return(&models.Order{ID: orderID, FreelancerID: uuid.New()}, nil)

	err := svc.HandleEvent(ctx, intentEvent(gateway.EventPaymentIntentSucceeded, "pi_1"))

	assert.NoError(t, err)
	payments.AssertExpectations(t)
	orders.AssertExpectations(t)
}

// Повторная доставка того же события не даёт двойного эффекта и подтверждается.
func TestReconcileService_PaymentSucceeded_Duplicate(t *testing.T) {
	payments := new(mockPaymentRepo)
	orders := new(mockOrderReader)
	svc := newReconcileService(payments, orders, new(mockUserDirectory), new(mockGateway))
	ctx := context.Background()

	paymentID := uuid.New()
	orderID := uuid.New()
	chargeID := "ch_1"
	payments.On("GetByPaymentIntentID", ctx, "pi_1").Return(&models.Payment{
		ID:             paymentID,
		OrderID:        orderID,
		Status:         models.PaymentStatusSucceeded,
		StripeChargeID: &chargeID,
	}, nil)
	payments.On("MarkSucceeded", ctx, paymentID).Return(false, nil)
	orders.On("SetPaymentStatus", ctx, orderID, models.OrderPaymentStatusPaid).Return(nil)

	err := svc.HandleEvent(ctx, intentEvent(gateway.EventPaymentIntentSucceeded, "pi_1"))

	assert.NoError(t, err)
	orders.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

// Опоздавший успех после зафиксированного неуспеха не делает заказ оплаченным:
// платёж уже неживой, выплачивать по нему нечего.
func TestReconcileService_LateSuccessAfterFailureIgnored(t *testing.T) {
	payments := new(mockPaymentRepo)
	orders := new(mockOrderReader)
	svc := newReconcileService(payments, orders, new(mockUserDirectory), new(mockGateway))
	ctx := context.Background()

	paymentID := uuid.New()
	chargeID := "ch_1"
	payments.On("GetByPaymentIntentID", ctx, "pi_1").Return(&models.Payment{
		ID:             paymentID,
		OrderID:        uuid.New(),
		Status:         models.PaymentStatusFailed,
		StripeChargeID: &chargeID,
	}, nil)
	payments.On("MarkSucceeded", ctx, paymentID).Return(false, nil)

	err := svc.HandleEvent(ctx, intentEvent(gateway.EventPaymentIntentSucceeded, "pi_1"))

	assert.NoError(t, err)
	orders.AssertNotCalled(t, "SetPaymentStatus", mock.Anything, mock.Anything, mock.Anything)
}

// Событие по неизвестному платежу подтверждается: бесконечный ретрай бессмыслен.
func TestReconcileService_UnknownIntentAcked(t *testing.T) {
	payments := new(mockPaymentRepo)
	svc := newReconcileService(payments, new(mockOrderReader), new(mockUserDirectory), new(mockGateway))
	ctx := context.Background()

	payments.On("GetByPaymentIntentID", ctx, "pi_ghost").Return(nil, repository.ErrPaymentNotFound)

	err := svc.HandleEvent(ctx, intentEvent(gateway.EventPaymentIntentSucceeded, "pi_ghost"))

	assert.NoError(t, err)
}

// Без сохранённого charge событие успеха дозапрашивает его у шлюза.
func TestReconcileService_PaymentSucceeded_BackfillsCharge(t *testing.T) {
	payments := new(mockPaymentRepo)
	orders := new(mockOrderReader)
	gw := new(mockGateway)
	svc := newReconcileService(payments, orders, new(mockUserDirectory), gw)
	ctx := context.Background()

	paymentID := uuid.New()
	orderID := uuid.New()
	payments.On("GetByPaymentIntentID", ctx, "pi_1").Return(&models.Payment{
		ID:      paymentID,
		OrderID: orderID,
		Status:  models.PaymentStatusPending,
	}, nil)
	payments.On("MarkSucceeded", ctx, paymentID).Return(true, nil)
	gw.On("RetrievePaymentIntentCharge", ctx, "pi_1").Return(&gateway.Charge{ID: "ch_9", Currency: "rub"}, nil)
	payments.On("BackfillCharge", ctx, paymentID, "ch_9", "rub").Return(nil)
	orders.On("SetPaymentStatus", ctx, orderID, models.OrderPaymentStatusPaid).Return(nil)
	orders.On("GetByID", ctx, orderID).Return(&models.Order{ID: orderID, FreelancerID: uuid.New()}, nil)

	err := svc.HandleEvent(ctx, intentEvent(gateway.EventPaymentIntentSucceeded, "pi_1"))

	assert.NoError(t, err)
	payments.AssertCalled(t, "BackfillCharge", ctx, paymentID, "ch_9", "rub")
}

func TestReconcileService_PaymentFailed(t *testing.T) {
	payments := new(mockPaymentRepo)
	orders := new(mockOrderReader)
	svc := newReconcileService(payments, orders, new(mockUserDirectory), new(mockGateway))
	ctx := context.Background()

	paymentID := uuid.New()
	orderID := uuid.New()
	payments.On("GetByPaymentIntentID", ctx, "pi_1").Return(&models.Payment{
		ID:      paymentID,
		OrderID: orderID,
		Status:  models.PaymentStatusPending,
	}, nil)
	payments.On("MarkFailed", ctx, paymentID).Return(true, nil)
	orders.On("SetPaymentStatus", ctx, orderID, models.OrderPaymentStatusUnpaid).Return(nil)

	err := svc.HandleEvent(ctx, intentEvent(gateway.EventPaymentIntentFailed, "pi_1"))

	assert.NoError(t, err)
	orders.AssertExpectations(t)
}

// Опоздавшее событие неуспеха не откатывает уже подтверждённый платёж.
func TestReconcileService_LateFailureIgnored(t *testing.T) {
	payments := new(mockPaymentRepo)
	orders := new(mockOrderReader)
	svc := newReconcileService(payments, orders, new(mockUserDirectory), new(mockGateway))
	ctx := context.Background()

	paymentID := uuid.New()
	payments.On("GetByPaymentIntentID", ctx, "pi_1").Return(&models.Payment{
		ID:      paymentID,
		OrderID: uuid.New(),
		Status:  models.PaymentStatusSucceeded,
	}, nil)
	payments.On("MarkFailed", ctx, paymentID).Return(false, nil)

	err := svc.HandleEvent(ctx, intentEvent(gateway.EventPaymentIntentFailed, "pi_1"))

	assert.NoError(t, err)
	orders.AssertNotCalled(t, "SetPaymentStatus", mock.Anything, mock.Anything, mock.Anything)
}

// charge.succeeded может прийти раньше payment_intent.succeeded.
func TestReconcileService_ChargeSucceeded_OutOfOrder(t *testing.T) {
	payments := new(mockPaymentRepo)
	svc := newReconcileService(payments, new(mockOrderReader), new(mockUserDirectory), new(mockGateway))
	ctx := context.Background()

	paymentID := uuid.New()
	data, _ := json.Marshal(map[string]string{
		"id":             "ch_7",
		"payment_intent": "pi_1",
		"currency":       "rub",
	})
	payments.On("GetByPaymentIntentID", ctx, "pi_1").Return(&models.Payment{
		ID:     paymentID,
		Status: models.PaymentStatusPending,
	}, nil)
	payments.On("BackfillCharge", ctx, paymentID, "ch_7", "rub").Return(nil)

	err := svc.HandleEvent(ctx, &gateway.Event{ID: "evt_2", Type: gateway.EventChargeSucceeded, Data: data})

	assert.NoError(t, err)
	payments.AssertExpectations(t)
}

func TestReconcileService_AccountUpdated_EnablesPayouts(t *testing.T) {
	users := new(mockUserDirectory)
	svc := newReconcileService(new(mockPaymentRepo), new(mockOrderReader), users, new(mockGateway))
	ctx := context.Background()

	userID := uuid.New()
	data, _ := json.Marshal(map[string]interface{}{
		"id":              "acct_1",
		"charges_enabled": true,
		"payouts_enabled": true,
	})
	users.On("GetByStripeAccountID", ctx, "acct_1").Return(&models.User{ID: userID}, nil)
	users.On("EnablePayouts", ctx, userID).Return(true, nil)

	err := svc.HandleEvent(ctx, &gateway.Event{ID: "evt_3", Type: gateway.EventAccountUpdated, Data: data})

	assert.NoError(t, err)
	users.AssertExpectations(t)
}

// Счёт, не готовый к выплатам, пропускается без обращения к базе.
func TestReconcileService_AccountUpdated_NotReady(t *testing.T) {
	users := new(mockUserDirectory)
	svc := newReconcileService(new(mockPaymentRepo), new(mockOrderReader), users, new(mockGateway))
	ctx := context.Background()

	data, _ := json.Marshal(map[string]interface{}{
		"id":              "acct_1",
		"charges_enabled": true,
		"payouts_enabled": false,
	})

	err := svc.HandleEvent(ctx, &gateway.Event{ID: "evt_4", Type: gateway.EventAccountUpdated, Data: data})

	assert.NoError(t, err)
	users.AssertNotCalled(t, "GetByStripeAccountID", mock.Anything, mock.Anything)
	users.AssertNotCalled(t, "EnablePayouts", mock.Anything, mock.Anything)
}

func TestReconcileService_UnknownEventAcked(t *testing.T) {
	svc := newReconcileService(new(mockPaymentRepo), new(mockOrderReader), new(mockUserDirectory), new(mockGateway))

	err := svc.HandleEvent(context.Background(), &gateway.Event{ID: "evt_5", Type: "customer.created", Data: json.RawMessage(`{}`)})

	assert.NoError(t, err)
}
