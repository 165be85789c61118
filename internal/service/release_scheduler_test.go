package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/freelance-market-backend/internal/models"
	"github.com/ignatzorin/freelance-market-backend/internal/repository"
)

type mockReleaseJobStore struct {
	mock.Mock
}

func (m *mockReleaseJobStore) Schedule(ctx context.Context, paymentID, orderID uuid.UUID, dueAt time.Time) error {
	args := m.Called(ctx, paymentID, orderID, dueAt)
	return args.Error(0)
}

func TestAutoReleaseScheduler_SchedulesWithDelay(t *testing.T) {
	jobs := new(mockReleaseJobStore)
	payments := new(mockPaymentRepo)
	scheduler := NewAutoReleaseScheduler(jobs, payments, 72*time.Hour)
	ctx := context.Background()

	orderID := uuid.New()
	paymentID := uuid.New()
	payments.On("GetActiveByOrderID", ctx, orderID).Return(&models.Payment{
		ID:      paymentID,
		OrderID: orderID,
		Status:  models.PaymentStatusSucceeded,
	}, nil)

	before := time.Now().Add(72 * time.Hour)
	jobs.On("Schedule", ctx, paymentID, orderID, mock.MatchedBy(func(dueAt time.Time) bool {
		return !dueAt.Before(before) && dueAt.Before(before.Add(time.Minute))
	})).Return(nil)

	err := scheduler.ScheduleForOrder(ctx, orderID)

	assert.NoError(t, err)
	jobs.AssertExpectations(t)
}

// Завершение неоплаченного заказа не порождает выплату.
func TestAutoReleaseScheduler_NoPaymentSkips(t *testing.T) {
	jobs := new(mockReleaseJobStore)
	payments := new(mockPaymentRepo)
	scheduler := NewAutoReleaseScheduler(jobs, payments, 72*time.Hour)
	ctx := context.Background()

	orderID := uuid.New()
	payments.On("GetActiveByOrderID", ctx, orderID).Return(nil, repository.ErrPaymentNotFound)

	err := scheduler.ScheduleForOrder(ctx, orderID)

	assert.NoError(t, err)
	jobs.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
