package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/freelance-market-backend/internal/models"
	"github.com/ignatzorin/freelance-market-backend/internal/pkg/apperror"
)

type mockJobQueue struct {
	mock.Mock
}

func (m *mockJobQueue) ClaimDue(ctx context.Context, limit int) ([]models.ReleaseJob, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]models.ReleaseJob), args.Error(1)
}

func (m *mockJobQueue) MarkFailed(ctx context.Context, paymentID uuid.UUID, cause string) error {
	args := m.Called(ctx, paymentID, cause)
	return args.Error(0)
}

type mockReleaser struct {
	mock.Mock
}

func (m *mockReleaser) ReleasePayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func TestReleaseWorker_Sweep_ReleasesDueJobs(t *testing.T) {
	jobs := new(mockJobQueue)
	releaser := new(mockReleaser)
	w := NewReleaseWorker(jobs, releaser, time.Minute)
	ctx := context.Background()

	paymentID := uuid.New()
	jobs.On("ClaimDue", ctx, defaultBatchSize).Return([]models.ReleaseJob{
		{PaymentID: paymentID, OrderID: uuid.New()},
	}, nil)
	releaser.On("ReleasePayment", ctx, paymentID).Return(&models.Payment{ID: paymentID}, nil)

	w.sweep(ctx)

	releaser.AssertExpectations(t)
	jobs.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
}

// Платёж, уже выплаченный или не подтверждённый, гасит задачу без ошибки.
func TestReleaseWorker_Sweep_NotEligibleIsBenign(t *testing.T) {
	jobs := new(mockJobQueue)
	releaser := new(mockReleaser)
	w := NewReleaseWorker(jobs, releaser, time.Minute)
	ctx := context.Background()

	paymentID := uuid.New()
	jobs.On("ClaimDue", ctx, defaultBatchSize).Return([]models.ReleaseJob{
		{PaymentID: paymentID, OrderID: uuid.New()},
	}, nil)
	releaser.On("ReleasePayment", ctx, paymentID).Return(nil, apperror.ErrPaymentNotEligible)

	w.sweep(ctx)

	jobs.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
}

func TestReleaseWorker_Sweep_RealErrorMarksFailed(t *testing.T) {
	jobs := new(mockJobQueue)
	releaser := new(mockReleaser)
	w := NewReleaseWorker(jobs, releaser, time.Minute)
	ctx := context.Background()

	paymentID := uuid.New()
	jobs.On("ClaimDue", ctx, defaultBatchSize).Return([]models.ReleaseJob{
		{PaymentID: paymentID, OrderID: uuid.New()},
	}, nil)
	releaser.On("ReleasePayment", ctx, paymentID).Return(nil, errors.New("шлюз недоступен"))
	jobs.On("MarkFailed", ctx, paymentID, mock.AnythingOfType("string")).Return(nil)

	w.sweep(ctx)

	jobs.AssertExpectations(t)
}

// Ошибка одной задачи не останавливает обработку остальных.
func TestReleaseWorker_Sweep_ContinuesAfterFailure(t *testing.T) {
	jobs := new(mockJobQueue)
	releaser := new(mockReleaser)
	w := NewReleaseWorker(jobs, releaser, time.Minute)
	ctx := context.Background()

	failedID := uuid.New()
	okID := uuid.New()
	jobs.On("ClaimDue", ctx, defaultBatchSize).Return([]models.ReleaseJob{
		{PaymentID: failedID, OrderID: uuid.New()},
		{PaymentID: okID, OrderID: uuid.New()},
	}, nil)
	releaser.On("ReleasePayment", ctx, failedID).Return(nil, errors.New("шлюз недоступен"))
	jobs.On("MarkFailed", ctx, failedID, mock.AnythingOfType("string")).Return(nil)
	releaser.On("ReleasePayment", ctx, okID).Return(&models.Payment{ID: okID}, nil)

	w.sweep(ctx)

	releaser.AssertExpectations(t)
}
