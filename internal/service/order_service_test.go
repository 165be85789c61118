package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/freelance-market-backend/internal/models"
	"github.com/ignatzorin/freelance-market-backend/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-market-backend/internal/repository"
)

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) Create(ctx context.Context, order *models.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrderRepo) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *mockOrderRepo) UpdateStatus(ctx context.Context, orderID uuid.UUID, fromStatus, toStatus string, startedAt, completedAt *time.Time, markReviewable bool) (bool, error) {
	args := m.Called(ctx, orderID, fromStatus, toStatus, startedAt, completedAt, markReviewable)
	return args.Bool(0), args.Error(1)
}

func (m *mockOrderRepo) AddMessage(ctx context.Context, msg *models.OrderMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockOrderRepo) ListMessages(ctx context.Context, orderID uuid.UUID, limit, offset int) ([]models.OrderMessage, error) {
	args := m.Called(ctx, orderID, limit, offset)
	return args.Get(0).([]models.OrderMessage), args.Error(1)
}

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) GetByID(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Service), args.Error(1)
}

type mockScheduler struct {
	mock.Mock
}

func (m *mockScheduler) ScheduleForOrder(ctx context.Context, orderID uuid.UUID) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func TestOrderService_CreateOrder_SnapshotsPrice(t *testing.T) {
	repo := new(mockOrderRepo)
	catalog := new(mockCatalog)
	svc := NewOrderService(repo, catalog, nil, nil)
	ctx := context.Background()

	clientID := uuid.New()
	freelancerID := uuid.New()
	serviceID := uuid.New()

	catalog.On("GetByID", ctx, serviceID).Return(&models.Service{
		ID:           serviceID,
		FreelancerID: freelancerID,
		PriceCents:   15000,
		IsActive:     true,
	}, nil)
	repo.On("Create", ctx, mock.AnythingOfType("*models.Order")).Return(nil)

	order, err := svc.CreateOrder(ctx, CreateOrderInput{
		ClientID:     clientID,
		ServiceID:    serviceID,
		Requirements: "сверстать лендинг",
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(15000), order.PriceCents)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.OrderPaymentStatusUnpaid, order.PaymentStatus)
	assert.Equal(t, freelancerID, order.FreelancerID)
	repo.AssertExpectations(t)
}

func TestOrderService_CreateOrder_OwnService(t *testing.T) {
	repo := new(mockOrderRepo)
	catalog := new(mockCatalog)
	svc := NewOrderService(repo, catalog, nil, nil)
	ctx := context.Background()

	freelancerID := uuid.New()
	serviceID := uuid.New()

	catalog.On("GetByID", ctx, serviceID).Return(&models.Service{
		ID:           serviceID,
		FreelancerID: freelancerID,
		PriceCents:   5000,
		IsActive:     true,
	}, nil)

	_, err := svc.CreateOrder(ctx, CreateOrderInput{
		ClientID:     freelancerID,
		ServiceID:    serviceID,
		Requirements: "что-нибудь",
	})

	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestOrderService_CreateOrder_InactiveService(t *testing.T) {
	repo := new(mockOrderRepo)
	catalog := new(mockCatalog)
	svc := NewOrderService(repo, catalog, nil, nil)
	ctx := context.Background()

	serviceID := uuid.New()
	catalog.On("GetByID", ctx, serviceID).Return(&models.Service{
		ID:           serviceID,
		FreelancerID: uuid.New(),
		PriceCents:   5000,
		IsActive:     false,
	}, nil)

	_, err := svc.CreateOrder(ctx, CreateOrderInput{
		ClientID:     uuid.New(),
		ServiceID:    serviceID,
		Requirements: "что-нибудь",
	})

	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestOrderService_CreateOrder_EmptyRequirements(t *testing.T) {
	svc := NewOrderService(new(mockOrderRepo), new(mockCatalog), nil, nil)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		ClientID:  uuid.New(),
		ServiceID: uuid.New(),
	})

	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestOrderService_UpdateStatus_AcceptedByFreelancer(t *testing.T) {
	repo := new(mockOrderRepo)
	svc := NewOrderService(repo, new(mockCatalog), nil, nil)
	ctx := context.Background()

	orderID := uuid.New()
	freelancerID := uuid.New()
	repo.On("GetByID", ctx, orderID).Return(&models.Order{
		ID:           orderID,
		ClientID:     uuid.New(),
		FreelancerID: freelancerID,
		Status:       models.OrderStatusPending,
	}, nil)
	repo.On("UpdateStatus", ctx, orderID, models.OrderStatusPending, models.OrderStatusAccepted,
		mock.AnythingOfType("*time.Time"), (*time.Time)(nil), false).Return(true, nil)

	order, err := svc.UpdateStatus(ctx, orderID, freelancerID, models.OrderStatusAccepted)

	assert.NoError(t, err)
	assert.Equal(t, models.OrderStatusAccepted, order.Status)
	assert.NotNil(t, order.StartedAt)
	repo.AssertExpectations(t)
}

func TestOrderService_UpdateStatus_ClientCannotAccept(t *testing.T) {
	repo := new(mockOrderRepo)
	svc := NewOrderService(repo, new(mockCatalog), nil, nil)
	ctx := context.Background()

	orderID := uuid.New()
	clientID := uuid.New()
	repo.On("GetByID", ctx, orderID).Return(&models.Order{
		ID:           orderID,
		ClientID:     clientID,
		FreelancerID: uuid.New(),
		Status:       models.OrderStatusPending,
	}, nil)

	_, err := svc.UpdateStatus(ctx, orderID, clientID, models.OrderStatusAccepted)

	assert.ErrorIs(t, err, apperror.ErrForbidden)
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_UpdateStatus_InvalidTransition(t *testing.T) {
	repo := new(mockOrderRepo)
	svc := NewOrderService(repo, new(mockCatalog), nil, nil)
	ctx := context.Background()

	orderID := uuid.New()
	freelancerID := uuid.New()
	repo.On("GetByID", ctx, orderID).Return(&models.Order{
		ID:           orderID,
		ClientID:     uuid.New(),
		FreelancerID: freelancerID,
		Status:       models.OrderStatusPending,
	}, nil)

	// Завершить можно только заказ в работе.
	_, err := svc.UpdateStatus(ctx, orderID, freelancerID, models.OrderStatusCompleted)

	assert.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestOrderService_UpdateStatus_CancelFromInProgressRejected(t *testing.T) {
	repo := new(mockOrderRepo)
	svc := NewOrderService(repo, new(mockCatalog), nil, nil)
	ctx := context.Background()

	orderID := uuid.New()
	clientID := uuid.New()
	repo.On("GetByID", ctx, orderID).Return(&models.Order{
		ID:           orderID,
		ClientID:     clientID,
		FreelancerID: uuid.New(),
		Status:       models.OrderStatusInProgress,
	}, nil)

	_, err := svc.UpdateStatus(ctx, orderID, clientID, models.OrderStatusCancelled)

	assert.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestOrderService_UpdateStatus_CompletedSchedulesRelease(t *testing.T) {
	repo := new(mockOrderRepo)
	scheduler := new(mockScheduler)
	svc := NewOrderService(repo, new(mockCatalog), scheduler, nil)
	ctx := context.Background()

	orderID := uuid.New()
	freelancerID := uuid.New()
	repo.On("GetByID", ctx, orderID).Return(&models.Order{
		ID:           orderID,
		ClientID:     uuid.New(),
		FreelancerID: freelancerID,
		Status:       models.OrderStatusInProgress,
	}, nil)
	repo.On("UpdateStatus", ctx, orderID, models.OrderStatusInProgress, models.OrderStatusCompleted,
		(*time.Time)(nil), mock.AnythingOfType("*time.Time"), true).Return(true, nil)
	scheduler.On("ScheduleForOrder", ctx, orderID).Return(nil)

	order, err := svc.UpdateStatus(ctx, orderID, freelancerID, models.OrderStatusCompleted)

	assert.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	assert.True(t, order.IsReviewable)
	assert.NotNil(t, order.CompletedAt)
	scheduler.AssertExpectations(t)
}

func TestOrderService_UpdateStatus_ConcurrentChange(t *testing.T) {
	repo := new(mockOrderRepo)
	svc := NewOrderService(repo, new(mockCatalog), nil, nil)
	ctx := context.Background()

	orderID := uuid.New()
	freelancerID := uuid.New()
	repo.On("GetByID", ctx, orderID).Return(&models.Order{
		ID:           orderID,
		ClientID:     uuid.New(),
		FreelancerID: freelancerID,
		Status:       models.OrderStatusPending,
	}, nil)
	// Условный UPDATE не нашёл строку в ожидаемом статусе.
	repo.On("UpdateStatus", ctx, orderID, models.OrderStatusPending, models.OrderStatusAccepted,
		mock.AnythingOfType("*time.Time"), (*time.Time)(nil), false).Return(false, nil)

	_, err := svc.UpdateStatus(ctx, orderID, freelancerID, models.OrderStatusAccepted)

	assert.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestOrderService_GetOrder_NotParty(t *testing.T) {
	repo := new(mockOrderRepo)
	svc := NewOrderService(repo, new(mockCatalog), nil, nil)
	ctx := context.Background()

	orderID := uuid.New()
	repo.On("GetByID", ctx, orderID).Return(&models.Order{
		ID:           orderID,
		ClientID:     uuid.New(),
		FreelancerID: uuid.New(),
	}, nil)

	_, err := svc.GetOrder(ctx, orderID, uuid.New())

	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestOrderService_GetOrder_NotFound(t *testing.T) {
	repo := new(mockOrderRepo)
	svc := NewOrderService(repo, new(mockCatalog), nil, nil)
	ctx := context.Background()

	orderID := uuid.New()
	repo.On("GetByID", ctx, orderID).Return(nil, repository.ErrOrderNotFound)

	_, err := svc.GetOrder(ctx, orderID, uuid.New())

	assert.ErrorIs(t, err, apperror.ErrOrderNotFound)
}

func TestOrderService_SendMessage_PartyOnly(t *testing.T) {
	repo := new(mockOrderRepo)
	svc := NewOrderService(repo, new(mockCatalog), nil, nil)
	ctx := context.Background()

	orderID := uuid.New()
	repo.On("GetByID", ctx, orderID).Return(&models.Order{
		ID:           orderID,
		ClientID:     uuid.New(),
		FreelancerID: uuid.New(),
	}, nil)

	_, err := svc.SendMessage(ctx, orderID, uuid.New(), "привет")

	assert.ErrorIs(t, err, apperror.ErrForbidden)
	repo.AssertNotCalled(t, "AddMessage", mock.Anything, mock.Anything)
}

func TestOrderService_SendMessage_Success(t *testing.T) {
	repo := new(mockOrderRepo)
	svc := NewOrderService(repo, new(mockCatalog), nil, nil)
	ctx := context.Background()

	orderID := uuid.New()
	clientID := uuid.New()
	repo.On("GetByID", ctx, orderID).Return(&models.Order{
		ID:           orderID,
		ClientID:     clientID,
		FreelancerID: uuid.New(),
	}, nil)
	repo.On("AddMessage", ctx, mock.AnythingOfType("*models.OrderMessage")).Return(nil)

	msg, err := svc.SendMessage(ctx, orderID, clientID, "когда будет готово?")

	assert.NoError(t, err)
	assert.Equal(t, clientID, msg.SenderID)
	assert.Equal(t, "когда будет готово?", msg.Content)
}
