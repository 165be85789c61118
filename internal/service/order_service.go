package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-market-backend/internal/goroutine"
	"github.com/ignatzorin/freelance-market-backend/internal/logger"
	"github.com/ignatzorin/freelance-market-backend/internal/models"
	"github.com/ignatzorin/freelance-market-backend/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-market-backend/internal/repository"
)

// OrderRepository описывает взаимодействие сервиса с хранилищем заказов.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, fromStatus, toStatus string, startedAt, completedAt *time.Time, markReviewable bool) (bool, error)
	AddMessage(ctx context.Context, msg *models.OrderMessage) error
	ListMessages(ctx context.Context, orderID uuid.UUID, limit, offset int) ([]models.OrderMessage, error)
}

// ServiceCatalog описывает доступ к услугам каталога.
type ServiceCatalog interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Service, error)
}

// ReleaseScheduler планирует отложенную авто-выплату по заказу.
type ReleaseScheduler interface {
	ScheduleForOrder(ctx context.Context, orderID uuid.UUID) error
}

// Notifier — realtime-канал уведомлений, внедряется зависимостью, а не
// глобальным состоянием: в тестах подменяется фейком.
type Notifier interface {
	PublishToUser(userID uuid.UUID, event string, data interface{}) error
}

// OrderService содержит машину состояний заказа и чат заказа.
type OrderService struct {
	repo      OrderRepository
	catalog   ServiceCatalog
	scheduler ReleaseScheduler
	notifier  Notifier
}

// NewOrderService создаёт новый сервис заказов.
func NewOrderService(repo OrderRepository, catalog ServiceCatalog, scheduler ReleaseScheduler, notifier Notifier) *OrderService {
	return &OrderService{
		repo:      repo,
		catalog:   catalog,
		scheduler: scheduler,
		notifier:  notifier,
	}
}

// CreateOrderInput описывает входные данные создания заказа.
type CreateOrderInput struct {
	ClientID     uuid.UUID
	ServiceID    uuid.UUID
	Requirements string
}

// CreateOrder создаёт заказ со снапшотом цены услуги. Цена фиксируется здесь
// и больше не меняется, как бы потом ни менялась цена услуги.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if in.Requirements == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "требования к заказу не могут быть пустыми")
	}

	service, err := s.catalog.GetByID(ctx, in.ServiceID)
	if err != nil {
		if errors.Is(err, repository.ErrServiceNotFound) {
			return nil, apperror.ErrServiceNotFound
		}
		return nil, err
	}
	if !service.IsActive {
		return nil, apperror.New(apperror.ErrCodeValidation, "услуга недоступна для заказа")
	}
	if service.FreelancerID == in.ClientID {
		return nil, apperror.New(apperror.ErrCodeValidation, "нельзя заказать собственную услугу")
	}

	order := &models.Order{
		ServiceID:     service.ID,
		ClientID:      in.ClientID,
		FreelancerID:  service.FreelancerID,
		Requirements:  in.Requirements,
		PriceCents:    service.PriceCents,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.OrderPaymentStatusUnpaid,
	}

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, err
	}

	s.notifyAsync(order.FreelancerID, "order_created", order)

	return order, nil
}

// GetOrder возвращает заказ, если пользователь — его сторона.
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	order, err := s.getOwnedOrder(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrders возвращает заказы пользователя как клиента и как фрилансера.
func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListForUser(ctx, userID, limit, offset)
}

// UpdateStatus переводит заказ в новый статус с проверкой прав и допустимости
// перехода. Статус и побочные поля пишутся одним условным UPDATE; уведомления
// уходят асинхронно и на результат перехода не влияют.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, actorID uuid.UUID, newStatus string) (*models.Order, error) {
	if _, ok := models.ValidOrderStatuses[newStatus]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный статус заказа")
	}

	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, err
	}

	if err := authorizeTransition(order, actorID, newStatus); err != nil {
		return nil, err
	}

	if !models.IsValidOrderTransition(order.Status, newStatus) {
		return nil, apperror.New(apperror.ErrCodeInvalidState,
			"переход из статуса "+order.Status+" в "+newStatus+" недопустим")
	}

	now := time.Now()
	var startedAt, completedAt *time.Time
	markReviewable := false
	switch newStatus {
	case models.OrderStatusAccepted:
		startedAt = &now
	case models.OrderStatusCompleted:
		completedAt = &now
		markReviewable = true
	}

	ok, err := s.repo.UpdateStatus(ctx, orderID, order.Status, newStatus, startedAt, completedAt, markReviewable)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Кто-то успел поменять статус между чтением и записью.
		return nil, apperror.New(apperror.ErrCodeInvalidState, "статус заказа уже изменился, повторите запрос")
	}

	order.Status = newStatus
	if startedAt != nil {
		order.StartedAt = startedAt
	}
	if completedAt != nil {
		order.CompletedAt = completedAt
		order.IsReviewable = true
	}

	if newStatus == models.OrderStatusCompleted {
		// Планируем отложенную авто-выплату. Сбой планирования не
		// откатывает переход: выплата остаётся доступной администратору.
		if err := s.scheduler.ScheduleForOrder(ctx, orderID); err != nil {
			logger.WithComponent("order-service").Errorf("не удалось запланировать авто-выплату по заказу %s: %v", orderID, err)
		}
	}

	s.notifyAsync(order.ClientID, "order_status_changed", order)
	s.notifyAsync(order.FreelancerID, "order_status_changed", order)

	return order, nil
}

// SendMessage добавляет сообщение в чат заказа: сперва запись, затем
// broadcast обеим сторонам и уведомление получателю. Сбои доставки не
// откатывают записанное сообщение.
func (s *OrderService) SendMessage(ctx context.Context, orderID, senderID uuid.UUID, content string) (*models.OrderMessage, error) {
	if content == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "текст сообщения не может быть пустым")
	}
	if len(content) > 5000 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сообщение слишком длинное (максимум 5000 символов)")
	}

	order, err := s.getOwnedOrder(ctx, orderID, senderID)
	if err != nil {
		return nil, err
	}

	message := &models.OrderMessage{
		OrderID:  orderID,
		SenderID: senderID,
		Content:  content,
	}
	if err := s.repo.AddMessage(ctx, message); err != nil {
		return nil, err
	}

	s.notifyAsync(order.ClientID, "order_message", message)
	s.notifyAsync(order.FreelancerID, "order_message", message)
	s.notifyAsync(order.Counterpart(senderID), "new_message", map[string]interface{}{
		"order_id":  orderID,
		"sender_id": senderID,
	})

	return message, nil
}

// ListMessages возвращает чат заказа его стороне.
func (s *OrderService) ListMessages(ctx context.Context, orderID, userID uuid.UUID, limit, offset int) ([]models.OrderMessage, error) {
	if _, err := s.getOwnedOrder(ctx, orderID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListMessages(ctx, orderID, limit, offset)
}

// getOwnedOrder возвращает заказ и проверяет, что пользователь — его сторона.
func (s *OrderService) getOwnedOrder(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, err
	}
	if !order.IsParty(userID) {
		return nil, apperror.ErrForbidden
	}
	return order, nil
}

// authorizeTransition проверяет право инициатора на переход: рабочие статусы
// двигает только назначенный фрилансер, отменить может любая сторона.
func authorizeTransition(order *models.Order, actorID uuid.UUID, newStatus string) error {
	switch newStatus {
	case models.OrderStatusAccepted, models.OrderStatusInProgress, models.OrderStatusCompleted:
		if order.FreelancerID != actorID {
			return apperror.ErrForbidden
		}
	case models.OrderStatusCancelled:
		if !order.IsParty(actorID) {
			return apperror.ErrForbidden
		}
	default:
		return apperror.ErrForbidden
	}
	return nil
}

// notifyAsync отправляет уведомление, не блокируя основной поток запроса.
func (s *OrderService) notifyAsync(userID uuid.UUID, event string, data interface{}) {
	if s.notifier == nil {
		return
	}
	goroutine.SafeGo(func() {
		if err := s.notifier.PublishToUser(userID, event, data); err != nil {
			logger.WithComponent("order-service").Warnf("не удалось отправить уведомление %s пользователю %s: %v", event, userID, err)
		}
	})
}
