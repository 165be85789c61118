package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-market-backend/internal/logger"
	"github.com/ignatzorin/freelance-market-backend/internal/models"
	"github.com/ignatzorin/freelance-market-backend/internal/repository"
)

// ReleaseJobStore описывает доступ планировщика к таблице отложенных выплат.
type ReleaseJobStore interface {
	Schedule(ctx context.Context, paymentID, orderID uuid.UUID, dueAt time.Time) error
}

// ActivePaymentFinder находит живую запись реестра по заказу.
type ActivePaymentFinder interface {
	GetActiveByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
}

// AutoReleaseScheduler планирует авто-выплату через таблицу release_jobs:
// строка в базе переживает рестарт процесса, in-process таймер — нет.
type AutoReleaseScheduler struct {
	jobs     ReleaseJobStore
	payments ActivePaymentFinder
	delay    time.Duration
}

// NewAutoReleaseScheduler создаёт планировщик с заданной задержкой выплаты.
func NewAutoReleaseScheduler(jobs ReleaseJobStore, payments ActivePaymentFinder, delay time.Duration) *AutoReleaseScheduler {
	return &AutoReleaseScheduler{jobs: jobs, payments: payments, delay: delay}
}

// ScheduleForOrder ставит выплату по заказу в очередь с отсрочкой. Заказ без
// живого платежа пропускается: завершение неоплаченного заказа выплаты не
// порождает. Повторный вызов по тому же платежу — no-op.
func (s *AutoReleaseScheduler) ScheduleForOrder(ctx context.Context, orderID uuid.UUID) error {
	payment, err := s.payments.GetActiveByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			logger.WithComponent("release-scheduler").Infof("по заказу %s нет живого платежа, авто-выплата не планируется", orderID)
			return nil
		}
		return err
	}

	dueAt := time.Now().Add(s.delay)
	if err := s.jobs.Schedule(ctx, payment.ID, orderID, dueAt); err != nil {
		return err
	}

	logger.WithComponent("release-scheduler").Infof("авто-выплата по платежу %s запланирована на %s", payment.ID, dueAt.Format(time.RFC3339))
	return nil
}
