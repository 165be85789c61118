package worker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-market-backend/internal/logger"
	"github.com/ignatzorin/freelance-market-backend/internal/models"
	"github.com/ignatzorin/freelance-market-backend/internal/pkg/apperror"
)

// ReleaseJobQueue — доступ воркера к таблице отложенных выплат.
type ReleaseJobQueue interface {
	ClaimDue(ctx context.Context, limit int) ([]models.ReleaseJob, error)
	MarkFailed(ctx context.Context, paymentID uuid.UUID, cause string) error
}

// PaymentReleaser выполняет выплату по платежу.
type PaymentReleaser interface {
	ReleasePayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
}

const defaultBatchSize = 50

// ReleaseWorker периодически забирает созревшие задачи авто-выплаты и
// проводит их через общий путь выплаты. Готовность платежа проверяется
// в момент срабатывания, а не в момент планирования: если выплату уже
// провёл администратор или платёж вернули, задача гасится без перевода.
type ReleaseWorker struct {
	jobs     ReleaseJobQueue
	payments PaymentReleaser
	interval time.Duration
	batch    int
}

// NewReleaseWorker создаёт воркер с заданным интервалом опроса.
func NewReleaseWorker(jobs ReleaseJobQueue, payments PaymentReleaser, interval time.Duration) *ReleaseWorker {
	return &ReleaseWorker{
		jobs:     jobs,
		payments: payments,
		interval: interval,
		batch:    defaultBatchSize,
	}
}

// Run крутит цикл опроса до отмены контекста. Запускается в отдельной
// горутине из main.
func (w *ReleaseWorker) Run(ctx context.Context) {
	log := logger.WithComponent("release-worker")
	log.Infof("воркер авто-выплат запущен, интервал опроса %s", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("воркер авто-выплат остановлен")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep обрабатывает одну пачку созревших задач.
func (w *ReleaseWorker) sweep(ctx context.Context) {
	log := logger.WithComponent("release-worker")

	jobs, err := w.jobs.ClaimDue(ctx, w.batch)
	if err != nil {
		log.Errorf("не удалось забрать задачи авто-выплаты: %v", err)
		return
	}

	for _, job := range jobs {
		if _, err := w.payments.ReleasePayment(ctx, job.PaymentID); err != nil {
			// Платёж уже выплачен, возвращён или так и не был подтверждён —
			// задача считается погашенной без перевода.
			if apperror.IsInvalidState(err) {
				log.Infof("платёж %s не готов к авто-выплате, задача погашена: %v", job.PaymentID, err)
				continue
			}

			log.Errorf("авто-выплата по платежу %s не выполнена: %v", job.PaymentID, err)
			if markErr := w.jobs.MarkFailed(ctx, job.PaymentID, err.Error()); markErr != nil {
				log.Errorf("не удалось пометить задачу %s ошибочной: %v", job.PaymentID, markErr)
			}
			continue
		}

		log.Infof("авто-выплата по платежу %s выполнена", job.PaymentID)
	}
}
