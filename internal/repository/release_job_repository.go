package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/freelance-market-backend/internal/models"
)

// ReleaseJobRepository хранит отложенные задачи на выплату. Таблица играет
// роль устойчивого таймера: in-process таймер не переживает рестарт,
// строка в базе — переживает.
type ReleaseJobRepository struct {
	db *sqlx.DB
}

func NewReleaseJobRepository(db *sqlx.DB) *ReleaseJobRepository {
	return &ReleaseJobRepository{db: db}
}

// Schedule создаёт задачу на выплату. Повторное планирование по тому же
// платежу — no-op: двойной перевод исключается ещё на этом уровне.
func (r *ReleaseJobRepository) Schedule(ctx context.Context, paymentID, orderID uuid.UUID, dueAt time.Time) error {
	query := `
		INSERT INTO release_jobs (payment_id, order_id, due_at, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (payment_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, paymentID, orderID, dueAt, models.ReleaseJobStatusPending); err != nil {
		return fmt.Errorf("release job repository: schedule %w", err)
	}
	return nil
}

// ClaimDue забирает пачку созревших задач, помечая их выполненными в той же
// транзакции. SKIP LOCKED позволяет нескольким инстансам воркера не драться
// за одни и те же строки; итоговую защиту от двойного перевода даёт CAS в
// платёжном реестре, задача же после забора больше не возвращается в pending
// сама — при ошибке воркер переводит её в failed явно.
func (r *ReleaseJobRepository) ClaimDue(ctx context.Context, limit int) ([]models.ReleaseJob, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("release job repository: begin tx %w", err)
	}
	defer tx.Rollback()

	var jobs []models.ReleaseJob
	selectQuery := `
		SELECT payment_id, order_id, due_at, status, attempts, last_error, created_at, updated_at
		FROM release_jobs
		WHERE status = $1 AND due_at <= NOW()
		ORDER BY due_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`
	if err := tx.SelectContext(ctx, &jobs, selectQuery, models.ReleaseJobStatusPending, limit); err != nil {
		return nil, fmt.Errorf("release job repository: select due %w", err)
	}

	for i := range jobs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE release_jobs SET status = $2, attempts = attempts + 1, updated_at = NOW() WHERE payment_id = $1`,
			jobs[i].PaymentID, models.ReleaseJobStatusDone); err != nil {
			return nil, fmt.Errorf("release job repository: claim %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("release job repository: commit %w", err)
	}
	return jobs, nil
}

// MarkFailed фиксирует ошибку обработки задачи для последующего ручного
// разбора: авто-выплата выполняется один раз, повторный перевод всегда
// доступен администратору.
func (r *ReleaseJobRepository) MarkFailed(ctx context.Context, paymentID uuid.UUID, cause string) error {
	query := `
		UPDATE release_jobs
		SET status = $2, last_error = $3, updated_at = NOW()
		WHERE payment_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, paymentID, models.ReleaseJobStatusFailed, cause); err != nil {
		return fmt.Errorf("release job repository: mark failed %w", err)
	}
	return nil
}
