package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/freelance-market-backend/internal/models"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
)

// PaymentRepository отвечает за записи платёжного реестра. Все переходы
// статусов — условные UPDATE: повторная доставка вебхука или гонка двух
// вызовов выплаты дают ноль затронутых строк, а не двойной эффект.
type PaymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, order_id, amount_cents, platform_fee_cents, freelancer_amount_cents,
	status, payout_status, stripe_payment_intent_id, stripe_charge_id, stripe_transfer_id,
	currency, created_at, updated_at, transferred_at`

// Create сохраняет новую запись реестра.
func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	query := `
		INSERT INTO payments (order_id, amount_cents, platform_fee_cents, freelancer_amount_cents,
			status, payout_status, stripe_payment_intent_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(
		ctx,
		query,
		p.OrderID,
		p.AmountCents,
		p.PlatformFeeCents,
		p.FreelancerAmountCents,
		p.Status,
		p.PayoutStatus,
		p.StripePaymentIntentID,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("payment repository: insert %w", err)
	}
	return nil
}

// GetByID возвращает запись по идентификатору.
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("payment repository: get by id %w", err)
	}
	return &p, nil
}

// GetActiveByOrderID возвращает живую запись по заказу: pending или succeeded.
// Неуспешные (failed) записи не считаются — после них можно платить заново.
func (r *PaymentRepository) GetActiveByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE order_id = $1 AND status IN ($2, $3, $4)
		ORDER BY created_at DESC
		LIMIT 1
	`
	if err := r.db.GetContext(ctx, &p, query, orderID,
		models.PaymentStatusPending, models.PaymentStatusSucceeded, models.PaymentStatusTransferred); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("payment repository: get active by order %w", err)
	}
	return &p, nil
}

// GetReleasableByOrderID возвращает запись заказа, готовую к выплате:
// списание подтверждено, выплата ещё не выполнена.
func (r *PaymentRepository) GetReleasableByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE order_id = $1 AND status = $2 AND payout_status = $3
		LIMIT 1
	`
	if err := r.db.GetContext(ctx, &p, query, orderID, models.PaymentStatusSucceeded, models.PayoutStatusPending); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("payment repository: get releasable by order %w", err)
	}
	return &p, nil
}

// GetByPaymentIntentID находит запись по идентификатору payment intent.
func (r *PaymentRepository) GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Payment, error) {
	var p models.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE stripe_payment_intent_id = $1`
	if err := r.db.GetContext(ctx, &p, query, paymentIntentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("payment repository: get by payment intent %w", err)
	}
	return &p, nil
}

// MarkSucceeded переводит pending → succeeded. Возвращает true, если переход
// выполнил именно этот вызов: повтор вебхука и опоздавшие события статуса
// не откатывают succeeded/transferred назад.
func (r *PaymentRepository) MarkSucceeded(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.transition(ctx, id, models.PaymentStatusPending, models.PaymentStatusSucceeded)
}

// MarkFailed переводит pending → failed.
func (r *PaymentRepository) MarkFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.transition(ctx, id, models.PaymentStatusPending, models.PaymentStatusFailed)
}

func (r *PaymentRepository) transition(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	query := `UPDATE payments SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to)
	if err != nil {
		return false, fmt.Errorf("payment repository: transition %s->%s %w", from, to, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("payment repository: transition rows affected %w", err)
	}
	return affected > 0, nil
}

// BackfillCharge дозаполняет идентификатор charge и валюту, если они ещё не
// известны. События charge.succeeded и payment_intent.succeeded приходят в
// произвольном порядке, поэтому уже записанные значения не перетираются.
func (r *PaymentRepository) BackfillCharge(ctx context.Context, id uuid.UUID, chargeID, currency string) error {
	query := `
		UPDATE payments
		SET stripe_charge_id = COALESCE(stripe_charge_id, $2),
		    currency = COALESCE(currency, $3),
		    updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, chargeID, currency); err != nil {
		return fmt.Errorf("payment repository: backfill charge %w", err)
	}
	return nil
}

// ClaimPayout — compare-and-swap по payout_status: succeeded/pending →
// succeeded/completed. Выполняется ДО обращения к шлюзу, поэтому из двух
// конкурентных вызовов выплаты перевод запросит ровно один; второй получит
// false ещё до какого-либо внешнего вызова.
func (r *PaymentRepository) ClaimPayout(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE payments
		SET payout_status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3 AND payout_status = $4
	`
	res, err := r.db.ExecContext(ctx, query, id,
		models.PayoutStatusCompleted, models.PaymentStatusSucceeded, models.PayoutStatusPending)
	if err != nil {
		return false, fmt.Errorf("payment repository: claim payout %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("payment repository: claim payout rows affected %w", err)
	}
	return affected > 0, nil
}

// ReleasePayoutClaim возвращает payout_status в pending после неудачного
// обращения к шлюзу: запись реестра остаётся в исходном состоянии и выплату
// можно повторить.
func (r *PaymentRepository) ReleasePayoutClaim(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE payments
		SET payout_status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3 AND payout_status = $4
	`
	if _, err := r.db.ExecContext(ctx, query, id,
		models.PayoutStatusPending, models.PaymentStatusSucceeded, models.PayoutStatusCompleted); err != nil {
		return fmt.Errorf("payment repository: release payout claim %w", err)
	}
	return nil
}

// FinishTransfer фиксирует успешный перевод: статус transferred и
// идентификатор перевода.
func (r *PaymentRepository) FinishTransfer(ctx context.Context, id uuid.UUID, transferID string) error {
	query := `
		UPDATE payments
		SET status = $3,
		    stripe_transfer_id = $2,
		    transferred_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, transferID, models.PaymentStatusTransferred); err != nil {
		return fmt.Errorf("payment repository: finish transfer %w", err)
	}
	return nil
}
