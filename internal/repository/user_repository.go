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

// Ошибки уровня репозитория.
var (
	ErrUserNotFound = errors.New("user not found")
)

// UserRepository отвечает за пользователей в части, нужной заказам и выплатам.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создаёт новый экземпляр.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID возвращает пользователя по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	query := `
		SELECT id, email, username, role, stripe_account_id, payouts_enabled, is_active, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by id %w", err)
	}
	return &user, nil
}

// GetByStripeAccountID находит пользователя по идентификатору подключённого счёта.
func (r *UserRepository) GetByStripeAccountID(ctx context.Context, accountID string) (*models.User, error) {
	var user models.User
	query := `
		SELECT id, email, username, role, stripe_account_id, payouts_enabled, is_active, created_at, updated_at
		FROM users
		WHERE stripe_account_id = $1
	`
	if err := r.db.GetContext(ctx, &user, query, accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by stripe account %w", err)
	}
	return &user, nil
}

// SetStripeAccountID привязывает подключённый счёт к пользователю.
// Счёт записывается только если его ещё нет — повторный онбординг не должен
// перетирать уже привязанный счёт.
func (r *UserRepository) SetStripeAccountID(ctx context.Context, userID uuid.UUID, accountID string) error {
	query := `
		UPDATE users
		SET stripe_account_id = $2, updated_at = NOW()
		WHERE id = $1 AND stripe_account_id IS NULL
	`
	if _, err := r.db.ExecContext(ctx, query, userID, accountID); err != nil {
		return fmt.Errorf("user repository: set stripe account %w", err)
	}
	return nil
}

// EnablePayouts включает флаг готовности выплат. Возвращает true, если флаг
// был переключён именно этим вызовом: повторное событие account.updated
// не должно слать повторное уведомление.
func (r *UserRepository) EnablePayouts(ctx context.Context, userID uuid.UUID) (bool, error) {
	query := `
		UPDATE users
		SET payouts_enabled = TRUE, updated_at = NOW()
		WHERE id = $1 AND payouts_enabled = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return false, fmt.Errorf("user repository: enable payouts %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("user repository: enable payouts rows affected %w", err)
	}
	return affected > 0, nil
}
