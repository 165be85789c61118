package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/freelance-market-backend/internal/models"
)

// Ошибки уровня репозитория.
var (
	ErrOrderNotFound = errors.New("order not found")
)

// OrderRepository отвечает за заказы и их чат.
type OrderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository создаёт новый экземпляр.
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, service_id, client_id, freelancer_id, requirements, price_cents,
	status, payment_status, started_at, completed_at, is_reviewable, created_at, updated_at`

// GetByID возвращает заказ по идентификатору.
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if err := r.db.GetContext(ctx, &order, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("order repository: get by id %w", err)
	}
	return &order, nil
}

// Create сохраняет новый заказ.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (service_id, client_id, freelancer_id, requirements, price_cents, status, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(
		ctx,
		query,
		order.ServiceID,
		order.ClientID,
		order.FreelancerID,
		order.Requirements,
		order.PriceCents,
		order.Status,
		order.PaymentStatus,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return fmt.Errorf("order repository: insert order %w", err)
	}
	return nil
}

// ListForUser возвращает заказы, где пользователь является клиентом или фрилансером.
func (r *OrderRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE client_id = $1 OR freelancer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &orders, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("order repository: list for user %w", err)
	}
	return orders, nil
}

// UpdateStatus атомарно переводит заказ из fromStatus в toStatus вместе с
// побочными полями. Условие по текущему статусу защищает от гонки двух
// конкурентных переходов: проигравший получает ноль затронутых строк.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, fromStatus, toStatus string, startedAt, completedAt *time.Time, markReviewable bool) (bool, error) {
	query := `
		UPDATE orders
		SET status = $3,
		    started_at = COALESCE($4, started_at),
		    completed_at = COALESCE($5, completed_at),
		    is_reviewable = is_reviewable OR $6,
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
	`
	res, err := r.db.ExecContext(ctx, query, orderID, fromStatus, toStatus, startedAt, completedAt, markReviewable)
	if err != nil {
		return false, fmt.Errorf("order repository: update status %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("order repository: update status rows affected %w", err)
	}
	return affected > 0, nil
}

// SetPaymentStatus обновляет статус оплаты заказа.
func (r *OrderRepository) SetPaymentStatus(ctx context.Context, orderID uuid.UUID, paymentStatus string) error {
	query := `UPDATE orders SET payment_status = $2, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, orderID, paymentStatus)
	if err != nil {
		return fmt.Errorf("order repository: set payment status %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// AddMessage добавляет сообщение в чат заказа.
func (r *OrderRepository) AddMessage(ctx context.Context, msg *models.OrderMessage) error {
	query := `
		INSERT INTO order_messages (order_id, sender_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(ctx, query, msg.OrderID, msg.SenderID, msg.Content).
		Scan(&msg.ID, &msg.CreatedAt); err != nil {
		return fmt.Errorf("order repository: insert message %w", err)
	}
	return nil
}

// ListMessages возвращает сообщения заказа в порядке записи.
func (r *OrderRepository) ListMessages(ctx context.Context, orderID uuid.UUID, limit, offset int) ([]models.OrderMessage, error) {
	var messages []models.OrderMessage
	query := `
		SELECT id, order_id, sender_id, content, created_at
		FROM order_messages
		WHERE order_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &messages, query, orderID, limit, offset); err != nil {
		return nil, fmt.Errorf("order repository: list messages %w", err)
	}
	return messages, nil
}
