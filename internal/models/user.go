package models

import (
	"time"

	"github.com/google/uuid"
)

// User описывает сущность пользователя платформы.
// Аутентификация живёт во внешнем identity-сервисе, здесь хранится только
// то, что нужно заказам и выплатам.
type User struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	Email           string     `db:"email" json:"email"`
	Username        string     `db:"username" json:"username"`
	Role            string     `db:"role" json:"role"`
	StripeAccountID *string    `db:"stripe_account_id" json:"stripe_account_id,omitempty"`
	PayoutsEnabled  bool       `db:"payouts_enabled" json:"payouts_enabled"`
	IsActive        bool       `db:"is_active" json:"is_active"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}
