package models

import (
	"time"

	"github.com/google/uuid"
)

// Order описывает заказ услуги клиентом у фрилансера.
// Цена копируется из услуги в момент создания: последующие изменения цены
// услуги не влияют на существующие заказы. Заказы никогда не удаляются —
// это финансовая запись.
type Order struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	ServiceID     uuid.UUID  `db:"service_id" json:"service_id"`
	ClientID      uuid.UUID  `db:"client_id" json:"client_id"`
	FreelancerID  uuid.UUID  `db:"freelancer_id" json:"freelancer_id"`
	Requirements  string     `db:"requirements" json:"requirements"`
	PriceCents    int64      `db:"price_cents" json:"price_cents"`
	Status        string     `db:"status" json:"status"`
	PaymentStatus string     `db:"payment_status" json:"payment_status"`
	StartedAt     *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	IsReviewable  bool       `db:"is_reviewable" json:"is_reviewable"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// IsParty сообщает, является ли пользователь стороной заказа.
func (o *Order) IsParty(userID uuid.UUID) bool {
	return o.ClientID == userID || o.FreelancerID == userID
}

// Counterpart возвращает вторую сторону заказа относительно userID.
func (o *Order) Counterpart(userID uuid.UUID) uuid.UUID {
	if o.ClientID == userID {
		return o.FreelancerID
	}
	return o.ClientID
}

// OrderMessage — сообщение в чате заказа. Список только дополняется,
// порядок — порядок записи.
type OrderMessage struct {
	ID        uuid.UUID `db:"id" json:"id"`
	OrderID   uuid.UUID `db:"order_id" json:"order_id"`
	SenderID  uuid.UUID `db:"sender_id" json:"sender_id"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
