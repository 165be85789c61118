package models

import (
	"time"

	"github.com/google/uuid"
)

// Service описывает услугу из каталога фрилансера.
// CRUD каталога живёт в отдельном сервисе; здесь услуга нужна только как
// источник снапшота цены при создании заказа.
type Service struct {
	ID           uuid.UUID `db:"id" json:"id"`
	FreelancerID uuid.UUID `db:"freelancer_id" json:"freelancer_id"`
	Title        string    `db:"title" json:"title"`
	Description  string    `db:"description" json:"description"`
	PriceCents   int64     `db:"price_cents" json:"price_cents"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
