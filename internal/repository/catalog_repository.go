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

var ErrServiceNotFound = errors.New("service not found")

// CatalogRepository даёт доступ к услугам каталога. CRUD каталога живёт во
// внешнем сервисе, здесь услуга нужна только для снапшота цены.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository создаёт новый экземпляр.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// GetByID возвращает услугу по идентификатору.
func (r *CatalogRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	var service models.Service
	query := `
		SELECT id, freelancer_id, title, description, price_cents, is_active, created_at, updated_at
		FROM services
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &service, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("catalog repository: get by id %w", err)
	}
	return &service, nil
}
