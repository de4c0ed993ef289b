package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/marcos85-cr/Proyecto-BackEnd-Mejorado-sub001/internal/model"
)

type ProviderRepository struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewProviderRepository(db *sql.DB, logger *logrus.Logger) *ProviderRepository {
	return &ProviderRepository{db: db, logger: logger}
}

func (r *ProviderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	query := `
        SELECT id, nombre, patron_contrato
        FROM proveedores
        WHERE id = $1
    `

	var p model.Provider
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.ContractPattern)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}

	return &p, nil
}

func (r *ProviderRepository) List(ctx context.Context) ([]model.Provider, error) {
	query := `
        SELECT id, nombre, patron_contrato
        FROM proveedores
        ORDER BY nombre
    `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query providers: %w", err)
	}
	defer rows.Close()

	var providers []model.Provider
	for rows.Next() {
		var p model.Provider
		if err := rows.Scan(&p.ID, &p.Name, &p.ContractPattern); err != nil {
			return nil, fmt.Errorf("failed to scan provider: %w", err)
		}
		providers = append(providers, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read providers: %w", err)
	}

	return providers, nil
}
