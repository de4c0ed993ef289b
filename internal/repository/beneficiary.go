package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/marcos85-cr/Proyecto-BackEnd-Mejorado-sub001/internal/model"
)

type BeneficiaryRepository struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewBeneficiaryRepository(db *sql.DB, logger *logrus.Logger) *BeneficiaryRepository {
	return &BeneficiaryRepository{db: db, logger: logger}
}

const beneficiaryColumns = `id, cliente_id, alias, banco, moneda, numero_cuenta, pais, estado, fecha_creacion`

func scanBeneficiary(row interface{ Scan(...any) error }) (*model.Beneficiary, error) {
	var b model.Beneficiary
	err := row.Scan(
		&b.ID,
		&b.ClientID,
		&b.Alias,
		&b.Bank,
		&b.Currency,
		&b.AccountNumber,
		&b.Country,
		&b.Status,
		&b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BeneficiaryRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Beneficiary, error) {
	query := `
        SELECT ` + beneficiaryColumns + `
        FROM beneficiarios
        WHERE id = $1
    `

	b, err := scanBeneficiary(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get beneficiary: %w", err)
	}

	return b, nil
}

func (r *BeneficiaryRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]model.Beneficiary, error) {
	query := `
        SELECT ` + beneficiaryColumns + `
        FROM beneficiarios
        WHERE cliente_id = $1
        ORDER BY alias
    `

	rows, err := r.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query beneficiaries: %w", err)
	}
	defer rows.Close()

	var beneficiaries []model.Beneficiary
	for rows.Next() {
		b, err := scanBeneficiary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan beneficiary: %w", err)
		}
		beneficiaries = append(beneficiaries, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read beneficiaries: %w", err)
	}

	return beneficiaries, nil
}
