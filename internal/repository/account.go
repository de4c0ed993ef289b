package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/marcos85-cr/Proyecto-BackEnd-Mejorado-sub001/internal/model"
)

type AccountRepository struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewAccountRepository(db *sql.DB, logger *logrus.Logger) *AccountRepository {
	return &AccountRepository{db: db, logger: logger}
}

const accountColumns = `id, cliente_id, numero_cuenta, tipo, moneda, categoria, estado, saldo, fecha_creacion, fecha_actualizacion`

func scanAccount(row interface{ Scan(...any) error }) (*model.Account, error) {
	var account model.Account
	err := row.Scan(
		&account.ID,
		&account.ClientID,
		&account.Number,
		&account.Type,
		&account.Currency,
		&account.Tier,
		&account.Status,
		&account.Balance,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	query := `
        SELECT ` + accountColumns + `
        FROM cuentas
        WHERE id = $1
    `

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

func (r *AccountRepository) GetByNumber(ctx context.Context, number string) (*model.Account, error) {
	query := `
        SELECT ` + accountColumns + `
        FROM cuentas
        WHERE numero_cuenta = $1
    `

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, number))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by number: %w", err)
	}

	return account, nil
}

// GetByIDForUpdate bloquea la fila de la cuenta dentro de la transacción SQL
// en curso. Es el mecanismo que serializa los movimientos concurrentes sobre
// una misma cuenta.
func (r *AccountRepository) GetByIDForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*model.Account, error) {
	query := `
        SELECT ` + accountColumns + `
        FROM cuentas
        WHERE id = $1
        FOR UPDATE
    `

	account, err := scanAccount(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}

	return account, nil
}

// UpdateBalanceTx aplica un delta (positivo o negativo) al saldo dentro de la
// transacción SQL en curso.
func (r *AccountRepository) UpdateBalanceTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, delta decimal.Decimal) error {
	query := `
        UPDATE cuentas
        SET saldo = saldo + $1,
            fecha_actualizacion = NOW()
        WHERE id = $2
    `

	result, err := tx.ExecContext(ctx, query, delta, id)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return model.ErrAccountNotFound
	}

	return nil
}

func (r *AccountRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]model.Account, error) {
	query := `
        SELECT ` + accountColumns + `
        FROM cuentas
        WHERE cliente_id = $1
        ORDER BY fecha_creacion
    `

	rows, err := r.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query client accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read accounts: %w", err)
	}

	return accounts, nil
}

func (r *AccountRepository) GetDB() *sql.DB {
	return r.db
}
