package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/marcos85-cr/Proyecto-BackEnd-Mejorado-sub001/internal/model"
)

type ScheduleRepository struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewScheduleRepository(db *sql.DB, logger *logrus.Logger) *ScheduleRepository {
	return &ScheduleRepository{db: db, logger: logger}
}

// La inserción de programaciones vive en TransactionRepository.Create, que
// registra la transacción y su programación en una sola transacción SQL.

func (r *ScheduleRepository) GetByTransaction(ctx context.Context, transactionID uuid.UUID) (*model.Schedule, error) {
	query := `
        SELECT id, transaccion_id, fecha_programada, fecha_creacion
        FROM programaciones
        WHERE transaccion_id = $1
    `

	var s model.Schedule
	err := r.db.QueryRowContext(ctx, query, transactionID).Scan(&s.ID, &s.TransactionID, &s.DueAt, &s.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}

	return &s, nil
}

// DeleteByTransactionTx consume la programación dentro de la transacción SQL
// en curso (la usa el ledger al liquidar una transacción programada).
func (r *ScheduleRepository) DeleteByTransactionTx(ctx context.Context, tx *sql.Tx, transactionID uuid.UUID) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM programaciones WHERE transaccion_id = $1`, transactionID); err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	return nil
}
