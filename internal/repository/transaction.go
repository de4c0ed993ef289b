package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/marcos85-cr/Proyecto-BackEnd-Mejorado-sub001/internal/model"
)

type TransactionRepository struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewTransactionRepository(db *sql.DB, logger *logrus.Logger) *TransactionRepository {
	return &TransactionRepository{db: db, logger: logger}
}

const transactionColumns = `id, cliente_id, tipo, estado, cuenta_origen_id, destino_tipo,
        cuenta_destino_id, beneficiario_id, proveedor_id, numero_contrato, monto, moneda,
        comision, clave_idempotencia, numero_recibo, detalle_error, motivo_rechazo,
        aprobada_por, fecha_creacion, fecha_ejecucion`

func scanTransaction(row interface{ Scan(...any) error }) (*model.Transaction, error) {
	var t model.Transaction
	err := row.Scan(
		&t.ID,
		&t.ClientID,
		&t.Kind,
		&t.Status,
		&t.SourceAccountID,
		&t.Destination.Kind,
		&t.Destination.AccountID,
		&t.Destination.BeneficiaryID,
		&t.Destination.ProviderID,
		&t.Destination.ContractNumber,
		&t.Amount,
		&t.Currency,
		&t.Commission,
		&t.IdempotencyKey,
		&t.ReceiptNumber,
		&t.ErrorDetail,
		&t.RejectReason,
		&t.ApprovedBy,
		&t.CreatedAt,
		&t.ExecutedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserta la transacción y, si trae programación, la fila de
// programaciones en la misma transacción SQL: nunca queda una transacción
// programada sin su fecha. La restricción UNIQUE sobre clave_idempotencia es
// el único mecanismo de deduplicación: una violación se traduce a
// ErrDuplicateIdempotencyKey para que IdempotencyGuard la trate como el caso
// "ya existe".
func (r *TransactionRepository) Create(ctx context.Context, t *model.Transaction) error {
	r.logger.WithFields(logrus.Fields{
		"transaccion_id": t.ID,
		"tipo":           t.Kind,
		"estado":         t.Status,
		"monto":          t.Amount,
		"clave":          t.IdempotencyKey,
	}).Info("Registrando nueva transacción")

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
        INSERT INTO transacciones (` + transactionColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
    `

	_, err = tx.ExecContext(
		ctx,
		query,
		t.ID,
		t.ClientID,
		t.Kind,
		t.Status,
		t.SourceAccountID,
		t.Destination.Kind,
		t.Destination.AccountID,
		t.Destination.BeneficiaryID,
		t.Destination.ProviderID,
		t.Destination.ContractNumber,
		t.Amount,
		t.Currency,
		t.Commission,
		t.IdempotencyKey,
		t.ReceiptNumber,
		t.ErrorDetail,
		t.RejectReason,
		t.ApprovedBy,
		t.CreatedAt,
		t.ExecutedAt,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code.Name() == "unique_violation" {
				return model.ErrDuplicateIdempotencyKey
			}
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	if t.Schedule != nil {
		scheduleQuery := `
            INSERT INTO programaciones (id, transaccion_id, fecha_programada, fecha_creacion)
            VALUES ($1, $2, $3, $4)
        `
		if _, err := tx.ExecContext(ctx, scheduleQuery, t.Schedule.ID, t.Schedule.TransactionID, t.Schedule.DueAt, t.Schedule.CreatedAt); err != nil {
			return fmt.Errorf("failed to create schedule: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	query := `
        SELECT ` + transactionColumns + `
        FROM transacciones
        WHERE id = $1
    `

	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return t, nil
}

// GetByIdempotencyKey devuelve (nil, nil) cuando no existe transacción con
// esa clave.
func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*model.Transaction, error) {
	query := `
        SELECT ` + transactionColumns + `
        FROM transacciones
        WHERE clave_idempotencia = $1
    `

	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get transaction by idempotency key: %w", err)
	}

	return t, nil
}

// MarkExecutedTx lleva la transacción a exitosa dentro de la transacción SQL
// en curso, con compare-and-set sobre el estado anterior. Cero filas
// afectadas significa que otro actor ganó la transición: ErrInvalidState.
func (r *TransactionRepository) MarkExecutedTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, from model.TransactionStatus, receipt string, approvedBy *uuid.UUID) error {
	if !model.CanTransition(from, model.StatusSuccessful) {
		return model.ErrInvalidState
	}

	query := `
        UPDATE transacciones
        SET estado = $1,
            numero_recibo = $2,
            aprobada_por = COALESCE($3, aprobada_por),
            fecha_ejecucion = NOW()
        WHERE id = $4 AND estado = $5
    `

	result, err := tx.ExecContext(ctx, query, model.StatusSuccessful, receipt, approvedBy, id, from)
	if err != nil {
		return fmt.Errorf("failed to mark transaction executed: %w", err)
	}
	return requireTransition(result)
}

// MarkFailed registra el fallo terminal de negocio y consume la programación
// pendiente (si existe) en una sola transacción SQL.
func (r *TransactionRepository) MarkFailed(ctx context.Context, id uuid.UUID, from model.TransactionStatus, detail string) error {
	if !model.CanTransition(from, model.StatusFailed) {
		return model.ErrInvalidState
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
        UPDATE transacciones
        SET estado = $1,
            detalle_error = $2,
            fecha_ejecucion = NOW()
        WHERE id = $3 AND estado = $4
    `

	result, err := tx.ExecContext(ctx, query, model.StatusFailed, detail, id, from)
	if err != nil {
		return fmt.Errorf("failed to mark transaction failed: %w", err)
	}
	if err := requireTransition(result); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM programaciones WHERE transaccion_id = $1`, id); err != nil {
		return fmt.Errorf("failed to consume schedule: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit failure: %w", err)
	}
	return nil
}

// MarkRejected registra el rechazo del aprobador; nunca toca saldos.
func (r *TransactionRepository) MarkRejected(ctx context.Context, id uuid.UUID, approverID uuid.UUID, reason string) error {
	query := `
        UPDATE transacciones
        SET estado = $1,
            aprobada_por = $2,
            motivo_rechazo = $3
        WHERE id = $4 AND estado = $5
    `

	result, err := r.db.ExecContext(ctx, query, model.StatusRejected, approverID, reason, id, model.StatusPendingApproval)
	if err != nil {
		return fmt.Errorf("failed to mark transaction rejected: %w", err)
	}
	return requireTransition(result)
}

// MarkPendingApproval pasa una transacción programada a pendiente de
// aprobación (la ejecución diferida descubrió que supera el umbral) y
// consume su programación.
func (r *TransactionRepository) MarkPendingApproval(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
        UPDATE transacciones
        SET estado = $1
        WHERE id = $2 AND estado = $3
    `

	result, err := tx.ExecContext(ctx, query, model.StatusPendingApproval, id, model.StatusScheduled)
	if err != nil {
		return fmt.Errorf("failed to mark transaction pending approval: %w", err)
	}
	if err := requireTransition(result); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM programaciones WHERE transaccion_id = $1`, id); err != nil {
		return fmt.Errorf("failed to consume schedule: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transition: %w", err)
	}
	return nil
}

// Cancel cancela una transacción programada y elimina su programación. El
// compare-and-set sobre estado=programada resuelve la carrera con el
// planificador: si la ejecución ya comenzó, la cancelación pierde con
// ErrInvalidState.
func (r *TransactionRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
        UPDATE transacciones
        SET estado = $1
        WHERE id = $2 AND estado = $3
    `

	result, err := tx.ExecContext(ctx, query, model.StatusCancelled, id, model.StatusScheduled)
	if err != nil {
		return fmt.Errorf("failed to cancel transaction: %w", err)
	}
	if err := requireTransition(result); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM programaciones WHERE transaccion_id = $1`, id); err != nil {
		return fmt.Errorf("failed to consume schedule: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cancellation: %w", err)
	}
	return nil
}

// ListDue devuelve las transacciones programadas cuya fecha ya venció.
func (r *TransactionRepository) ListDue(ctx context.Context, asOf time.Time) ([]model.Transaction, error) {
	query := `
        SELECT ` + transactionColumns + `
        FROM transacciones
        WHERE estado = $1 AND id IN (
            SELECT transaccion_id FROM programaciones WHERE fecha_programada <= $2
        )
        ORDER BY fecha_creacion
    `

	rows, err := r.db.QueryContext(ctx, query, model.StatusScheduled, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to query due transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// List ejecuta las consultas de solo lectura con filtros dinámicos.
func (r *TransactionRepository) List(ctx context.Context, filter model.TransactionFilter) ([]model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transacciones WHERE 1=1`
	var args []any

	add := func(clause string, value any) {
		args = append(args, value)
		query += fmt.Sprintf(" AND %s $%d", clause, len(args))
	}

	if filter.ClientID != nil {
		add("cliente_id =", *filter.ClientID)
	}
	if filter.SourceAccountID != nil {
		add("cuenta_origen_id =", *filter.SourceAccountID)
	}
	if filter.Kind != nil {
		add("tipo =", *filter.Kind)
	}
	if filter.Status != nil {
		add("estado =", *filter.Status)
	}
	if filter.From != nil {
		add("fecha_creacion >=", *filter.From)
	}
	if filter.To != nil {
		add("fecha_creacion <", *filter.To)
	}

	query += " ORDER BY fecha_creacion DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// Stats agrega la actividad de un cliente por estado y el volumen liquidado
// en el rango de fechas.
func (r *TransactionRepository) Stats(ctx context.Context, clientID uuid.UUID, from, to time.Time) (*model.TransactionStats, error) {
	query := `
        SELECT estado,
               COUNT(*),
               COALESCE(SUM(monto) FILTER (WHERE estado = $4), 0),
               COALESCE(SUM(comision) FILTER (WHERE estado = $4), 0)
        FROM transacciones
        WHERE cliente_id = $1 AND fecha_creacion >= $2 AND fecha_creacion < $3
        GROUP BY estado
    `

	rows, err := r.db.QueryContext(ctx, query, clientID, from, to, model.StatusSuccessful)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction stats: %w", err)
	}
	defer rows.Close()

	stats := &model.TransactionStats{
		ByStatus:        make(map[model.TransactionStatus]int),
		SuccessVolume:   decimal.Zero,
		CommissionTotal: decimal.Zero,
	}

	for rows.Next() {
		var status model.TransactionStatus
		var count int
		var volume, commission decimal.Decimal
		if err := rows.Scan(&status, &count, &volume, &commission); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		stats.ByStatus[status] = count
		stats.Total += count
		stats.SuccessVolume = stats.SuccessVolume.Add(volume)
		stats.CommissionTotal = stats.CommissionTotal.Add(commission)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}

	return stats, nil
}

func collectTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	var transactions []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}
	return transactions, nil
}

func requireTransition(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.ErrInvalidState
	}
	return nil
}
