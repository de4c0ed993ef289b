package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/marcos85-cr/Proyecto-BackEnd-Mejorado-sub001/internal/model"
	"github.com/marcos85-cr/Proyecto-BackEnd-Mejorado-sub001/internal/repository"
)

// BalanceLedger es la única autoridad permitida para modificar saldos. Todo
// movimiento pasa por ExecuteMovement; los motores jamás escriben saldos
// directamente.
type BalanceLedger struct {
	db           *sql.DB
	accounts     *repository.AccountRepository
	transactions *repository.TransactionRepository
	schedules    *repository.ScheduleRepository
	logger       *logrus.Logger
}

func NewBalanceLedger(
	accounts *repository.AccountRepository,
	transactions *repository.TransactionRepository,
	schedules *repository.ScheduleRepository,
	logger *logrus.Logger,
) *BalanceLedger {
	return &BalanceLedger{
		db:           accounts.GetDB(),
		accounts:     accounts,
		transactions: transactions,
		schedules:    schedules,
		logger:       logger,
	}
}

func (l *BalanceLedger) GetBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	account, err := l.accounts.GetByID(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// Precheck evalúa la operación contra la cuenta sin mutar nada.
func (l *BalanceLedger) Precheck(ctx context.Context, accountID uuid.UUID, in model.PrecheckInput) (*model.PrecheckResult, error) {
	account, err := l.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return EvaluatePrecheck(account, in), nil
}

// ExecuteMovement liquida la transacción en una sola transacción SQL:
// bloquea las cuentas involucradas, revalida el saldo (la carrera entre
// precheck y commit se resuelve aquí con ErrConcurrentBalanceViolation),
// aplica el débito monto+comisión y, si el destino es interno, el crédito
// del monto — la comisión nunca se abona al destino. El paso a exitosa y el
// consumo de la programación ocurren en el mismo commit, de modo que nunca
// hay más de una aplicación de saldo por transacción, ni siquiera si el
// planificador reintenta.
func (l *BalanceLedger) ExecuteMovement(ctx context.Context, t *model.Transaction, from model.TransactionStatus) (*model.Transaction, error) {
	l.logger.WithFields(logrus.Fields{
		"transaccion_id": t.ID,
		"cuenta_origen":  t.SourceAccountID,
		"monto":          t.Amount,
		"comision":       t.Commission,
	}).Info("Liquidando movimiento")

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin movement transaction: %w", err)
	}
	defer tx.Rollback()

	// Bloqueo en orden determinístico por ID para evitar interbloqueos entre
	// transferencias cruzadas sobre el mismo par de cuentas.
	var source, dest *model.Account
	if t.Destination.Internal() && strings.Compare(t.Destination.AccountID.String(), t.SourceAccountID.String()) < 0 {
		if dest, err = l.accounts.GetByIDForUpdate(ctx, tx, *t.Destination.AccountID); err != nil {
			return nil, err
		}
		if source, err = l.accounts.GetByIDForUpdate(ctx, tx, t.SourceAccountID); err != nil {
			return nil, err
		}
	} else {
		if source, err = l.accounts.GetByIDForUpdate(ctx, tx, t.SourceAccountID); err != nil {
			return nil, err
		}
		if t.Destination.Internal() {
			if dest, err = l.accounts.GetByIDForUpdate(ctx, tx, *t.Destination.AccountID); err != nil {
				return nil, err
			}
		}
	}

	switch source.Status {
	case model.AccountBlocked:
		return nil, model.ErrAccountBlocked
	case model.AccountClosed:
		return nil, model.ErrAccountClosed
	}
	// Una cuenta destino cerrada no puede recibir abonos; una bloqueada sí
	// (el bloqueo restringe débitos, no créditos).
	if dest != nil && dest.Status == model.AccountClosed {
		return nil, model.ErrAccountClosed
	}

	// Revalidación al confirmar: el saldo pudo drenarse desde el precheck.
	totalDebit := t.TotalDebit()
	if source.Balance.LessThan(totalDebit) {
		l.logger.WithFields(logrus.Fields{
			"transaccion_id": t.ID,
			"saldo":          source.Balance,
			"debito_total":   totalDebit,
		}).Warn("Saldo insuficiente al confirmar el movimiento")
		return nil, model.ErrConcurrentBalanceViolation
	}

	if err := l.accounts.UpdateBalanceTx(ctx, tx, source.ID, totalDebit.Neg()); err != nil {
		return nil, fmt.Errorf("failed to debit source account: %w", err)
	}
	if dest != nil {
		if err := l.accounts.UpdateBalanceTx(ctx, tx, dest.ID, t.Amount); err != nil {
			return nil, fmt.Errorf("failed to credit destination account: %w", err)
		}
	}

	receipt := newReceiptNumber()
	if err := l.transactions.MarkExecutedTx(ctx, tx, t.ID, from, receipt, t.ApprovedBy); err != nil {
		return nil, err
	}
	if err := l.schedules.DeleteByTransactionTx(ctx, tx, t.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit movement: %w", err)
	}

	now := time.Now()
	t.Status = model.StatusSuccessful
	t.ReceiptNumber = &receipt
	t.ExecutedAt = &now

	l.logger.WithFields(logrus.Fields{
		"transaccion_id": t.ID,
		"recibo":         receipt,
	}).Info("Movimiento liquidado con éxito")
	return t, nil
}

func newReceiptNumber() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("RB-%s-%s", time.Now().Format("20060102"), strings.ToUpper(raw[:10]))
}
