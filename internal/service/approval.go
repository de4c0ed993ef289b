package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/marcos85-cr/Proyecto-BackEnd-Mejorado-sub001/internal/model"
)

// ApprovalService gobierna la máquina de estados de aprobación: una
// transacción que supera el umbral queda en pendiente_aprobacion sin mover
// fondos hasta que un gestor la apruebe o la rechace.
type ApprovalService struct {
	ledger       Ledger
	transactions TransactionStore
	clients      ClientDirectory
	auditor      Auditor
	notifier     Notifier
	logger       *logrus.Logger
}

func NewApprovalService(
	ledger Ledger,
	transactions TransactionStore,
	clients ClientDirectory,
	auditor Auditor,
	notifier Notifier,
	logger *logrus.Logger,
) *ApprovalService {
	return &ApprovalService{
		ledger:       ledger,
		transactions: transactions,
		clients:      clients,
		auditor:      auditor,
		notifier:     notifier,
		logger:       logger,
	}
}

// Approve ejecuta una transacción pendiente de aprobación. El precheck se
// repite (los saldos pudieron variar desde el registro) reutilizando la
// comisión almacenada: si ya no es válido, la transacción pasa a fallida con
// el detalle registrado; si sigue válido, el movimiento se liquida y la
// transacción pasa a exitosa con recibo y marca de tiempo.
func (s *ApprovalService) Approve(ctx context.Context, transactionID, approverID uuid.UUID) (*model.Transaction, error) {
	t, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if t.Status != model.StatusPendingApproval {
		s.logger.WithFields(logrus.Fields{
			"transaccion_id": transactionID,
			"estado":         t.Status,
		}).Warn("Intento de aprobar una transacción que no está pendiente")
		return nil, model.ErrInvalidState
	}

	s.logger.WithFields(logrus.Fields{
		"transaccion_id": transactionID,
		"aprobador_id":   approverID,
	}).Info("Aprobación de transacción iniciada")

	precheck, err := s.ledger.Precheck(ctx, t.SourceAccountID, model.PrecheckInput{
		Kind:       t.Kind,
		Amount:     t.Amount,
		Currency:   t.Currency,
		Commission: &t.Commission,
	})
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			return s.failPending(ctx, t, err.Error())
		}
		return nil, err
	}
	if !precheck.CanExecute() {
		return s.failPending(ctx, t, precheck.ErrorDetail())
	}

	t.ApprovedBy = &approverID
	updated, err := s.ledger.ExecuteMovement(ctx, t, model.StatusPendingApproval)
	if err != nil {
		if errors.Is(err, model.ErrInvalidState) {
			return nil, err
		}
		if model.IsBusinessError(err) {
			return s.failPending(ctx, t, err.Error())
		}
		return nil, err
	}

	s.auditor.Record(ctx, approverID, "aprobacion.aprobar", "Transacción aprobada y liquidada", updated)
	s.notifyReceipt(ctx, updated)
	return updated, nil
}

// Reject rechaza una transacción pendiente sin tocar saldos. El rechazo es
// terminal y permanente.
func (s *ApprovalService) Reject(ctx context.Context, transactionID, approverID uuid.UUID, reason string) (*model.Transaction, error) {
	t, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if t.Status != model.StatusPendingApproval {
		return nil, model.ErrInvalidState
	}

	if err := s.transactions.MarkRejected(ctx, transactionID, approverID, reason); err != nil {
		return nil, err
	}

	t.Status = model.StatusRejected
	t.ApprovedBy = &approverID
	t.RejectReason = &reason

	s.auditor.Record(ctx, approverID, "aprobacion.rechazar", fmt.Sprintf("Transacción rechazada: %s", reason), t)
	s.logger.WithFields(logrus.Fields{
		"transaccion_id": transactionID,
		"aprobador_id":   approverID,
	}).Info("Transacción rechazada")
	return t, nil
}

func (s *ApprovalService) failPending(ctx context.Context, t *model.Transaction, detail string) (*model.Transaction, error) {
	if err := s.transactions.MarkFailed(ctx, t.ID, model.StatusPendingApproval, detail); err != nil {
		if !errors.Is(err, model.ErrInvalidState) {
			return nil, err
		}
	}
	now := time.Now()
	t.Status = model.StatusFailed
	t.ErrorDetail = &detail
	t.ExecutedAt = &now
	s.auditor.Record(ctx, t.ClientID, "aprobacion.fallida", fmt.Sprintf("Aprobación fallida: %s", detail), t)
	return t, nil
}

func (s *ApprovalService) notifyReceipt(ctx context.Context, t *model.Transaction) {
	if s.notifier == nil {
		return
	}
	email, err := s.clients.GetEmail(ctx, t.ClientID)
	if err != nil {
		s.logger.WithError(err).WithField("cliente_id", t.ClientID).Warn("No se pudo obtener el correo del cliente")
		return
	}
	if email == "" {
		return
	}
	go func() {
		if err := s.notifier.SendReceiptNotification(email, t); err != nil {
			s.logger.WithError(err).Warn("No se pudo enviar la notificación de recibo")
		}
	}()
}
