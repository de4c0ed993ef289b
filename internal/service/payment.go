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

// PaymentService orquesta los pagos de servicios a proveedores registrados.
// Misma forma que TransferService con dos diferencias: el destino siempre es
// externo (débito + comisión, sin tramo de crédito interno) y el número de
// contrato se valida contra el patrón del proveedor antes del precheck.
type PaymentService struct {
	ledger       Ledger
	guard        *IdempotencyGuard
	accounts     AccountStore
	transactions TransactionStore
	providers    ProviderStore
	clients      ClientDirectory
	auditor      Auditor
	notifier     Notifier
	logger       *logrus.Logger
}

func NewPaymentService(
	ledger Ledger,
	guard *IdempotencyGuard,
	accounts AccountStore,
	transactions TransactionStore,
	providers ProviderStore,
	clients ClientDirectory,
	auditor Auditor,
	notifier Notifier,
	logger *logrus.Logger,
) *PaymentService {
	return &PaymentService{
		ledger:       ledger,
		guard:        guard,
		accounts:     accounts,
		transactions: transactions,
		providers:    providers,
		clients:      clients,
		auditor:      auditor,
		notifier:     notifier,
		logger:       logger,
	}
}

// PrecheckPayment valida el contrato contra el proveedor y calcula comisión,
// límites y saldos sin persistir nada.
func (s *PaymentService) PrecheckPayment(ctx context.Context, req model.ServicePaymentRequest) (*model.PrecheckResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	provider, err := s.providers.GetByID(ctx, req.ProviderID)
	if err != nil {
		return nil, err
	}
	if err := provider.ValidateContract(req.ContractNumber); err != nil {
		return nil, err
	}
	return s.ledger.Precheck(ctx, req.SourceAccountID, model.PrecheckInput{
		Kind:     model.KindServicePayment,
		Amount:   req.Amount,
		Currency: req.Currency,
	})
}

// ExecutePayment procesa la solicitud de pago con la misma semántica de
// idempotencia, programación y aprobación que las transferencias.
func (s *PaymentService) ExecutePayment(ctx context.Context, req model.ServicePaymentRequest) (*model.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"cliente_id":    req.ClientID,
		"proveedor_id":  req.ProviderID,
		"cuenta_origen": req.SourceAccountID,
		"monto":         req.Amount,
		"clave":         req.IdempotencyKey,
	}).Info("Pago de servicio iniciado")

	var executeNow bool
	t, isNew, err := s.guard.Reserve(ctx, req.IdempotencyKey, func() (*model.Transaction, error) {
		return s.buildPayment(ctx, req, &executeNow)
	})
	if err != nil {
		return nil, err
	}
	if !isNew {
		return t, nil
	}

	switch {
	case t.Status == model.StatusScheduled:
		s.auditor.Record(ctx, req.ClientID, "pago.programar", "Pago de servicio programado", t)
		return t, nil

	case executeNow:
		return s.settle(ctx, t, model.StatusPendingApproval)

	case t.Status == model.StatusPendingApproval:
		s.auditor.Record(ctx, req.ClientID, "pago.pendiente", "Pago de servicio pendiente de aprobación", t)
		s.notifyApprovalRequest(ctx, t)
		return t, nil

	default:
		s.auditor.Record(ctx, req.ClientID, "pago.fallido", "Pago de servicio rechazado por validación", t)
		return t, nil
	}
}

// ExecuteDue re-ejecuta un pago programado vencido. El contrato se revalida
// al vencer la fecha: el patrón del proveedor pudo cambiar desde el registro.
func (s *PaymentService) ExecuteDue(ctx context.Context, t *model.Transaction) error {
	provider, err := s.providers.GetByID(ctx, *t.Destination.ProviderID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return s.markFailed(ctx, t, model.StatusScheduled, "proveedor no encontrado")
		}
		return err
	}
	if err := provider.ValidateContract(t.Destination.ContractNumber); err != nil {
		if errors.Is(err, model.ErrInvalidContractNumber) {
			return s.markFailed(ctx, t, model.StatusScheduled, err.Error())
		}
		return err
	}

	precheck, err := s.ledger.Precheck(ctx, t.SourceAccountID, model.PrecheckInput{
		Kind:       model.KindServicePayment,
		Amount:     t.Amount,
		Currency:   t.Currency,
		Commission: &t.Commission,
	})
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			return s.markFailed(ctx, t, model.StatusScheduled, err.Error())
		}
		return err
	}

	if !precheck.CanExecute() {
		return s.markFailed(ctx, t, model.StatusScheduled, precheck.ErrorDetail())
	}

	if precheck.RequiresApproval {
		if err := s.transactions.MarkPendingApproval(ctx, t.ID); err != nil {
			if errors.Is(err, model.ErrInvalidState) {
				return nil
			}
			return err
		}
		t.Status = model.StatusPendingApproval
		s.notifyApprovalRequest(ctx, t)
		return nil
	}

	_, err = s.settle(ctx, t, model.StatusScheduled)
	return err
}

// CancelScheduled cancela un pago programado del cliente, con la misma
// semántica de carrera que las transferencias.
func (s *PaymentService) CancelScheduled(ctx context.Context, transactionID, clientID uuid.UUID) (*model.Transaction, error) {
	t, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if t.ClientID != clientID {
		return nil, model.ErrForbidden
	}

	if err := s.transactions.Cancel(ctx, transactionID); err != nil {
		return nil, err
	}

	t.Status = model.StatusCancelled
	s.auditor.Record(ctx, clientID, "pago.cancelar", "Pago de servicio programado cancelado", t)
	return t, nil
}

func (s *PaymentService) buildPayment(ctx context.Context, req model.ServicePaymentRequest, executeNow *bool) (*model.Transaction, error) {
	now := time.Now()

	source, err := s.accounts.GetByID(ctx, req.SourceAccountID)
	if err != nil {
		return nil, err
	}
	if source.ClientID != req.ClientID {
		return nil, model.ErrForbidden
	}

	t := &model.Transaction{
		ID:              uuid.New(),
		ClientID:        req.ClientID,
		Kind:            model.KindServicePayment,
		SourceAccountID: req.SourceAccountID,
		Destination:     req.Destination(),
		Amount:          req.Amount,
		Currency:        req.Currency,
		CreatedAt:       now,
	}

	// Programación futura: la validación del contrato y del saldo se difiere
	// al vencimiento; solo se fija la comisión con la categoría actual. La
	// programación viaja adjunta para insertarse en el mismo commit.
	if req.ScheduledFor != nil && req.ScheduledFor.After(now) {
		t.Status = model.StatusScheduled
		t.Commission = CommissionFor(model.KindServicePayment, source.Tier, req.Amount)
		t.Schedule = &model.Schedule{
			ID:            uuid.New(),
			TransactionID: t.ID,
			DueAt:         *req.ScheduledFor,
			CreatedAt:     now,
		}
		return t, nil
	}

	provider, err := s.providers.GetByID(ctx, req.ProviderID)
	if err != nil {
		return nil, err
	}
	if err := provider.ValidateContract(req.ContractNumber); err != nil {
		if errors.Is(err, model.ErrInvalidContractNumber) {
			return failedTransaction(t, err.Error(), now), nil
		}
		return nil, err
	}

	precheck, err := s.ledger.Precheck(ctx, req.SourceAccountID, model.PrecheckInput{
		Kind:     model.KindServicePayment,
		Amount:   req.Amount,
		Currency: req.Currency,
	})
	if err != nil {
		return nil, err
	}
	t.Commission = precheck.Commission

	switch {
	case !precheck.CanExecute():
		return failedTransaction(t, precheck.ErrorDetail(), now), nil
	case precheck.RequiresApproval:
		t.Status = model.StatusPendingApproval
	default:
		t.Status = model.StatusPendingApproval
		*executeNow = true
	}
	return t, nil
}

func (s *PaymentService) settle(ctx context.Context, t *model.Transaction, from model.TransactionStatus) (*model.Transaction, error) {
	updated, err := s.ledger.ExecuteMovement(ctx, t, from)
	if err != nil {
		if errors.Is(err, model.ErrInvalidState) {
			s.logger.WithField("transaccion_id", t.ID).Info("Liquidación omitida: transición ya resuelta")
			return t, nil
		}
		if model.IsBusinessError(err) {
			if markErr := s.markFailed(ctx, t, from, err.Error()); markErr != nil {
				return nil, markErr
			}
			return t, nil
		}
		return nil, err
	}

	s.auditor.Record(ctx, updated.ClientID, "pago.ejecutar", "Pago de servicio liquidado", updated)
	s.notifyReceipt(ctx, updated)
	return updated, nil
}

func (s *PaymentService) markFailed(ctx context.Context, t *model.Transaction, from model.TransactionStatus, detail string) error {
	if err := s.transactions.MarkFailed(ctx, t.ID, from, detail); err != nil {
		if errors.Is(err, model.ErrInvalidState) {
			return nil
		}
		return err
	}
	now := time.Now()
	t.Status = model.StatusFailed
	t.ErrorDetail = &detail
	t.ExecutedAt = &now
	s.auditor.Record(ctx, t.ClientID, "pago.fallido", fmt.Sprintf("Pago de servicio fallido: %s", detail), t)
	return nil
}

func (s *PaymentService) notifyReceipt(ctx context.Context, t *model.Transaction) {
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

func (s *PaymentService) notifyApprovalRequest(ctx context.Context, t *model.Transaction) {
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
		if err := s.notifier.SendApprovalRequestNotification(email, t); err != nil {
			s.logger.WithError(err).Warn("No se pudo enviar la notificación de aprobación pendiente")
		}
	}()
}
