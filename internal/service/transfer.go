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

// TransferService orquesta las transferencias entre cuentas y hacia
// beneficiarios: idempotencia primero, luego precheck, luego la decisión
// entre ejecución inmediata, aprobación pendiente o programación diferida.
type TransferService struct {
	ledger        Ledger
	guard         *IdempotencyGuard
	accounts      AccountStore
	transactions  TransactionStore
	beneficiaries BeneficiaryStore
	clients       ClientDirectory
	auditor       Auditor
	notifier      Notifier
	logger        *logrus.Logger
}

func NewTransferService(
	ledger Ledger,
	guard *IdempotencyGuard,
	accounts AccountStore,
	transactions TransactionStore,
	beneficiaries BeneficiaryStore,
	clients ClientDirectory,
	auditor Auditor,
	notifier Notifier,
	logger *logrus.Logger,
) *TransferService {
	return &TransferService{
		ledger:        ledger,
		guard:         guard,
		accounts:      accounts,
		transactions:  transactions,
		beneficiaries: beneficiaries,
		clients:       clients,
		auditor:       auditor,
		notifier:      notifier,
		logger:        logger,
	}
}

// PrecheckTransfer resuelve el destino y calcula comisión, límites y saldos
// sin persistir nada. Lo usa la capa API para previsualizar antes de
// confirmar.
func (s *TransferService) PrecheckTransfer(ctx context.Context, req model.TransferRequest) (*model.PrecheckResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.resolveDestination(ctx, req); err != nil {
		return nil, err
	}
	return s.ledger.Precheck(ctx, req.SourceAccountID, model.PrecheckInput{
		Kind:     model.KindTransfer,
		Amount:   req.Amount,
		Currency: req.Currency,
	})
}

// ExecuteTransfer procesa la solicitud. Una clave de idempotencia repetida
// devuelve la transacción almacenada sin re-ejecutar ningún efecto.
func (s *TransferService) ExecuteTransfer(ctx context.Context, req model.TransferRequest) (*model.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"cliente_id":    req.ClientID,
		"cuenta_origen": req.SourceAccountID,
		"monto":         req.Amount,
		"clave":         req.IdempotencyKey,
	}).Info("Transferencia iniciada")

	var executeNow bool
	t, isNew, err := s.guard.Reserve(ctx, req.IdempotencyKey, func() (*model.Transaction, error) {
		return s.buildTransfer(ctx, req, &executeNow)
	})
	if err != nil {
		return nil, err
	}
	if !isNew {
		return t, nil
	}

	switch {
	case t.Status == model.StatusScheduled:
		s.auditor.Record(ctx, req.ClientID, "transferencia.programar", "Transferencia programada", t)
		return t, nil

	case executeNow:
		return s.settle(ctx, t, model.StatusPendingApproval)

	case t.Status == model.StatusPendingApproval:
		s.auditor.Record(ctx, req.ClientID, "transferencia.pendiente", "Transferencia pendiente de aprobación", t)
		s.notifyApprovalRequest(ctx, t)
		return t, nil

	default: // fallida en el precheck, registrada con su detalle
		s.auditor.Record(ctx, req.ClientID, "transferencia.fallida", "Transferencia rechazada por validación", t)
		return t, nil
	}
}

// ExecuteDue re-ejecuta una transferencia programada vencida (la invoca el
// planificador) con los datos almacenados y la comisión ya calculada. El
// destino se resuelve de nuevo con las mismas reglas que la ejecución
// inmediata: titularidad, confirmación, moneda y estado pudieron cambiar
// desde el registro, y la programación difirió esas validaciones. Un error de
// infraestructura deja la transacción programada para el siguiente ciclo;
// solo un fallo definitivo la marca fallida.
func (s *TransferService) ExecuteDue(ctx context.Context, t *model.Transaction) error {
	if err := s.revalidateDestination(ctx, t); err != nil {
		if definitiveDueFailure(err) {
			return s.markFailed(ctx, t, model.StatusScheduled, err.Error())
		}
		return err
	}

	precheck, err := s.ledger.Precheck(ctx, t.SourceAccountID, model.PrecheckInput{
		Kind:       model.KindTransfer,
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
				// La cancelación (u otro ciclo) ganó la transición.
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

// CancelScheduled cancela una transferencia programada del cliente. Solo es
// efectiva mientras el planificador no haya comenzado a ejecutarla: el
// compare-and-set sobre estado=programada decide la carrera.
func (s *TransferService) CancelScheduled(ctx context.Context, transactionID, clientID uuid.UUID) (*model.Transaction, error) {
	t, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if t.ClientID != clientID {
		s.logger.WithFields(logrus.Fields{
			"transaccion_id": transactionID,
			"cliente_id":     clientID,
		}).Warn("Intento de cancelar una transacción ajena")
		return nil, model.ErrForbidden
	}

	if err := s.transactions.Cancel(ctx, transactionID); err != nil {
		return nil, err
	}

	t.Status = model.StatusCancelled
	s.auditor.Record(ctx, clientID, "transferencia.cancelar", "Transferencia programada cancelada", t)
	s.logger.WithField("transaccion_id", transactionID).Info("Transferencia programada cancelada")
	return t, nil
}

// ListTransactions ejecuta las consultas de solo lectura sobre transacciones.
func (s *TransferService) ListTransactions(ctx context.Context, filter model.TransactionFilter) ([]model.Transaction, error) {
	return s.transactions.List(ctx, filter)
}

// TransactionStats resume la actividad del cliente en el rango de fechas.
func (s *TransferService) TransactionStats(ctx context.Context, clientID uuid.UUID, from, to time.Time) (*model.TransactionStats, error) {
	return s.transactions.Stats(ctx, clientID, from, to)
}

// buildTransfer construye la fila inicial que IdempotencyGuard persiste.
// El estado inicial codifica la decisión: programada, fallida (con el
// detalle del precheck), o pendiente_aprobacion — esta última también para
// la ejecución inmediata, que la lleva a exitosa por el mismo
// compare-and-set que usa la aprobación.
func (s *TransferService) buildTransfer(ctx context.Context, req model.TransferRequest, executeNow *bool) (*model.Transaction, error) {
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
		Kind:            model.KindTransfer,
		SourceAccountID: req.SourceAccountID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		CreatedAt:       now,
	}

	// Programación futura: se registra sin precheck de saldo (un precheck
	// obsoleto nunca debe bloquear una programación); la validación completa
	// ocurre al vencer la fecha. La programación viaja adjunta a la
	// transacción para que ambas filas se inserten en un solo commit.
	if req.ScheduledFor != nil && req.ScheduledFor.After(now) {
		t.Status = model.StatusScheduled
		t.Destination = req.Destination()
		t.Commission = CommissionFor(model.KindTransfer, source.Tier, req.Amount)
		t.Schedule = &model.Schedule{
			ID:            uuid.New(),
			TransactionID: t.ID,
			DueAt:         *req.ScheduledFor,
			CreatedAt:     now,
		}
		return t, nil
	}

	destination, err := s.resolveDestination(ctx, req)
	if err != nil {
		if model.IsBusinessError(err) {
			t.Destination = req.Destination()
			return failedTransaction(t, err.Error(), now), nil
		}
		return nil, err
	}
	t.Destination = destination

	precheck, err := s.ledger.Precheck(ctx, req.SourceAccountID, model.PrecheckInput{
		Kind:     model.KindTransfer,
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

// resolveDestination convierte la solicitud en la variante de destino,
// validando existencia, titularidad, confirmación y moneda.
func (s *TransferService) resolveDestination(ctx context.Context, req model.TransferRequest) (model.Destination, error) {
	if req.BeneficiaryID != nil {
		beneficiary, err := s.beneficiaries.GetByID(ctx, *req.BeneficiaryID)
		if err != nil {
			return model.Destination{}, err
		}
		if beneficiary.ClientID != req.ClientID {
			return model.Destination{}, model.ErrForbidden
		}
		if !beneficiary.Confirmed() {
			return model.Destination{}, model.ErrBeneficiaryNotConfirmed
		}
		if beneficiary.Currency != req.Currency {
			return model.Destination{}, model.ErrCurrencyMismatch
		}
		return model.Destination{Kind: model.DestExternalBeneficiary, BeneficiaryID: req.BeneficiaryID}, nil
	}

	dest, err := s.accounts.GetByID(ctx, *req.DestinationAccountID)
	if err != nil {
		return model.Destination{}, err
	}
	if dest.Status == model.AccountClosed {
		return model.Destination{}, model.ErrAccountClosed
	}
	if dest.Currency != req.Currency {
		return model.Destination{}, model.ErrCurrencyMismatch
	}
	return model.Destination{Kind: model.DestInternalAccount, AccountID: req.DestinationAccountID}, nil
}

// revalidateDestination aplica a una transacción programada vencida las
// mismas reglas de destino que resolveDestination aplica a la solicitud
// inmediata: existencia, titularidad, confirmación, estado y moneda.
func (s *TransferService) revalidateDestination(ctx context.Context, t *model.Transaction) error {
	if t.Destination.Kind == model.DestExternalBeneficiary {
		beneficiary, err := s.beneficiaries.GetByID(ctx, *t.Destination.BeneficiaryID)
		if err != nil {
			return err
		}
		if beneficiary.ClientID != t.ClientID {
			return model.ErrForbidden
		}
		if !beneficiary.Confirmed() {
			return model.ErrBeneficiaryNotConfirmed
		}
		if beneficiary.Currency != t.Currency {
			return model.ErrCurrencyMismatch
		}
		return nil
	}

	dest, err := s.accounts.GetByID(ctx, *t.Destination.AccountID)
	if err != nil {
		return err
	}
	if dest.Status == model.AccountClosed {
		return model.ErrAccountClosed
	}
	if dest.Currency != t.Currency {
		return model.ErrCurrencyMismatch
	}
	return nil
}

// definitiveDueFailure distingue, en la ejecución diferida, el fallo que debe
// marcar la transacción fallida del error transitorio de infraestructura que
// la deja programada para reintentar en el siguiente ciclo. Un destino
// inexistente, ajeno o incompatible no se arregla reintentando.
func definitiveDueFailure(err error) bool {
	return model.IsBusinessError(err) ||
		errors.Is(err, model.ErrForbidden) ||
		errors.Is(err, model.ErrNotFound) ||
		errors.Is(err, model.ErrAccountNotFound)
}

// settle aplica el movimiento y distingue el fallo de negocio (queda
// registrado en la transacción) del fallo de infraestructura (se propaga).
func (s *TransferService) settle(ctx context.Context, t *model.Transaction, from model.TransactionStatus) (*model.Transaction, error) {
	updated, err := s.ledger.ExecuteMovement(ctx, t, from)
	if err != nil {
		if errors.Is(err, model.ErrInvalidState) {
			// Otro actor (cancelación, aprobación concurrente) ganó la
			// transición; no hay nada que liquidar.
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

	s.auditor.Record(ctx, updated.ClientID, "transferencia.ejecutar", "Transferencia liquidada", updated)
	s.notifyReceipt(ctx, updated)
	return updated, nil
}

func (s *TransferService) markFailed(ctx context.Context, t *model.Transaction, from model.TransactionStatus, detail string) error {
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
	s.auditor.Record(ctx, t.ClientID, "transferencia.fallida", fmt.Sprintf("Transferencia fallida: %s", detail), t)
	return nil
}

func (s *TransferService) notifyReceipt(ctx context.Context, t *model.Transaction) {
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

func (s *TransferService) notifyApprovalRequest(ctx context.Context, t *model.Transaction) {
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

func failedTransaction(t *model.Transaction, detail string, now time.Time) *model.Transaction {
	t.Status = model.StatusFailed
	t.ErrorDetail = &detail
	t.ExecutedAt = &now
	return t
}
