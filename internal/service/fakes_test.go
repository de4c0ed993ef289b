package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/marcos85-cr/Proyecto-BackEnd-Mejorado-sub001/internal/model"
)

// Dobles en memoria de los almacenes y colaboradores. Reproducen el
// comportamiento contractual de los repositorios: compare-and-set sobre el
// estado, restricción única sobre la clave de idempotencia y consumo de la
// programación en lockstep con la transición.

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

type fakeAccountStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*model.Account
}

func newFakeAccountStore(accounts ...*model.Account) *fakeAccountStore {
	s := &fakeAccountStore{accounts: make(map[uuid.UUID]*model.Account)}
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	return s
}

func (s *fakeAccountStore) GetByID(_ context.Context, id uuid.UUID) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (s *fakeAccountStore) ListByClient(_ context.Context, clientID uuid.UUID) ([]model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Account
	for _, a := range s.accounts {
		if a.ClientID == clientID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *fakeAccountStore) balance(id uuid.UUID) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id].Balance
}

func (s *fakeAccountStore) adjust(id uuid.UUID, delta decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[id].Balance = s.accounts[id].Balance.Add(delta)
}

type fakeScheduleStore struct {
	mu        sync.Mutex
	schedules map[uuid.UUID]*model.Schedule // por transacción
}

func newFakeScheduleStore() *fakeScheduleStore {
	return &fakeScheduleStore{schedules: make(map[uuid.UUID]*model.Schedule)}
}

func (s *fakeScheduleStore) put(schedule *model.Schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *schedule
	s.schedules[schedule.TransactionID] = &copied
}

func (s *fakeScheduleStore) delete(transactionID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.schedules, transactionID)
}

func (s *fakeScheduleStore) has(transactionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.schedules[transactionID]
	return ok
}

type fakeTransactionStore struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]*model.Transaction
	byKey     map[string]uuid.UUID
	schedules *fakeScheduleStore
}

func newFakeTransactionStore(schedules *fakeScheduleStore) *fakeTransactionStore {
	return &fakeTransactionStore{
		byID:      make(map[uuid.UUID]*model.Transaction),
		byKey:     make(map[string]uuid.UUID),
		schedules: schedules,
	}
}

// Create inserta la transacción y su programación adjunta en un solo paso,
// igual que el repositorio real.
func (s *fakeTransactionStore) Create(_ context.Context, t *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byKey[t.IdempotencyKey]; exists {
		return model.ErrDuplicateIdempotencyKey
	}
	copied := *t
	s.byID[t.ID] = &copied
	s.byKey[t.IdempotencyKey] = t.ID
	if t.Schedule != nil && s.schedules != nil {
		s.schedules.put(t.Schedule)
	}
	return nil
}

func (s *fakeTransactionStore) GetByID(_ context.Context, id uuid.UUID) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (s *fakeTransactionStore) GetByIdempotencyKey(_ context.Context, key string) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byKey[key]
	if !ok {
		return nil, nil
	}
	copied := *s.byID[id]
	return &copied, nil
}

// transition aplica el compare-and-set que los repositorios implementan con
// UPDATE ... WHERE estado = $from.
func (s *fakeTransactionStore) transition(id uuid.UUID, from, to model.TransactionStatus, mutate func(*model.Transaction)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return model.ErrNotFound
	}
	if t.Status != from || !model.CanTransition(from, to) {
		return model.ErrInvalidState
	}
	t.Status = to
	if mutate != nil {
		mutate(t)
	}
	return nil
}

func (s *fakeTransactionStore) MarkFailed(_ context.Context, id uuid.UUID, from model.TransactionStatus, detail string) error {
	err := s.transition(id, from, model.StatusFailed, func(t *model.Transaction) {
		now := time.Now()
		t.ErrorDetail = &detail
		t.ExecutedAt = &now
	})
	if err != nil {
		return err
	}
	if s.schedules != nil {
		s.schedules.delete(id)
	}
	return nil
}

func (s *fakeTransactionStore) MarkRejected(_ context.Context, id uuid.UUID, approverID uuid.UUID, reason string) error {
	return s.transition(id, model.StatusPendingApproval, model.StatusRejected, func(t *model.Transaction) {
		now := time.Now()
		t.RejectReason = &reason
		t.ApprovedBy = &approverID
		t.ExecutedAt = &now
	})
}

func (s *fakeTransactionStore) MarkPendingApproval(_ context.Context, id uuid.UUID) error {
	err := s.transition(id, model.StatusScheduled, model.StatusPendingApproval, nil)
	if err != nil {
		return err
	}
	if s.schedules != nil {
		s.schedules.delete(id)
	}
	return nil
}

func (s *fakeTransactionStore) Cancel(_ context.Context, id uuid.UUID) error {
	err := s.transition(id, model.StatusScheduled, model.StatusCancelled, func(t *model.Transaction) {
		now := time.Now()
		t.ExecutedAt = &now
	})
	if err != nil {
		return err
	}
	if s.schedules != nil {
		s.schedules.delete(id)
	}
	return nil
}

func (s *fakeTransactionStore) ListDue(_ context.Context, asOf time.Time) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []model.Transaction
	for id, t := range s.byID {
		if t.Status != model.StatusScheduled || s.schedules == nil {
			continue
		}
		s.schedules.mu.Lock()
		schedule, ok := s.schedules.schedules[id]
		s.schedules.mu.Unlock()
		if ok && !schedule.DueAt.After(asOf) {
			due = append(due, *t)
		}
	}
	return due, nil
}

func (s *fakeTransactionStore) List(_ context.Context, filter model.TransactionFilter) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Transaction
	for _, t := range s.byID {
		if filter.ClientID != nil && t.ClientID != *filter.ClientID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Kind != nil && t.Kind != *filter.Kind {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (s *fakeTransactionStore) Stats(_ context.Context, clientID uuid.UUID, from, to time.Time) (*model.TransactionStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &model.TransactionStats{ByStatus: make(map[model.TransactionStatus]int)}
	for _, t := range s.byID {
		if t.ClientID != clientID || t.CreatedAt.Before(from) || t.CreatedAt.After(to) {
			continue
		}
		stats.Total++
		stats.ByStatus[t.Status]++
		if t.Status == model.StatusSuccessful {
			stats.SuccessVolume = stats.SuccessVolume.Add(t.Amount)
			stats.CommissionTotal = stats.CommissionTotal.Add(t.Commission)
		}
	}
	return stats, nil
}

func (s *fakeTransactionStore) get(id uuid.UUID) *model.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *s.byID[id]
	return &copied
}

type fakeBeneficiaryStore struct {
	beneficiaries map[uuid.UUID]*model.Beneficiary
}

func newFakeBeneficiaryStore(beneficiaries ...*model.Beneficiary) *fakeBeneficiaryStore {
	s := &fakeBeneficiaryStore{beneficiaries: make(map[uuid.UUID]*model.Beneficiary)}
	for _, b := range beneficiaries {
		s.beneficiaries[b.ID] = b
	}
	return s
}

func (s *fakeBeneficiaryStore) GetByID(_ context.Context, id uuid.UUID) (*model.Beneficiary, error) {
	b, ok := s.beneficiaries[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return b, nil
}

type fakeProviderStore struct {
	providers map[uuid.UUID]*model.Provider
}

func newFakeProviderStore(providers ...*model.Provider) *fakeProviderStore {
	s := &fakeProviderStore{providers: make(map[uuid.UUID]*model.Provider)}
	for _, p := range providers {
		s.providers[p.ID] = p
	}
	return s
}

func (s *fakeProviderStore) GetByID(_ context.Context, id uuid.UUID) (*model.Provider, error) {
	p, ok := s.providers[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return p, nil
}

type fakeClientDirectory struct{}

func (fakeClientDirectory) GetEmail(_ context.Context, _ uuid.UUID) (string, error) {
	return "", nil
}

type fakeAuditor struct {
	mu         sync.Mutex
	operations []string
}

func (a *fakeAuditor) Record(_ context.Context, _ uuid.UUID, operation, _ string, _ any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.operations = append(a.operations, operation)
}

func (a *fakeAuditor) recorded() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.operations...)
}

// fakeLedger reproduce el contrato de BalanceLedger sin SQL: bloqueo global,
// revalidación de saldo al confirmar, débito monto+comisión, crédito del
// monto solo en destinos internos, y transición a exitosa con consumo de la
// programación, todo bajo el mismo candado.
type fakeLedger struct {
	mu           sync.Mutex
	accounts     *fakeAccountStore
	transactions *fakeTransactionStore
	schedules    *fakeScheduleStore
	movements    int
}

func newFakeLedger(accounts *fakeAccountStore, transactions *fakeTransactionStore, schedules *fakeScheduleStore) *fakeLedger {
	return &fakeLedger{accounts: accounts, transactions: transactions, schedules: schedules}
}

func (l *fakeLedger) GetBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	account, err := l.accounts.GetByID(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

func (l *fakeLedger) Precheck(ctx context.Context, accountID uuid.UUID, in model.PrecheckInput) (*model.PrecheckResult, error) {
	account, err := l.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return EvaluatePrecheck(account, in), nil
}

func (l *fakeLedger) ExecuteMovement(ctx context.Context, t *model.Transaction, from model.TransactionStatus) (*model.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	source, err := l.accounts.GetByID(ctx, t.SourceAccountID)
	if err != nil {
		return nil, err
	}
	switch source.Status {
	case model.AccountBlocked:
		return nil, model.ErrAccountBlocked
	case model.AccountClosed:
		return nil, model.ErrAccountClosed
	}

	var dest *model.Account
	if t.Destination.Internal() {
		if dest, err = l.accounts.GetByID(ctx, *t.Destination.AccountID); err != nil {
			return nil, err
		}
		if dest.Status == model.AccountClosed {
			return nil, model.ErrAccountClosed
		}
	}

	totalDebit := t.TotalDebit()
	if source.Balance.LessThan(totalDebit) {
		return nil, model.ErrConcurrentBalanceViolation
	}

	receipt := fmt.Sprintf("RB-TEST-%s", uuid.New().String()[:8])
	err = l.transactions.transition(t.ID, from, model.StatusSuccessful, func(stored *model.Transaction) {
		now := time.Now()
		stored.ReceiptNumber = &receipt
		stored.ExecutedAt = &now
		if t.ApprovedBy != nil {
			stored.ApprovedBy = t.ApprovedBy
		}
	})
	if err != nil {
		return nil, err
	}

	l.accounts.adjust(source.ID, totalDebit.Neg())
	if dest != nil {
		l.accounts.adjust(dest.ID, t.Amount)
	}
	if l.schedules != nil {
		l.schedules.delete(t.ID)
	}
	l.movements++

	now := time.Now()
	t.Status = model.StatusSuccessful
	t.ReceiptNumber = &receipt
	t.ExecutedAt = &now
	return t, nil
}

// drainingLedger drena la cuenta origen justo antes de confirmar el
// movimiento: simula una transacción concurrente que gana la carrera entre el
// precheck y la liquidación, de modo que la revalidación de saldo al confirmar
// es la que detecta el descubierto.
type drainingLedger struct {
	*fakeLedger
	drain decimal.Decimal
}

func (l *drainingLedger) ExecuteMovement(ctx context.Context, t *model.Transaction, from model.TransactionStatus) (*model.Transaction, error) {
	l.accounts.adjust(t.SourceAccountID, l.drain.Neg())
	return l.fakeLedger.ExecuteMovement(ctx, t, from)
}

type fakeDueExecutor struct {
	mu       sync.Mutex
	executed []uuid.UUID
	err      error
}

func (e *fakeDueExecutor) ExecuteDue(_ context.Context, t *model.Transaction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.executed = append(e.executed, t.ID)
	return nil
}
