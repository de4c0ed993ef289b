package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marcos85-cr/Proyecto-BackEnd-Mejorado-sub001/internal/model"
	"github.com/marcos85-cr/Proyecto-BackEnd-Mejorado-sub001/internal/repository"
)

// Interfaces de acceso a datos consumidas por los servicios. Las implementan
// los repositorios; las pruebas las sustituyen con dobles en memoria.

type AccountStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]model.Account, error)
}

type TransactionStore interface {
	Create(ctx context.Context, t *model.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*model.Transaction, error)
	MarkFailed(ctx context.Context, id uuid.UUID, from model.TransactionStatus, detail string) error
	MarkRejected(ctx context.Context, id uuid.UUID, approverID uuid.UUID, reason string) error
	MarkPendingApproval(ctx context.Context, id uuid.UUID) error
	Cancel(ctx context.Context, id uuid.UUID) error
	ListDue(ctx context.Context, asOf time.Time) ([]model.Transaction, error)
	List(ctx context.Context, filter model.TransactionFilter) ([]model.Transaction, error)
	Stats(ctx context.Context, clientID uuid.UUID, from, to time.Time) (*model.TransactionStats, error)
}

type BeneficiaryStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Beneficiary, error)
}

type ProviderStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Provider, error)
}

type ClientDirectory interface {
	GetEmail(ctx context.Context, clientID uuid.UUID) (string, error)
}

// Ledger es la única autoridad de movimiento de saldos. ExecuteMovement
// aplica débito y crédito de forma atómica, revalida el saldo al confirmar y
// lleva la transacción a exitosa con compare-and-set desde `from`.
type Ledger interface {
	GetBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
	Precheck(ctx context.Context, accountID uuid.UUID, in model.PrecheckInput) (*model.PrecheckResult, error)
	ExecuteMovement(ctx context.Context, t *model.Transaction, from model.TransactionStatus) (*model.Transaction, error)
}

// Auditor registra operaciones para el servicio de auditoría externo.
// Es fire-and-forget: un fallo de auditoría jamás bloquea ni revierte una
// operación financiera.
type Auditor interface {
	Record(ctx context.Context, actorID uuid.UUID, operation, description string, detail any)
}

// DueExecutor re-ejecuta una transacción programada vencida (pasos 3-5 del
// flujo de ejecución) usando sus datos almacenados.
type DueExecutor interface {
	ExecuteDue(ctx context.Context, t *model.Transaction) error
}

// Notifier envía notificaciones por correo tras los desenlaces de los
// motores. Puede ser nil: las notificaciones son opcionales.
type Notifier interface {
	SendReceiptNotification(email string, t *model.Transaction) error
	SendApprovalRequestNotification(email string, t *model.Transaction) error
}

var (
	_ AccountStore     = (*repository.AccountRepository)(nil)
	_ TransactionStore = (*repository.TransactionRepository)(nil)
	_ BeneficiaryStore = (*repository.BeneficiaryRepository)(nil)
	_ ProviderStore    = (*repository.ProviderRepository)(nil)
	_ ClientDirectory  = (*repository.ClientRepository)(nil)
)
