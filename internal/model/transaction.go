package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	KindTransfer       TransactionKind = "transferencia"
	KindServicePayment TransactionKind = "pago_servicio"
)

type TransactionStatus string

const (
	StatusPendingApproval TransactionStatus = "pendiente_aprobacion"
	StatusScheduled       TransactionStatus = "programada"
	StatusSuccessful      TransactionStatus = "exitosa"
	StatusFailed          TransactionStatus = "fallida"
	StatusCancelled       TransactionStatus = "cancelada"
	StatusRejected        TransactionStatus = "rechazada"
)

// allowedTransitions es la tabla estática de transiciones del ciclo de vida.
// Toda transición persistida usa compare-and-set sobre el estado anterior;
// lo que no aparece aquí falla cerrado con ErrInvalidState.
var allowedTransitions = map[TransactionStatus][]TransactionStatus{
	StatusPendingApproval: {StatusSuccessful, StatusFailed, StatusRejected},
	StatusScheduled:       {StatusPendingApproval, StatusSuccessful, StatusFailed, StatusCancelled},
}

// CanTransition indica si la transición from→to está permitida.
func CanTransition(from, to TransactionStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal indica si el estado es final: una transacción terminal es inmutable.
func (s TransactionStatus) Terminal() bool {
	switch s {
	case StatusSuccessful, StatusFailed, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

type DestinationKind string

const (
	DestInternalAccount     DestinationKind = "cuenta_interna"
	DestExternalBeneficiary DestinationKind = "beneficiario"
	DestServiceProvider     DestinationKind = "proveedor"
)

// Destination es la variante etiquetada del destino de una transacción,
// resuelta una sola vez al inicio de la ejecución. Solo el destino
// cuenta_interna recibe un tramo de crédito; beneficiarios externos y
// proveedores son débito + comisión sin abono interno.
type Destination struct {
	Kind           DestinationKind `json:"tipo" db:"destino_tipo"`
	AccountID      *uuid.UUID      `json:"cuenta_destino_id,omitempty" db:"cuenta_destino_id"`
	BeneficiaryID  *uuid.UUID      `json:"beneficiario_id,omitempty" db:"beneficiario_id"`
	ProviderID     *uuid.UUID      `json:"proveedor_id,omitempty" db:"proveedor_id"`
	ContractNumber string          `json:"numero_contrato,omitempty" db:"numero_contrato"`
}

// Internal indica si el destino tiene tramo de crédito interno.
func (d Destination) Internal() bool {
	return d.Kind == DestInternalAccount
}

type Transaction struct {
	ID              uuid.UUID         `json:"id" db:"id"`
	ClientID        uuid.UUID         `json:"cliente_id" db:"cliente_id"`
	Kind            TransactionKind   `json:"tipo" db:"tipo"`
	Status          TransactionStatus `json:"estado" db:"estado"`
	SourceAccountID uuid.UUID         `json:"cuenta_origen_id" db:"cuenta_origen_id"`
	Destination     Destination       `json:"destino"`
	Amount          decimal.Decimal   `json:"monto" db:"monto"`
	Currency        string            `json:"moneda" db:"moneda"`
	Commission      decimal.Decimal   `json:"comision" db:"comision"`
	IdempotencyKey  string            `json:"clave_idempotencia" db:"clave_idempotencia"`
	ReceiptNumber   *string           `json:"numero_recibo,omitempty" db:"numero_recibo"`
	ErrorDetail     *string           `json:"detalle_error,omitempty" db:"detalle_error"`
	RejectReason    *string           `json:"motivo_rechazo,omitempty" db:"motivo_rechazo"`
	ApprovedBy      *uuid.UUID        `json:"aprobada_por,omitempty" db:"aprobada_por"`
	CreatedAt       time.Time         `json:"fecha_creacion" db:"fecha_creacion"`
	ExecutedAt      *time.Time        `json:"fecha_ejecucion,omitempty" db:"fecha_ejecucion"`

	// Schedule es el vínculo 1:1 con la programación cuando la transacción
	// se registra con fecha futura. Se persiste junto con la fila de la
	// transacción en una sola transacción SQL: nunca existe una transacción
	// programada sin su programación.
	Schedule *Schedule `json:"programacion,omitempty"`
}

// TotalDebit es el débito total sobre la cuenta origen: monto + comisión.
func (t *Transaction) TotalDebit() decimal.Decimal {
	return t.Amount.Add(t.Commission)
}

// TransactionFilter define los filtros de las consultas de solo lectura
// sobre transacciones. Los campos en cero se ignoran.
type TransactionFilter struct {
	ClientID        *uuid.UUID
	SourceAccountID *uuid.UUID
	Kind            *TransactionKind
	Status          *TransactionStatus
	From            *time.Time
	To              *time.Time
	Limit           int
}

// TransactionStats resume la actividad de un cliente en un rango de fechas.
type TransactionStats struct {
	Total           int                       `json:"total"`
	ByStatus        map[TransactionStatus]int `json:"por_estado"`
	SuccessVolume   decimal.Decimal           `json:"volumen_exitoso"`
	CommissionTotal decimal.Decimal           `json:"comisiones"`
}
