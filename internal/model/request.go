package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferRequest es la solicitud de transferencia que entrega la capa API.
// Exactamente uno de DestinationAccountID o BeneficiaryID debe venir.
type TransferRequest struct {
	ClientID             uuid.UUID       `json:"cliente_id"`
	IdempotencyKey       string          `json:"clave_idempotencia"`
	SourceAccountID      uuid.UUID       `json:"cuenta_origen_id"`
	DestinationAccountID *uuid.UUID      `json:"cuenta_destino_id,omitempty"`
	BeneficiaryID        *uuid.UUID      `json:"beneficiario_id,omitempty"`
	Amount               decimal.Decimal `json:"monto"`
	Currency             string          `json:"moneda"`
	ScheduledFor         *time.Time      `json:"fecha_programada,omitempty"`
}

func (r TransferRequest) Validate() error {
	if err := validateCommon(r.IdempotencyKey, r.Amount, r.Currency, r.SourceAccountID); err != nil {
		return err
	}
	if (r.DestinationAccountID == nil) == (r.BeneficiaryID == nil) {
		return fmt.Errorf("%w: se requiere exactamente un destino (cuenta o beneficiario)", ErrInvalidRequest)
	}
	return nil
}

// Destination arma la variante de destino sin resolverla contra la base.
func (r TransferRequest) Destination() Destination {
	if r.BeneficiaryID != nil {
		return Destination{Kind: DestExternalBeneficiary, BeneficiaryID: r.BeneficiaryID}
	}
	return Destination{Kind: DestInternalAccount, AccountID: r.DestinationAccountID}
}

// ServicePaymentRequest es la solicitud de pago de servicio a un proveedor
// registrado.
type ServicePaymentRequest struct {
	ClientID        uuid.UUID       `json:"cliente_id"`
	IdempotencyKey  string          `json:"clave_idempotencia"`
	SourceAccountID uuid.UUID       `json:"cuenta_origen_id"`
	ProviderID      uuid.UUID       `json:"proveedor_id"`
	ContractNumber  string          `json:"numero_contrato"`
	Amount          decimal.Decimal `json:"monto"`
	Currency        string          `json:"moneda"`
	ScheduledFor    *time.Time      `json:"fecha_programada,omitempty"`
}

func (r ServicePaymentRequest) Validate() error {
	if err := validateCommon(r.IdempotencyKey, r.Amount, r.Currency, r.SourceAccountID); err != nil {
		return err
	}
	if r.ProviderID == uuid.Nil {
		return fmt.Errorf("%w: proveedor requerido", ErrInvalidRequest)
	}
	if r.ContractNumber == "" {
		return fmt.Errorf("%w: número de contrato requerido", ErrInvalidRequest)
	}
	return nil
}

func (r ServicePaymentRequest) Destination() Destination {
	providerID := r.ProviderID
	return Destination{Kind: DestServiceProvider, ProviderID: &providerID, ContractNumber: r.ContractNumber}
}

func validateCommon(key string, amount decimal.Decimal, currency string, source uuid.UUID) error {
	if len(key) < 1 || len(key) > 50 {
		return fmt.Errorf("%w: la clave de idempotencia debe tener entre 1 y 50 caracteres", ErrInvalidRequest)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: el monto debe ser positivo", ErrInvalidRequest)
	}
	if currency == "" {
		return fmt.Errorf("%w: moneda requerida", ErrInvalidRequest)
	}
	if source == uuid.Nil {
		return fmt.Errorf("%w: cuenta de origen requerida", ErrInvalidRequest)
	}
	return nil
}
