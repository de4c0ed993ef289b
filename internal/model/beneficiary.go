package model

import (
	"time"

	"github.com/google/uuid"
)

type BeneficiaryStatus string

const (
	BeneficiaryInactive  BeneficiaryStatus = "inactivo"
	BeneficiaryConfirmed BeneficiaryStatus = "confirmado"
)

// Beneficiary es un destinatario externo registrado por el cliente. Solo un
// beneficiario confirmado puede usarse como destino de una transferencia.
type Beneficiary struct {
	ID            uuid.UUID         `json:"id" db:"id"`
	ClientID      uuid.UUID         `json:"cliente_id" db:"cliente_id"`
	Alias         string            `json:"alias" db:"alias"` // único por cliente, 3-30 caracteres
	Bank          string            `json:"banco" db:"banco"`
	Currency      string            `json:"moneda" db:"moneda"`
	AccountNumber string            `json:"numero_cuenta" db:"numero_cuenta"` // 12-20 dígitos
	Country       string            `json:"pais" db:"pais"`
	Status        BeneficiaryStatus `json:"estado" db:"estado"`
	CreatedAt     time.Time         `json:"fecha_creacion" db:"fecha_creacion"`
}

// Confirmed indica si el beneficiario puede recibir transferencias.
func (b *Beneficiary) Confirmed() bool {
	return b.Status == BeneficiaryConfirmed
}
