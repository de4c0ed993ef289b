package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccountStatus string

const (
	AccountActive  AccountStatus = "activa"
	AccountBlocked AccountStatus = "bloqueada"
	AccountClosed  AccountStatus = "cerrada"
)

type AccountTier string

const (
	TierStandard AccountTier = "estandar"
	TierPremium  AccountTier = "premium"
)

// Account es la cuenta bancaria de un cliente. El saldo solo se modifica a
// través de BalanceLedger; ningún otro componente escribe sobre él.
type Account struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	ClientID  uuid.UUID       `json:"cliente_id" db:"cliente_id"`
	Number    string          `json:"numero_cuenta" db:"numero_cuenta"`
	Type      string          `json:"tipo" db:"tipo"` // corriente, ahorros
	Currency  string          `json:"moneda" db:"moneda"`
	Tier      AccountTier     `json:"categoria" db:"categoria"`
	Status    AccountStatus   `json:"estado" db:"estado"`
	Balance   decimal.Decimal `json:"saldo" db:"saldo"`
	CreatedAt time.Time       `json:"fecha_creacion" db:"fecha_creacion"`
	UpdatedAt time.Time       `json:"fecha_actualizacion" db:"fecha_actualizacion"`
}
