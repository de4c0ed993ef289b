package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PrecheckInput describe la operación a evaluar contra una cuenta.
// Commission, si viene, reutiliza la comisión calculada y almacenada al
// momento del registro; nunca se recalcula al liquidar.
type PrecheckInput struct {
	Kind       TransactionKind
	Amount     decimal.Decimal
	Currency   string
	Commission *decimal.Decimal
}

// PrecheckResult es el resultado estructurado del precheck: cálculo puro de
// comisión, límites y saldos sin ninguna mutación. Errors acumula las reglas
// de negocio violadas; vacío significa que la operación puede ejecutarse.
type PrecheckResult struct {
	BalanceBefore    decimal.Decimal `json:"saldo_anterior"`
	Commission       decimal.Decimal `json:"comision"`
	TotalDebit       decimal.Decimal `json:"debito_total"`
	BalanceAfter     decimal.Decimal `json:"saldo_posterior"`
	AvailableLimit   decimal.Decimal `json:"limite_disponible"`
	RequiresApproval bool            `json:"requiere_aprobacion"`
	Errors           []error         `json:"-"`
}

// CanExecute indica si no se violó ninguna regla de negocio.
func (r *PrecheckResult) CanExecute() bool {
	return len(r.Errors) == 0
}

// ErrorDetail serializa los errores de validación para registrarlos en la
// transacción fallida.
func (r *PrecheckResult) ErrorDetail() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, err := range r.Errors {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}
