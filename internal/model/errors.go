package model

import "errors"

// Errores centinela del dominio. Los repositorios y servicios los envuelven
// con %w; los llamadores los detectan con errors.Is.
var (
	ErrInvalidRequest             = errors.New("solicitud inválida")
	ErrAccountNotFound            = errors.New("cuenta no encontrada")
	ErrAccountBlocked             = errors.New("cuenta bloqueada")
	ErrAccountClosed              = errors.New("cuenta cerrada")
	ErrBeneficiaryNotConfirmed    = errors.New("beneficiario no confirmado")
	ErrCurrencyMismatch           = errors.New("moneda no coincide con la cuenta")
	ErrInsufficientFunds          = errors.New("fondos insuficientes")
	ErrLimitExceeded              = errors.New("límite por operación excedido")
	ErrInvalidContractNumber      = errors.New("número de contrato inválido")
	ErrConcurrentBalanceViolation = errors.New("saldo insuficiente al confirmar por operación concurrente")
	ErrInvalidState               = errors.New("transición de estado no permitida")
	ErrForbidden                  = errors.New("operación no permitida sobre recursos ajenos")
	ErrNotFound                   = errors.New("recurso no encontrado")
	ErrDuplicateIdempotencyKey    = errors.New("clave de idempotencia duplicada")
)

// businessErrors son los fallos de reglas de negocio: la transacción se
// registra como fallida con el detalle y la operación responde con normalidad.
// Todo lo demás es fallo de infraestructura y se propaga al llamador.
var businessErrors = []error{
	ErrAccountBlocked,
	ErrAccountClosed,
	ErrBeneficiaryNotConfirmed,
	ErrCurrencyMismatch,
	ErrInsufficientFunds,
	ErrLimitExceeded,
	ErrInvalidContractNumber,
	ErrConcurrentBalanceViolation,
}

// IsBusinessError indica si el error es una violación de reglas de negocio.
func IsBusinessError(err error) bool {
	for _, be := range businessErrors {
		if errors.Is(err, be) {
			return true
		}
	}
	return false
}
