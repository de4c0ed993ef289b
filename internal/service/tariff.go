package service

import (
	"github.com/shopspring/decimal"

	"github.com/marcos85-cr/Proyecto-BackEnd-Mejorado-sub001/internal/model"
)

// Tarifario determinístico: comisiones, límites por operación y umbrales de
// aprobación por categoría de cuenta. Cálculo puro, sin entrada/salida.

var commissionRates = map[model.TransactionKind]map[model.AccountTier]decimal.Decimal{
	model.KindTransfer: {
		model.TierStandard: decimal.RequireFromString("0.005"),
		model.TierPremium:  decimal.RequireFromString("0.0025"),
	},
	model.KindServicePayment: {
		model.TierStandard: decimal.RequireFromString("0.003"),
		model.TierPremium:  decimal.RequireFromString("0.0015"),
	},
}

var operationLimits = map[model.AccountTier]decimal.Decimal{
	model.TierStandard: decimal.RequireFromString("5000"),
	model.TierPremium:  decimal.RequireFromString("50000"),
}

var approvalThresholds = map[model.AccountTier]decimal.Decimal{
	model.TierStandard: decimal.RequireFromString("1000"),
	model.TierPremium:  decimal.RequireFromString("10000"),
}

// CommissionFor calcula la comisión: monto × tasa(tipo, categoría), truncada
// (no redondeada) a la unidad menor de la moneda. Se calcula una sola vez al
// registrar la transacción; la liquidación reutiliza el valor almacenado.
func CommissionFor(kind model.TransactionKind, tier model.AccountTier, amount decimal.Decimal) decimal.Decimal {
	rates, ok := commissionRates[kind]
	if !ok {
		return decimal.Zero
	}
	rate, ok := rates[tier]
	if !ok {
		rate = rates[model.TierStandard]
	}
	return amount.Mul(rate).Truncate(2)
}

// OperationLimit devuelve el techo de débito por operación para la categoría.
func OperationLimit(tier model.AccountTier) decimal.Decimal {
	if limit, ok := operationLimits[tier]; ok {
		return limit
	}
	return operationLimits[model.TierStandard]
}

// ApprovalThreshold devuelve el monto sobre el cual el débito total requiere
// aprobación de un gestor antes de mover fondos.
func ApprovalThreshold(tier model.AccountTier) decimal.Decimal {
	if threshold, ok := approvalThresholds[tier]; ok {
		return threshold
	}
	return approvalThresholds[model.TierStandard]
}

// EvaluatePrecheck es el precheck puro del ledger: comisión, débito total,
// saldo resultante, límite disponible y violaciones de reglas de negocio.
// No muta nada; es seguro invocarlo cuantas veces haga falta.
func EvaluatePrecheck(account *model.Account, in model.PrecheckInput) *model.PrecheckResult {
	commission := CommissionFor(in.Kind, account.Tier, in.Amount)
	if in.Commission != nil {
		commission = *in.Commission
	}

	totalDebit := in.Amount.Add(commission)
	result := &model.PrecheckResult{
		BalanceBefore:    account.Balance,
		Commission:       commission,
		TotalDebit:       totalDebit,
		BalanceAfter:     account.Balance.Sub(totalDebit),
		AvailableLimit:   OperationLimit(account.Tier),
		RequiresApproval: totalDebit.GreaterThan(ApprovalThreshold(account.Tier)),
	}

	switch account.Status {
	case model.AccountBlocked:
		result.Errors = append(result.Errors, model.ErrAccountBlocked)
	case model.AccountClosed:
		result.Errors = append(result.Errors, model.ErrAccountClosed)
	}
	if in.Currency != account.Currency {
		result.Errors = append(result.Errors, model.ErrCurrencyMismatch)
	}
	if result.BalanceAfter.IsNegative() {
		result.Errors = append(result.Errors, model.ErrInsufficientFunds)
	}
	if totalDebit.GreaterThan(result.AvailableLimit) {
		result.Errors = append(result.Errors, model.ErrLimitExceeded)
	}

	return result
}
