package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcos85-cr/Proyecto-BackEnd-Mejorado-sub001/internal/model"
)

func TestCommissionFor(t *testing.T) {
	tests := []struct {
		name   string
		kind   model.TransactionKind
		tier   model.AccountTier
		amount string
		want   string
	}{
		{"transferencia estándar", model.KindTransfer, model.TierStandard, "1000", "5"},
		{"transferencia premium", model.KindTransfer, model.TierPremium, "1000", "2.5"},
		{"pago estándar", model.KindServicePayment, model.TierStandard, "1000", "3"},
		{"pago premium", model.KindServicePayment, model.TierPremium, "1000", "1.5"},
		// 333.33 × 0.005 = 1.66665: se trunca, nunca se redondea hacia arriba.
		{"la comisión se trunca", model.KindTransfer, model.TierStandard, "333.33", "1.66"},
		{"monto pequeño trunca a cero", model.KindTransfer, model.TierStandard, "1", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CommissionFor(tt.kind, tt.tier, decimal.RequireFromString(tt.amount))
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"esperaba %s, obtuvo %s", tt.want, got)
		})
	}
}

func standardAccount(balance string) *model.Account {
	return &model.Account{
		ID:       uuid.New(),
		ClientID: uuid.New(),
		Currency: "CRC",
		Tier:     model.TierStandard,
		Status:   model.AccountActive,
		Balance:  decimal.RequireFromString(balance),
	}
}

func TestEvaluatePrecheck(t *testing.T) {
	input := func(amount string) model.PrecheckInput {
		return model.PrecheckInput{
			Kind:     model.KindTransfer,
			Amount:   decimal.RequireFromString(amount),
			Currency: "CRC",
		}
	}

	t.Run("operación ejecutable", func(t *testing.T) {
		result := EvaluatePrecheck(standardAccount("1000"), input("100"))
		require.True(t, result.CanExecute())
		assert.True(t, result.Commission.Equal(decimal.RequireFromString("0.5")))
		assert.True(t, result.TotalDebit.Equal(decimal.RequireFromString("100.5")))
		assert.True(t, result.BalanceAfter.Equal(decimal.RequireFromString("899.5")))
		assert.False(t, result.RequiresApproval)
	})

	t.Run("cuenta bloqueada", func(t *testing.T) {
		account := standardAccount("1000")
		account.Status = model.AccountBlocked
		result := EvaluatePrecheck(account, input("100"))
		assert.ErrorIs(t, result.Errors[0], model.ErrAccountBlocked)
	})

	t.Run("cuenta cerrada", func(t *testing.T) {
		account := standardAccount("1000")
		account.Status = model.AccountClosed
		result := EvaluatePrecheck(account, input("100"))
		assert.ErrorIs(t, result.Errors[0], model.ErrAccountClosed)
	})

	t.Run("moneda distinta", func(t *testing.T) {
		in := input("100")
		in.Currency = "USD"
		result := EvaluatePrecheck(standardAccount("1000"), in)
		assert.ErrorIs(t, result.Errors[0], model.ErrCurrencyMismatch)
	})

	t.Run("fondos insuficientes cuenta la comisión", func(t *testing.T) {
		// Saldo 100, monto 100: el débito total 100.5 excede el saldo.
		result := EvaluatePrecheck(standardAccount("100"), input("100"))
		require.False(t, result.CanExecute())
		assert.ErrorIs(t, result.Errors[0], model.ErrInsufficientFunds)
	})

	t.Run("saldo exacto es suficiente", func(t *testing.T) {
		result := EvaluatePrecheck(standardAccount("100.50"), input("100"))
		assert.True(t, result.CanExecute())
		assert.True(t, result.BalanceAfter.IsZero())
	})

	t.Run("límite por operación excedido", func(t *testing.T) {
		result := EvaluatePrecheck(standardAccount("100000"), input("4999"))
		// 4999 + 24.99 de comisión = 5023.99 > 5000
		require.False(t, result.CanExecute())
		assert.ErrorIs(t, result.Errors[0], model.ErrLimitExceeded)
	})

	t.Run("límite premium más amplio", func(t *testing.T) {
		account := standardAccount("100000")
		account.Tier = model.TierPremium
		result := EvaluatePrecheck(account, input("4999"))
		assert.True(t, result.CanExecute())
	})

	t.Run("errores acumulados", func(t *testing.T) {
		account := standardAccount("10")
		account.Status = model.AccountBlocked
		in := input("4999")
		in.Currency = "USD"
		result := EvaluatePrecheck(account, in)
		assert.Len(t, result.Errors, 4) // bloqueada, moneda, fondos, límite
		assert.NotEmpty(t, result.ErrorDetail())
	})

	t.Run("comisión almacenada se reutiliza sin recalcular", func(t *testing.T) {
		stored := decimal.RequireFromString("7.77")
		in := input("100")
		in.Commission = &stored
		result := EvaluatePrecheck(standardAccount("1000"), in)
		assert.True(t, result.Commission.Equal(stored))
		assert.True(t, result.TotalDebit.Equal(decimal.RequireFromString("107.77")))
	})
}

func TestApprovalThresholdBoundary(t *testing.T) {
	t.Run("débito total igual al umbral no requiere aprobación", func(t *testing.T) {
		// 995.02 + 4.97 de comisión = 999.99 ≤ 1000
		result := EvaluatePrecheck(standardAccount("10000"), model.PrecheckInput{
			Kind:     model.KindTransfer,
			Amount:   decimal.RequireFromString("995.02"),
			Currency: "CRC",
		})
		require.True(t, result.CanExecute())
		assert.False(t, result.RequiresApproval)
	})

	t.Run("débito total sobre el umbral requiere aprobación", func(t *testing.T) {
		result := EvaluatePrecheck(standardAccount("10000"), model.PrecheckInput{
			Kind:     model.KindTransfer,
			Amount:   decimal.RequireFromString("1500"),
			Currency: "CRC",
		})
		require.True(t, result.CanExecute())
		assert.True(t, result.RequiresApproval)
	})

	t.Run("umbral premium", func(t *testing.T) {
		account := standardAccount("100000")
		account.Tier = model.TierPremium
		result := EvaluatePrecheck(account, model.PrecheckInput{
			Kind:     model.KindTransfer,
			Amount:   decimal.RequireFromString("1500"),
			Currency: "CRC",
		})
		assert.False(t, result.RequiresApproval)
	})
}
