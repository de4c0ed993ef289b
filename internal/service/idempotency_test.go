package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcos85-cr/Proyecto-BackEnd-Mejorado-sub001/internal/model"
)

func newTestTransaction(key string) *model.Transaction {
	return &model.Transaction{
		ID:              uuid.New(),
		ClientID:        uuid.New(),
		Kind:            model.KindTransfer,
		Status:          model.StatusPendingApproval,
		SourceAccountID: uuid.New(),
		Amount:          decimal.RequireFromString("100"),
		Currency:        "CRC",
		IdempotencyKey:  key,
	}
}

func TestReserveNewKey(t *testing.T) {
	store := newFakeTransactionStore(nil)
	guard := NewIdempotencyGuard(store, testLogger())

	built := newTestTransaction("")
	result, isNew, err := guard.Reserve(context.Background(), "clave-1", func() (*model.Transaction, error) {
		return built, nil
	})
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, built.ID, result.ID)
	assert.Equal(t, "clave-1", result.IdempotencyKey)

	stored, err := store.GetByIdempotencyKey(context.Background(), "clave-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, built.ID, stored.ID)
}

func TestReserveExistingKey(t *testing.T) {
	store := newFakeTransactionStore(nil)
	guard := NewIdempotencyGuard(store, testLogger())

	original := newTestTransaction("clave-1")
	require.NoError(t, store.Create(context.Background(), original))

	built := false
	result, isNew, err := guard.Reserve(context.Background(), "clave-1", func() (*model.Transaction, error) {
		built = true
		return newTestTransaction(""), nil
	})
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, original.ID, result.ID)
	assert.False(t, built, "la clave existente no debe reconstruir la transacción")
}

func TestReserveBuildError(t *testing.T) {
	store := newFakeTransactionStore(nil)
	guard := NewIdempotencyGuard(store, testLogger())

	buildErr := errors.New("fallo construyendo")
	_, _, err := guard.Reserve(context.Background(), "clave-1", func() (*model.Transaction, error) {
		return nil, buildErr
	})
	assert.ErrorIs(t, err, buildErr)

	stored, err := store.GetByIdempotencyKey(context.Background(), "clave-1")
	require.NoError(t, err)
	assert.Nil(t, stored, "un build fallido no debe reservar la clave")
}

// racingStore simula al perdedor de una inserción concurrente: la búsqueda
// inicial no encuentra nada, pero el INSERT choca con la restricción única
// porque otro llamador ganó entre ambas.
type racingStore struct {
	*fakeTransactionStore
	winner  *model.Transaction
	lookups int
}

func (s *racingStore) GetByIdempotencyKey(ctx context.Context, key string) (*model.Transaction, error) {
	s.lookups++
	if s.lookups == 1 {
		return nil, nil
	}
	return s.fakeTransactionStore.GetByIdempotencyKey(ctx, key)
}

func TestReserveLosesInsertRace(t *testing.T) {
	inner := newFakeTransactionStore(nil)
	winner := newTestTransaction("clave-1")
	require.NoError(t, inner.Create(context.Background(), winner))

	store := &racingStore{fakeTransactionStore: inner, winner: winner}
	guard := NewIdempotencyGuard(store, testLogger())

	result, isNew, err := guard.Reserve(context.Background(), "clave-1", func() (*model.Transaction, error) {
		return newTestTransaction(""), nil
	})
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, winner.ID, result.ID, "el perdedor de la carrera debe recibir la fila ganadora")
}
