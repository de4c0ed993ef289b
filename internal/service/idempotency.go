package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/marcos85-cr/Proyecto-BackEnd-Mejorado-sub001/internal/model"
)

// IdempotencyGuard deduplica operaciones por la clave que aporta el cliente.
// La única fuente de verdad es la restricción UNIQUE sobre
// clave_idempotencia: entre reservas concurrentes con la misma clave gana
// exactamente una inserción y las demás reciben la fila ganadora.
type IdempotencyGuard struct {
	transactions TransactionStore
	logger       *logrus.Logger
}

func NewIdempotencyGuard(transactions TransactionStore, logger *logrus.Logger) *IdempotencyGuard {
	return &IdempotencyGuard{transactions: transactions, logger: logger}
}

// Reserve busca una transacción existente con la clave; si no hay, construye
// y persiste una nueva en un solo paso atómico. Devuelve isNew=false cuando
// la clave ya estaba reservada: el llamador debe devolver la transacción
// almacenada tal cual, sin re-ejecutar ningún efecto.
func (g *IdempotencyGuard) Reserve(ctx context.Context, key string, build func() (*model.Transaction, error)) (*model.Transaction, bool, error) {
	existing, err := g.transactions.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("failed idempotency lookup: %w", err)
	}
	if existing != nil {
		g.logger.WithFields(logrus.Fields{
			"clave":          key,
			"transaccion_id": existing.ID,
		}).Info("Clave de idempotencia ya reservada, devolviendo la transacción existente")
		return existing, false, nil
	}

	t, err := build()
	if err != nil {
		return nil, false, err
	}
	t.IdempotencyKey = key

	if err := g.transactions.Create(ctx, t); err != nil {
		if errors.Is(err, model.ErrDuplicateIdempotencyKey) {
			// Un llamador concurrente insertó primero: la violación de la
			// restricción se trata como el caso "encontrada".
			winner, lookupErr := g.transactions.GetByIdempotencyKey(ctx, key)
			if lookupErr != nil {
				return nil, false, fmt.Errorf("failed idempotency re-lookup: %w", lookupErr)
			}
			if winner == nil {
				return nil, false, fmt.Errorf("clave %q duplicada pero no recuperable: %w", key, err)
			}
			g.logger.WithField("clave", key).Info("Reserva concurrente perdida, devolviendo la transacción ganadora")
			return winner, false, nil
		}
		return nil, false, err
	}

	return t, true, nil
}
