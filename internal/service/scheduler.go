package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marcos85-cr/Proyecto-BackEnd-Mejorado-sub001/internal/model"
)

// Scheduler recorre las transacciones programadas vencidas y las despacha al
// motor correspondiente. Lo invoca el cron del proceso en cada ciclo; el
// consumo atómico de la programación dentro de la liquidación garantiza que
// dos ciclos solapados no ejecuten el mismo movimiento dos veces.
type Scheduler struct {
	transactions TransactionStore
	transfers    DueExecutor
	payments     DueExecutor
	logger       *logrus.Logger
}

func NewScheduler(transactions TransactionStore, transfers, payments DueExecutor, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		transactions: transactions,
		transfers:    transfers,
		payments:     payments,
		logger:       logger,
	}
}

// ProcessDue ejecuta todas las transacciones cuya fecha programada ya venció.
// El error de un elemento se registra y no detiene al resto: la transacción
// afectada permanece programada y se reintenta en el siguiente ciclo, salvo
// que el motor la haya marcado fallida de forma definitiva.
func (s *Scheduler) ProcessDue(ctx context.Context) error {
	due, err := s.transactions.ListDue(ctx, time.Now())
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	s.logger.WithField("vencidas", len(due)).Info("Procesando transacciones programadas vencidas")

	for i := range due {
		t := &due[i]

		var execErr error
		switch t.Kind {
		case model.KindTransfer:
			execErr = s.transfers.ExecuteDue(ctx, t)
		case model.KindServicePayment:
			execErr = s.payments.ExecuteDue(ctx, t)
		default:
			s.logger.WithFields(logrus.Fields{
				"transaccion_id": t.ID,
				"tipo":           t.Kind,
			}).Error("Tipo de transacción programada desconocido")
			continue
		}

		if execErr != nil {
			s.logger.WithError(execErr).WithFields(logrus.Fields{
				"transaccion_id": t.ID,
				"tipo":           t.Kind,
			}).Error("Error ejecutando transacción programada, se reintentará en el siguiente ciclo")
			continue
		}

		s.logger.WithFields(logrus.Fields{
			"transaccion_id": t.ID,
			"estado":         t.Status,
		}).Info("Transacción programada procesada")
	}

	return nil
}
