package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// auditEvent es el mensaje que se publica en el exchange de auditoría.
type auditEvent struct {
	ActorID     uuid.UUID   `json:"actor_id"`
	Operation   string      `json:"operacion"`
	Description string      `json:"descripcion"`
	Detail      interface{} `json:"detalle,omitempty"`
	OccurredAt  time.Time   `json:"ocurrido_en"`
}

// AuditPublisher publica los eventos de auditoría en un exchange topic de
// RabbitMQ. Es fire-and-forget: un fallo de publicación se registra en los
// logs y nunca interrumpe la operación financiera que lo originó.
type AuditPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *logrus.Logger
}

func NewAuditPublisher(url, exchange string, logger *logrus.Logger) (*AuditPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare an exchange: %w", err)
	}

	logger.WithField("exchange", exchange).Info("Publicador de auditoría conectado a RabbitMQ")
	return &AuditPublisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		logger:   logger,
	}, nil
}

// Record publica el evento usando la operación como routing key
// (p. ej. "transferencia.ejecutar").
func (p *AuditPublisher) Record(ctx context.Context, actorID uuid.UUID, operation, description string, detail any) {
	event := auditEvent{
		ActorID:     actorID,
		Operation:   operation,
		Description: description,
		Detail:      detail,
		OccurredAt:  time.Now(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.WithError(err).Error("No se pudo serializar el evento de auditoría")
		return
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange, // exchange
		operation,  // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
			Body:         body,
		})
	if err != nil {
		p.logger.WithError(err).WithField("operacion", operation).Error("No se pudo publicar el evento de auditoría")
	}
}

func (p *AuditPublisher) Close() {
	if err := p.channel.Close(); err != nil {
		p.logger.WithError(err).Warn("Error cerrando el canal de auditoría")
	}
	if err := p.conn.Close(); err != nil {
		p.logger.WithError(err).Warn("Error cerrando la conexión de auditoría")
	}
}

// LogAuditor escribe los eventos de auditoría en los logs del proceso. Se usa
// cuando no hay broker configurado (desarrollo y pruebas).
type LogAuditor struct {
	logger *logrus.Logger
}

func NewLogAuditor(logger *logrus.Logger) *LogAuditor {
	return &LogAuditor{logger: logger}
}

func (a *LogAuditor) Record(_ context.Context, actorID uuid.UUID, operation, description string, _ any) {
	a.logger.WithFields(logrus.Fields{
		"actor_id":  actorID,
		"operacion": operation,
	}).Info(description)
}

var (
	_ Auditor = (*AuditPublisher)(nil)
	_ Auditor = (*LogAuditor)(nil)
)
