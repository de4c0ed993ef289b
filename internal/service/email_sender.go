package service

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-mail/mail/v2"
	"github.com/sirupsen/logrus"

	"github.com/marcos85-cr/Proyecto-BackEnd-Mejorado-sub001/internal/model"
)

type EmailSender struct {
	dialer  *mail.Dialer
	logger  *logrus.Logger
	enabled bool
}

func NewEmailSender(logger *logrus.Logger) *EmailSender {
	smtpHost := os.Getenv("SMTP_HOST")
	smtpPortStr := os.Getenv("SMTP_PORT")
	smtpUser := os.Getenv("SMTP_USER")
	smtpPass := os.Getenv("SMTP_PASS")
	enabled := os.Getenv("EMAIL_SENDER_ENABLED") == "true"
	insecureSkipVerify := os.Getenv("INSECURE_SKIP_VERIFY") == "true"

	smtpPort, err := strconv.Atoi(smtpPortStr)
	if err != nil {
		if enabled {
			logger.Fatalf("Error convirtiendo SMTP_PORT: %v", err)
		}
		smtpPort = 587
	}

	d := mail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPass)
	d.TLSConfig = &tls.Config{
		ServerName:         smtpHost,
		InsecureSkipVerify: insecureSkipVerify,
	}
	return &EmailSender{
		dialer:  d,
		logger:  logger,
		enabled: enabled,
	}
}

func (es *EmailSender) SendReceiptNotification(email string, t *model.Transaction) error {
	if !es.enabled {
		es.logger.Warn("Envío de notificaciones deshabilitado")
		return nil
	}

	receipt := ""
	if t.ReceiptNumber != nil {
		receipt = *t.ReceiptNumber
	}
	executedAt := time.Now()
	if t.ExecutedAt != nil {
		executedAt = *t.ExecutedAt
	}

	subject := fmt.Sprintf("Comprobante de operación (%s)", kindLabel(t.Kind))
	content := fmt.Sprintf(`
		<h1>Comprobante de operación</h1>
		<p>Tipo de operación: <strong>%s</strong></p>
		<p>Número de comprobante: <strong>%s</strong></p>
		<p>Monto: <strong>%s %s</strong></p>
		<p>Comisión: <strong>%s %s</strong></p>
		<p>Fecha: <strong>%s</strong></p>
		<small>Esta es una notificación automática, por favor no la responda</small>
	`, kindLabel(t.Kind), receipt,
		t.Amount.StringFixed(2), t.Currency,
		t.Commission.StringFixed(2), t.Currency,
		executedAt.Format("02/01/2006 15:04"))

	return es.sendEmail(email, subject, content)
}

func (es *EmailSender) SendApprovalRequestNotification(email string, t *model.Transaction) error {
	if !es.enabled {
		es.logger.Warn("Envío de notificaciones deshabilitado")
		return nil
	}

	subject := "Operación pendiente de aprobación"
	content := fmt.Sprintf(`
		<h1>Operación pendiente de aprobación</h1>
		<p>Tipo de operación: <strong>%s</strong></p>
		<p>Monto: <strong>%s %s</strong></p>
		<p>La operación supera el umbral de su categoría y requiere aprobación de un gestor.</p>
		<p>Fecha: <strong>%s</strong></p>
		<small>Esta es una notificación automática, por favor no la responda</small>
	`, kindLabel(t.Kind),
		t.Amount.StringFixed(2), t.Currency,
		t.CreatedAt.Format("02/01/2006 15:04"))

	return es.sendEmail(email, subject, content)
}

func kindLabel(kind model.TransactionKind) string {
	switch kind {
	case model.KindTransfer:
		return "transferencia"
	case model.KindServicePayment:
		return "pago de servicio"
	default:
		return string(kind)
	}
}

func (es *EmailSender) sendEmail(to, subject, body string) error {
	m := mail.NewMessage()
	m.SetHeader("From", os.Getenv("SMTP_USER"))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := es.dialer.DialAndSend(m); err != nil {
		es.logger.WithError(err).Error("Error enviando email")
		return fmt.Errorf("failed to send email: %w", err)
	}

	es.logger.Infof("Email enviado correctamente a %s", to)
	return nil
}

var _ Notifier = (*EmailSender)(nil)
