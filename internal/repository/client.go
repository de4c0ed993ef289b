package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/marcos85-cr/Proyecto-BackEnd-Mejorado-sub001/internal/model"
)

// ClientRepository es el acceso de solo lectura a la tabla de clientes, cuyo
// ciclo de vida administra otro módulo. El núcleo solo necesita el correo
// para las notificaciones.
type ClientRepository struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewClientRepository(db *sql.DB, logger *logrus.Logger) *ClientRepository {
	return &ClientRepository{db: db, logger: logger}
}

func (r *ClientRepository) GetEmail(ctx context.Context, clientID uuid.UUID) (string, error) {
	query := `
        SELECT email
        FROM clientes
        WHERE id = $1
    `

	var email string
	err := r.db.QueryRowContext(ctx, query, clientID).Scan(&email)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", model.ErrNotFound
		}
		return "", fmt.Errorf("failed to get client email: %w", err)
	}

	return email, nil
}
