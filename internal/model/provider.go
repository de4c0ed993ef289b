package model

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// Provider es un proveedor de servicios registrado (electricidad, agua,
// telefonía...). PatronContrato es la expresión regular que el número de
// contrato debe satisfacer antes de aceptar un pago.
type Provider struct {
	ID              uuid.UUID `json:"id" db:"id"`
	Name            string    `json:"nombre" db:"nombre"`
	ContractPattern string    `json:"patron_contrato" db:"patron_contrato"`
}

// ValidateContract verifica el número de contrato contra el patrón del
// proveedor. Un patrón mal formado en la base se reporta como fallo de
// infraestructura, no como contrato inválido.
func (p *Provider) ValidateContract(number string) error {
	if number == "" {
		return ErrInvalidContractNumber
	}
	re, err := regexp.Compile("^(?:" + p.ContractPattern + ")$")
	if err != nil {
		return fmt.Errorf("patrón de contrato inválido para el proveedor %s: %w", p.ID, err)
	}
	if !re.MatchString(number) {
		return ErrInvalidContractNumber
	}
	return nil
}
