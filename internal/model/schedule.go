package model

import (
	"time"

	"github.com/google/uuid"
)

// Schedule es el registro de fecha de ejecución futura, 1:1 con su
// transacción. Es el titular autoritativo de la fecha programada; el estado
// de ejecución vive en la transacción. Se consume (se elimina) en la misma
// transacción SQL que lleva la transacción a un estado terminal o a
// pendiente_aprobacion, de modo que ambos avanzan siempre en lockstep.
type Schedule struct {
	ID            uuid.UUID `json:"id" db:"id"`
	TransactionID uuid.UUID `json:"transaccion_id" db:"transaccion_id"`
	DueAt         time.Time `json:"fecha_programada" db:"fecha_programada"`
	CreatedAt     time.Time `json:"fecha_creacion" db:"fecha_creacion"`
}
