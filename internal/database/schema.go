package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ScanRecord catalogs one accepted scan. The commonly queried label fields
// are promoted to columns; the full parsed field map rides along as JSON.
type ScanRecord struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time

	Backend string `gorm:"size:32"`
	Message string

	DigiKeyPartNumber string `gorm:"size:64;index"`
	MfrPartNumber     string `gorm:"size:64;index"`
	Quantity          sql.NullInt64
	LotCode           string `gorm:"size:64"`
	DateCode          string `gorm:"size:32"`
	CountryOfOrigin   string `gorm:"size:8"`

	RawPayload string         // visible-separator rendering of the raw bytes
	Fields     datatypes.JSON // full canonical field map
}
