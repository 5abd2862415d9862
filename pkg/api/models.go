package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/grossrc/DigiKey-Organizer/internal/mh10"
)

type ParseRequest struct {
	// Text is the payload with control bytes rendered as <GS>/<RS>/<EOT>
	// placeholders or \xHH escapes, as copied from a reference scanner.
	Text string `json:"text"`
}

type ParseResponse struct {
	Payload  mh10.Payload `json:"payload"`
	Complete bool         `json:"complete"`
}

type ScanRequest struct {
	Mode           string `json:"mode,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

type ScanResponse struct {
	Success bool          `json:"success"`
	Outcome string        `json:"outcome"`
	Message string        `json:"message,omitempty"`
	Backend string        `json:"backend,omitempty"`
	Payload *mh10.Payload `json:"payload,omitempty"`
	Scan    *Scan         `json:"scan,omitempty"`
}

type Scan struct {
	Id        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Backend   string    `json:"backend"`

	DigiKeyPartNumber string `json:"digikey_part_number,omitempty"`
	MfrPartNumber     string `json:"mfr_part_number,omitempty"`
	Quantity          *int64 `json:"quantity,omitempty"`
	LotCode           string `json:"lot_code,omitempty"`
	DateCode          string `json:"date_code,omitempty"`
	CountryOfOrigin   string `json:"country_of_origin,omitempty"`

	RawPayload string         `json:"raw_payload"`
	Fields     map[string]any `json:"fields"`
}

type ListScansRequest struct {
	Limit  int `schema:"limit"`
	Offset int `schema:"offset"`
}

type ListScansResponse struct {
	Scans []Scan `json:"scans"`
}
