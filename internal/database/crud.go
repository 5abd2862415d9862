package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/grossrc/DigiKey-Organizer/internal/scanner"
)

// NewScanRecord builds a record from a successful scan result.
func NewScanRecord(res scanner.Result) (ScanRecord, error) {
	if res.Data == nil {
		return ScanRecord{}, fmt.Errorf("scan result has no parsed payload")
	}

	fieldsJSON, err := json.Marshal(res.Data.Fields)
	if err != nil {
		return ScanRecord{}, fmt.Errorf("error encoding scan fields: %w", err)
	}

	rec := ScanRecord{
		Id:         uuid.New(),
		CreatedAt:  time.Now().UTC(),
		Backend:    res.Backend,
		Message:    res.Message,
		RawPayload: res.Data.Raw.StringVisibleSeparators,
		Fields:     fieldsJSON,
	}

	fields := res.Data.Fields
	if v, ok := fields["digikey_part_number"].(string); ok {
		rec.DigiKeyPartNumber = v
	}
	if v, ok := fields["mfr_part_number"].(string); ok {
		rec.MfrPartNumber = v
	}
	if v, ok := fields["quantity"].(int); ok {
		rec.Quantity = sql.NullInt64{Int64: int64(v), Valid: true}
	}
	if v, ok := fields["lot_code"].(string); ok {
		rec.LotCode = v
	}
	if v, ok := fields["date_code"].(string); ok {
		rec.DateCode = v
	}
	if v, ok := fields["country_of_origin"].(string); ok {
		rec.CountryOfOrigin = v
	}
	return rec, nil
}

// SaveScan persists an accepted scan.
func SaveScan(ctx context.Context, db *gorm.DB, rec ScanRecord) error {
	if err := db.WithContext(ctx).Create(&rec).Error; err != nil {
		slog.Error("error saving scan record", "scan_id", rec.Id, "error", err)
		return err
	}
	return nil
}

// GetScan fetches one scan by id.
func GetScan(ctx context.Context, db *gorm.DB, id uuid.UUID) (ScanRecord, error) {
	var rec ScanRecord
	if err := db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return ScanRecord{}, err
	}
	return rec, nil
}

// ListScans returns scans newest-first with simple limit/offset paging.
func ListScans(ctx context.Context, db *gorm.DB, limit, offset int) ([]ScanRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var recs []ScanRecord
	err := db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&recs).Error
	if err != nil {
		slog.Error("error listing scan records", "error", err)
		return nil, err
	}
	return recs, nil
}
