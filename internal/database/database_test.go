package database

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/grossrc/DigiKey-Organizer/internal/mh10"
	"github.com/grossrc/DigiKey-Organizer/internal/scanner"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "scans.db"))
	require.NoError(t, err)
	return db
}

func sampleResult(t *testing.T) scanner.Result {
	t.Helper()
	payload := mh10.Parse([]byte("[)>\x1e06\x1d30P296-1234-ND\x1d1PNE555P\x1dQ25\x1d1TLOT42\x1d9D2336\x1d4LCN\x1e\x04"))
	require.True(t, mh10.DefaultPolicy().Complete(payload))
	return scanner.Result{
		Success: true,
		Outcome: scanner.OutcomeSuccess,
		Message: "OK",
		Backend: "zxing",
		Data:    &payload,
	}
}

func TestScanRecordRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	rec, err := NewScanRecord(sampleResult(t))
	require.NoError(t, err)
	require.NoError(t, SaveScan(ctx, db, rec))

	got, err := GetScan(ctx, db, rec.Id)
	require.NoError(t, err)

	assert.Equal(t, "296-1234-ND", got.DigiKeyPartNumber)
	assert.Equal(t, "NE555P", got.MfrPartNumber)
	require.True(t, got.Quantity.Valid)
	assert.EqualValues(t, 25, got.Quantity.Int64)
	assert.Equal(t, "LOT42", got.LotCode)
	assert.Equal(t, "2336", got.DateCode)
	assert.Equal(t, "CN", got.CountryOfOrigin)
	assert.Contains(t, got.RawPayload, "<GS>30P296-1234-ND")

	var fields map[string]any
	require.NoError(t, json.Unmarshal(got.Fields, &fields))
	assert.Equal(t, "296-1234-ND", fields["digikey_part_number"])
}

func TestNewScanRecordRequiresPayload(t *testing.T) {
	_, err := NewScanRecord(scanner.Result{Success: true})
	assert.Error(t, err)
}

func TestGetScanMissing(t *testing.T) {
	db := testDB(t)
	_, err := GetScan(context.Background(), db, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListScansNewestFirst(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec, err := NewScanRecord(sampleResult(t))
		require.NoError(t, err)
		require.NoError(t, SaveScan(ctx, db, rec))
	}

	recs, err := ListScans(ctx, db, 10, 0)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	recs, err = ListScans(ctx, db, 2, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = ListScans(ctx, db, 2, 2)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestMigratorIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scans.db")
	db, err := New(path)
	require.NoError(t, err)
	require.NoError(t, GetMigrator(db).Migrate())
}
