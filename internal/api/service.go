// Package api exposes the scan station over HTTP: parse payloads, run
// camera scans, browse the scan history, and look up parts upstream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/grossrc/DigiKey-Organizer/internal/database"
	"github.com/grossrc/DigiKey-Organizer/internal/mh10"
	"github.com/grossrc/DigiKey-Organizer/internal/scanner"
	"github.com/grossrc/DigiKey-Organizer/pkg/api"
)

// ScanRunner runs one scan session to completion. The production runner
// opens the camera; tests substitute a canned result.
type ScanRunner interface {
	Scan(ctx context.Context, mode scanner.Mode, timeout time.Duration) scanner.Result
}

// PartLookup proxies part number queries to the distributor API.
type PartLookup interface {
	Configured() bool
	ProductDetails(ctx context.Context, partNumber string) (json.RawMessage, error)
}

type ScannerService struct {
	db     *gorm.DB
	runner ScanRunner
	parts  PartLookup
	policy mh10.Policy
}

func NewScannerService(db *gorm.DB, runner ScanRunner, parts PartLookup) *ScannerService {
	return &ScannerService{db: db, runner: runner, parts: parts, policy: mh10.DefaultPolicy()}
}

func (s *ScannerService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Post("/parse", RestHandler(s.ParsePayload))
	r.Post("/scan", RestHandler(s.RunScan))
	r.Route("/scans", func(r chi.Router) {
		r.Get("/", RestHandler(s.ListScans))
		r.Get("/{scan_id}", RestHandler(s.GetScan))
	})
	r.Get("/parts/{part_number}", RestHandler(s.LookupPart))
}

func (s *ScannerService) ParsePayload(r *http.Request) (any, error) {
	req, err := ParseRequest[api.ParseRequest](r)
	if err != nil {
		return nil, err
	}

	if req.Text == "" {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "missing required field: text")
	}

	payload := mh10.ParseText(req.Text)
	return api.ParseResponse{
		Payload:  payload,
		Complete: s.policy.Complete(payload),
	}, nil
}

func (s *ScannerService) RunScan(r *http.Request) (any, error) {
	req, err := ParseRequest[api.ScanRequest](r)
	if err != nil {
		return nil, err
	}

	mode, err := scanner.ParseMode(req.Mode)
	if err != nil {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "invalid mode %q", req.Mode)
	}

	timeout := time.Duration(req.TimeoutSeconds) * time.Second

	res := s.runner.Scan(r.Context(), mode, timeout)

	resp := api.ScanResponse{
		Success: res.Success,
		Outcome: string(res.Outcome),
		Message: res.Message,
		Backend: res.Backend,
		Payload: res.Data,
	}

	if !res.Success {
		return resp, nil
	}

	rec, err := database.NewScanRecord(res)
	if err != nil {
		slog.Error("error building scan record", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to record scan")
	}
	if err := database.SaveScan(r.Context(), s.db, rec); err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to record scan")
	}

	scan := scanToAPI(rec)
	resp.Scan = &scan

	slog.Info("scan recorded", "scan_id", rec.Id, "part", rec.DigiKeyPartNumber)
	return resp, nil
}

func (s *ScannerService) ListScans(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.ListScansRequest](r)
	if err != nil {
		return nil, err
	}

	recs, err := database.ListScans(r.Context(), s.db, params.Limit, params.Offset)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving scans")
	}

	scans := make([]api.Scan, 0, len(recs))
	for _, rec := range recs {
		scans = append(scans, scanToAPI(rec))
	}
	return api.ListScansResponse{Scans: scans}, nil
}

func (s *ScannerService) GetScan(r *http.Request) (any, error) {
	scanId, err := URLParamUUID(r, "scan_id")
	if err != nil {
		return nil, err
	}

	rec, err := database.GetScan(r.Context(), s.db, scanId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "scan not found")
		}
		slog.Error("error getting scan", "scan_id", scanId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving scan record")
	}

	return scanToAPI(rec), nil
}

func (s *ScannerService) LookupPart(r *http.Request) (any, error) {
	partNumber := strings.TrimSpace(chi.URLParam(r, "part_number"))
	if partNumber == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "missing {part_number} url parameter")
	}

	if s.parts == nil || !s.parts.Configured() {
		return nil, CodedErrorf(http.StatusServiceUnavailable, "part lookup is not configured")
	}

	details, err := s.parts.ProductDetails(r.Context(), partNumber)
	if err != nil {
		slog.Error("error looking up part", "part_number", partNumber, "error", err)
		return nil, CodedErrorf(http.StatusBadGateway, "part lookup failed")
	}

	return details, nil
}

func scanToAPI(rec database.ScanRecord) api.Scan {
	scan := api.Scan{
		Id:                rec.Id,
		CreatedAt:         rec.CreatedAt,
		Backend:           rec.Backend,
		DigiKeyPartNumber: rec.DigiKeyPartNumber,
		MfrPartNumber:     rec.MfrPartNumber,
		LotCode:           rec.LotCode,
		DateCode:          rec.DateCode,
		CountryOfOrigin:   rec.CountryOfOrigin,
		RawPayload:        rec.RawPayload,
	}
	if rec.Quantity.Valid {
		qty := rec.Quantity.Int64
		scan.Quantity = &qty
	}
	if len(rec.Fields) > 0 {
		if err := json.Unmarshal(rec.Fields, &scan.Fields); err != nil {
			slog.Error("error decoding stored scan fields", "scan_id", rec.Id, "error", err)
		}
	}
	return scan
}
