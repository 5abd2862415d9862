package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/grossrc/DigiKey-Organizer/internal/capture"
	"github.com/grossrc/DigiKey-Organizer/internal/capture/gocvcam"
	"github.com/grossrc/DigiKey-Organizer/internal/config"
	"github.com/grossrc/DigiKey-Organizer/internal/database"
	"github.com/grossrc/DigiKey-Organizer/internal/decode"
	"github.com/grossrc/DigiKey-Organizer/internal/digikey"
	"github.com/grossrc/DigiKey-Organizer/internal/scanner"
)

func main() {
	config.LoadEnvFile()

	// os.Exit skips deferred cleanup, so run owns the defers.
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	backend, backendName, err := decode.DefaultRegistry().Resolve(cfg.Backends...)
	if err != nil {
		log.Fatalf("no usable decode backend: %v", err)
	}

	cam, err := gocvcam.Open(cfg.CameraIndex, cfg.FrameWidth, cfg.FrameHeight, cfg.CameraProperties())
	if err != nil {
		log.Fatalf("failed to open camera %d: %v", cfg.CameraIndex, err)
	}

	var display capture.Display
	if cfg.ShowWindow {
		display = gocvcam.NewWindow(cfg.Fullscreen)
		defer display.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session := scanner.NewSession(cam, display, backend, cfg.ScannerConfig(backendName, "", 0))
	res := session.Run(ctx)

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		log.Fatalf("error encoding result: %v", err)
	}
	fmt.Println(string(out))

	if res.Success && cfg.SaveScans {
		saveScan(cfg, res)
	}
	if res.Success && cfg.LookupParts {
		lookupPart(ctx, cfg, res)
	}

	if !res.Success {
		return 1
	}
	return 0
}

func saveScan(cfg config.Config, res scanner.Result) {
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}

	rec, err := database.NewScanRecord(res)
	if err != nil {
		log.Fatalf("failed to build scan record: %v", err)
	}
	if err := database.SaveScan(context.Background(), db, rec); err != nil {
		log.Fatalf("failed to save scan: %v", err)
	}
	log.Printf("scan saved with id %s", rec.Id)
}

func lookupPart(ctx context.Context, cfg config.Config, res scanner.Result) {
	client := digikey.NewClient(cfg.DigiKeyClientID, cfg.DigiKeyClientSecret)
	if !client.Configured() {
		log.Printf("part lookup skipped: DIGIKEY_CLIENT_ID / DIGIKEY_CLIENT_SECRET not set")
		return
	}

	partNumber := digikey.LookupPartNumber(res.Data.Fields)
	if partNumber == "" {
		log.Printf("part lookup skipped: no part number in payload")
		return
	}

	details, err := client.ProductDetails(ctx, partNumber)
	if err != nil {
		log.Printf("part lookup failed for %s: %v", partNumber, err)
		return
	}
	fmt.Println(string(details))
}
