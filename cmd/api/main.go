package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/grossrc/DigiKey-Organizer/internal/api"
	"github.com/grossrc/DigiKey-Organizer/internal/capture"
	"github.com/grossrc/DigiKey-Organizer/internal/capture/gocvcam"
	"github.com/grossrc/DigiKey-Organizer/internal/config"
	"github.com/grossrc/DigiKey-Organizer/internal/database"
	"github.com/grossrc/DigiKey-Organizer/internal/decode"
	"github.com/grossrc/DigiKey-Organizer/internal/digikey"
	"github.com/grossrc/DigiKey-Organizer/internal/scanner"
)

// cameraRunner opens the camera for each scan request so the device is
// free between scans. The mutex keeps concurrent requests off the device.
type cameraRunner struct {
	cfg     config.Config
	backend decode.Backend
	name    string

	mu sync.Mutex
}

func (c *cameraRunner) Scan(ctx context.Context, mode scanner.Mode, timeout time.Duration) scanner.Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	cam, err := gocvcam.Open(c.cfg.CameraIndex, c.cfg.FrameWidth, c.cfg.FrameHeight, c.cfg.CameraProperties())
	if err != nil {
		return scanner.Result{
			Outcome: scanner.OutcomeCaptureFailure,
			Message: "Failed to open camera.",
		}
	}

	var display capture.Display
	if c.cfg.ShowWindow {
		window := gocvcam.NewWindow(c.cfg.Fullscreen)
		defer window.Close()
		display = window
	}

	session := scanner.NewSession(cam, display, c.backend, c.cfg.ScannerConfig(c.name, mode, timeout))
	return session.Run(ctx)
}

func main() {
	log.Println("Starting scan station API server...")

	config.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	backend, backendName, err := decode.DefaultRegistry().Resolve(cfg.Backends...)
	if err != nil {
		log.Fatalf("no usable decode backend: %v", err)
	}

	runner := &cameraRunner{cfg: cfg, backend: backend, name: backendName}
	parts := digikey.NewClient(cfg.DigiKeyClientID, cfg.DigiKeyClientSecret)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	service := api.NewScannerService(db, runner, parts)
	r.Route("/api/v1", service.AddRoutes)

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: r,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	log.Printf("API server listening on port %s", cfg.APIPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
	}

	log.Println("Server stopped")
}
