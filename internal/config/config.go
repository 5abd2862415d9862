// Package config centralizes the environment-driven settings shared by the
// CLI and the API server.
package config

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/grossrc/DigiKey-Organizer/internal/capture"
	"github.com/grossrc/DigiKey-Organizer/internal/mh10"
	"github.com/grossrc/DigiKey-Organizer/internal/scanner"
)

type Config struct {
	CameraIndex int  `env:"CAMERA_INDEX" envDefault:"0"`
	FrameWidth  int  `env:"FRAME_WIDTH" envDefault:"1280"`
	FrameHeight int  `env:"FRAME_HEIGHT" envDefault:"720"`
	ShowWindow  bool `env:"SHOW_WINDOW" envDefault:"false"`
	Fullscreen  bool `env:"FULLSCREEN" envDefault:"false"`

	ScanTimeout    time.Duration `env:"SCAN_TIMEOUT" envDefault:"20s"`
	ScanMode       string        `env:"SCAN_MODE" envDefault:"balanced"`
	ROIOnly        bool          `env:"ROI_ONLY" envDefault:"true"`
	DecodeInterval time.Duration `env:"DECODE_INTERVAL" envDefault:"80ms"`
	DecodeBudget   time.Duration `env:"DECODE_BUDGET" envDefault:"30ms"`
	MaxCandidates  int           `env:"MAX_CANDIDATES" envDefault:"6"`
	Backends       []string      `env:"DECODE_BACKENDS" envDefault:"zxing,zxing-multi"`

	SnapshotSuccess string `env:"SNAPSHOT_SUCCESS"`
	SnapshotFail    string `env:"SNAPSHOT_FAIL"`

	AutoFocus     *bool    `env:"CAMERA_AUTO_FOCUS"`
	Focus         *float64 `env:"CAMERA_FOCUS"`
	AutoExposure  *bool    `env:"CAMERA_AUTO_EXPOSURE"`
	Exposure      *float64 `env:"CAMERA_EXPOSURE"`
	AutoWB        *bool    `env:"CAMERA_AUTO_WB"`
	WBTemperature *float64 `env:"CAMERA_WB_TEMPERATURE"`

	DatabaseURL string `env:"DATABASE_URL" envDefault:"scans.db"`
	SaveScans   bool   `env:"SAVE_SCANS" envDefault:"false"`
	LookupParts bool   `env:"LOOKUP_PARTS" envDefault:"false"`
	APIPort     string `env:"API_PORT" envDefault:"8001"`

	DigiKeyClientID     string `env:"DIGIKEY_CLIENT_ID"`
	DigiKeyClientSecret string `env:"DIGIKEY_CLIENT_SECRET"`
}

// LoadEnvFile loads an optional env file named by the -env flag before the
// environment is parsed. Settings already present in the environment win.
func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	if err := godotenv.Load(configPath); err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

// Load parses the environment into a Config and validates cross-field
// settings the env tags cannot express.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing config: %w", err)
	}

	if _, err := scanner.ParseMode(cfg.ScanMode); err != nil {
		return Config{}, err
	}
	if len(cfg.Backends) == 0 {
		return Config{}, fmt.Errorf("DECODE_BACKENDS must name at least one backend")
	}

	return cfg, nil
}

// ScannerConfig assembles the per-session knobs. Mode and timeout override
// the configured values when non-zero, so API callers can tune a single
// scan without touching the environment.
func (c Config) ScannerConfig(backendName string, mode scanner.Mode, timeout time.Duration) scanner.Config {
	if mode == "" {
		mode, _ = scanner.ParseMode(c.ScanMode)
	}
	if timeout <= 0 {
		timeout = c.ScanTimeout
	}
	return scanner.Config{
		Timeout:         timeout,
		ROIOnly:         c.ROIOnly,
		DecodeInterval:  c.DecodeInterval,
		DecodeBudget:    c.DecodeBudget,
		MaxCandidates:   c.MaxCandidates,
		Mode:            mode,
		Policy:          mh10.DefaultPolicy(),
		SnapshotSuccess: c.SnapshotSuccess,
		SnapshotFail:    c.SnapshotFail,
		BackendName:     backendName,
	}
}

// CameraProperties collects the optional device overrides. Unset fields
// leave the device defaults untouched.
func (c Config) CameraProperties() capture.Properties {
	return capture.Properties{
		AutoFocus:     c.AutoFocus,
		Focus:         c.Focus,
		AutoExposure:  c.AutoExposure,
		Exposure:      c.Exposure,
		AutoWB:        c.AutoWB,
		WBTemperature: c.WBTemperature,
	}
}
