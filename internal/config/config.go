// Package config resolves daemon configuration from defaults, an optional
// YAML file, and SECCAM_* environment variables, in that order.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Detector modes.
const (
	DetectorHTTP = "http"
	DetectorOff  = "off"
)

// Fallback policies for running without a detector. Required when the
// detector mode is off; there is no silent default.
const (
	FallbackRecordAll = "record-all"
	FallbackDisabled  = "disabled"
)

// Config holds the resolved daemon configuration. FPS, FrameWidth and
// FrameHeight start as requested values and are replaced by the source's
// negotiated actuals after open.
type Config struct {
	DeviceIndex int `yaml:"deviceIndex"`

	FrameWidth  int     `yaml:"frameWidth"`
	FrameHeight int     `yaml:"frameHeight"`
	FPS         float64 `yaml:"fps"`

	BufferSeconds            float64 `yaml:"bufferSeconds"`
	PostEventSeconds         float64 `yaml:"postEventSeconds"`
	DetectionIntervalSeconds float64 `yaml:"detectionIntervalSeconds"`

	DetectorMode     string  `yaml:"detectorMode"`
	DetectorEndpoint string  `yaml:"detectorEndpoint"`
	DetectorFallback string  `yaml:"detectorFallback"`
	MinConfidence    float64 `yaml:"minConfidence"`

	// PersistWorkers bounds concurrent artifact writes.
	PersistWorkers int `yaml:"persistWorkers"`

	StorageRoots []string `yaml:"storageRoots"`
	LocalDir     string   `yaml:"localDir"`

	// CatalogDir holds the encrypted recordings index; empty disables it.
	CatalogDir string `yaml:"catalogDir"`

	// MQTTBroker enables the MQTT event sink when non-empty.
	MQTTBroker string `yaml:"mqttBroker"`
	MQTTTopic  string `yaml:"mqttTopic"`

	// StatusAddr enables the HTTP status endpoint when non-empty.
	StatusAddr string `yaml:"statusAddr"`

	LogFile string `yaml:"logFile"`
}

// Default returns the built-in configuration: 640x480 @ 30fps requested,
// 5s pre-event buffer, 5s post-event window, detection every 0.5s.
func Default() *Config {
	return &Config{
		DeviceIndex:              0,
		FrameWidth:               640,
		FrameHeight:              480,
		FPS:                      30,
		BufferSeconds:            5,
		PostEventSeconds:         5,
		DetectionIntervalSeconds: 0.5,
		DetectorMode:             DetectorHTTP,
		DetectorEndpoint:         "http://127.0.0.1:8089/detect",
		MinConfidence:            0.5,
		PersistWorkers:           1,
		StorageRoots:             []string{"/media/pi", "/mnt", "/media", "/Volumes"},
		LocalDir:                 "recordings",
		MQTTTopic:                "seccam/events",
	}
}

// Load builds the configuration. filePath may name a YAML file (empty skips
// it); envFile may name a dotenv file loaded before reading the
// environment. The result is validated.
func Load(filePath, envFile string) (*Config, error) {
	cfg := Default()

	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	} else {
		// Default .env is optional
		_ = godotenv.Load()
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.DeviceIndex = getEnvInt("SECCAM_DEVICE_INDEX", c.DeviceIndex)
	c.FrameWidth = getEnvInt("SECCAM_FRAME_WIDTH", c.FrameWidth)
	c.FrameHeight = getEnvInt("SECCAM_FRAME_HEIGHT", c.FrameHeight)
	c.FPS = getEnvFloat("SECCAM_FPS", c.FPS)
	c.BufferSeconds = getEnvFloat("SECCAM_BUFFER_SECONDS", c.BufferSeconds)
	c.PostEventSeconds = getEnvFloat("SECCAM_POST_EVENT_SECONDS", c.PostEventSeconds)
	c.DetectionIntervalSeconds = getEnvFloat("SECCAM_DETECTION_INTERVAL_SECONDS", c.DetectionIntervalSeconds)
	c.DetectorMode = getEnv("SECCAM_DETECTOR_MODE", c.DetectorMode)
	c.DetectorEndpoint = getEnv("SECCAM_DETECTOR_ENDPOINT", c.DetectorEndpoint)
	c.DetectorFallback = getEnv("SECCAM_DETECTOR_FALLBACK", c.DetectorFallback)
	c.MinConfidence = getEnvFloat("SECCAM_MIN_CONFIDENCE", c.MinConfidence)
	c.PersistWorkers = getEnvInt("SECCAM_PERSIST_WORKERS", c.PersistWorkers)
	if roots := os.Getenv("SECCAM_STORAGE_ROOTS"); roots != "" {
		c.StorageRoots = strings.Split(roots, ":")
	}
	c.LocalDir = getEnv("SECCAM_LOCAL_DIR", c.LocalDir)
	c.CatalogDir = getEnv("SECCAM_CATALOG_DIR", c.CatalogDir)
	c.MQTTBroker = getEnv("SECCAM_MQTT_BROKER", c.MQTTBroker)
	c.MQTTTopic = getEnv("SECCAM_MQTT_TOPIC", c.MQTTTopic)
	c.StatusAddr = getEnv("SECCAM_STATUS_ADDR", c.StatusAddr)
	c.LogFile = getEnv("SECCAM_LOG_FILE", c.LogFile)
}

// Validate checks invariants. Detector mode off without an explicit
// fallback policy is rejected so that running blind is always a deliberate
// operator choice.
func (c *Config) Validate() error {
	if c.DeviceIndex < 0 {
		return fmt.Errorf("deviceIndex must be >= 0, got %d", c.DeviceIndex)
	}
	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		return fmt.Errorf("frame size must be positive, got %dx%d", c.FrameWidth, c.FrameHeight)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be > 0, got %g", c.FPS)
	}
	if c.BufferSeconds <= 0 {
		return fmt.Errorf("bufferSeconds must be > 0, got %g", c.BufferSeconds)
	}
	if c.PostEventSeconds <= 0 {
		return fmt.Errorf("postEventSeconds must be > 0, got %g", c.PostEventSeconds)
	}
	if c.DetectionIntervalSeconds <= 0 {
		return fmt.Errorf("detectionIntervalSeconds must be > 0, got %g", c.DetectionIntervalSeconds)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("minConfidence must be within [0,1], got %g", c.MinConfidence)
	}
	if c.PersistWorkers < 1 {
		return fmt.Errorf("persistWorkers must be >= 1, got %d", c.PersistWorkers)
	}
	if c.LocalDir == "" {
		return fmt.Errorf("localDir must not be empty")
	}
	switch c.DetectorMode {
	case DetectorHTTP:
		if c.DetectorEndpoint == "" {
			return fmt.Errorf("detectorEndpoint required for detector mode %q", DetectorHTTP)
		}
	case DetectorOff:
		if c.DetectorFallback != FallbackRecordAll && c.DetectorFallback != FallbackDisabled {
			return fmt.Errorf("detector mode %q requires detectorFallback %q or %q, got %q",
				DetectorOff, FallbackRecordAll, FallbackDisabled, c.DetectorFallback)
		}
	default:
		return fmt.Errorf("unknown detector mode %q", c.DetectorMode)
	}
	return nil
}

// Capacity returns the ring buffer size: round(fps * bufferSeconds),
// minimum 1. Recomputed after device negotiation replaces FPS.
func (c *Config) Capacity() int {
	n := int(math.Round(c.FPS * c.BufferSeconds))
	if n < 1 {
		n = 1
	}
	return n
}

// DetectionInterval returns the sampling cadence as a duration.
func (c *Config) DetectionInterval() time.Duration {
	return time.Duration(c.DetectionIntervalSeconds * float64(time.Second))
}

// PostEvent returns the post-event window as a duration.
func (c *Config) PostEvent() time.Duration {
	return time.Duration(c.PostEventSeconds * float64(time.Second))
}

// BufferWindow returns the pre-event retention as a duration.
func (c *Config) BufferWindow() time.Duration {
	return time.Duration(c.BufferSeconds * float64(time.Second))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
