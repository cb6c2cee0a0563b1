package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Addr              string
	MaxUploadBytes    int64
	AllowedExtensions []string

	// Logging
	LogLevel  string
	LogFormat string

	// Store
	StoreBackend string
	StorePath    string

	// Remote detection (Roboflow)
	RoboflowAPIKey     string
	RoboflowURL        string
	RoboflowModel      string
	RoboflowVersion    int
	RoboflowConfidence int
	RoboflowOverlap    int
	RoboflowTimeout    time.Duration
	RoboflowClassMap   map[string][]string

	// Diagnostic stream
	StreamMaxWidth  int
	StreamMaxHeight int
}

const defaultClassMap = "white=White|N0|cue;yellow=N1|N9;blue=N2|N10;red=N3|N11;purple=N4|N12;orange=N5|N13;green=N6|N14;brown=N7|N15;black=N8"

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Server
		Addr:              getEnv("ADDR", ":5001"),
		MaxUploadBytes:    int64(getEnvInt("MAX_UPLOAD_BYTES", 2*1024*1024)),
		AllowedExtensions: ParseList(getEnv("ALLOWED_EXTENSIONS", ".jpg,.jpeg,.png")),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		// Store
		StoreBackend: getEnv("STORE_BACKEND", "bbolt"),
		StorePath:    getEnv("STORE_PATH", "cuesight.db"),

		// Remote detection
		RoboflowAPIKey:     getEnv("ROBOFLOW_API_KEY", ""),
		RoboflowURL:        getEnv("ROBOFLOW_URL", "https://detect.roboflow.com"),
		RoboflowModel:      getEnv("ROBOFLOW_MODEL", "billiarddet-kyjmh"),
		RoboflowVersion:    getEnvInt("ROBOFLOW_VERSION", 3),
		RoboflowConfidence: getEnvInt("ROBOFLOW_CONFIDENCE", 20),
		RoboflowOverlap:    getEnvInt("ROBOFLOW_OVERLAP", 30),
		RoboflowTimeout:    time.Duration(getEnvInt("ROBOFLOW_TIMEOUT_SECONDS", 30)) * time.Second,
		RoboflowClassMap:   ParseClassMap(getEnv("ROBOFLOW_CLASS_MAP", defaultClassMap)),

		// Diagnostic stream
		StreamMaxWidth:  getEnvInt("STREAM_MAX_WIDTH", 1280),
		StreamMaxHeight: getEnvInt("STREAM_MAX_HEIGHT", 720),
	}
}

// RemoteDetection reports whether a hosted model is configured.
func (c *Config) RemoteDetection() bool {
	return c.RoboflowAPIKey != ""
}

// ParseList splits a comma separated list, lowercasing and trimming entries.
func ParseList(value string) []string {
	items := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// ParseClassMap parses "color=label|label;color=label" into a color to
// labels map. Colors are lowercased; labels keep their case.
func ParseClassMap(value string) map[string][]string {
	m := make(map[string][]string)
	for _, entry := range strings.Split(value, ";") {
		color, labels, ok := strings.Cut(entry, "=")
		color = strings.ToLower(strings.TrimSpace(color))
		if !ok || color == "" {
			continue
		}

		for _, l := range strings.Split(labels, "|") {
			if l = strings.TrimSpace(l); l != "" {
				m[color] = append(m[color], l)
			}
		}
	}
	return m
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
