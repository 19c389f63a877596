package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Application
	Version     string
	Environment string
	WorkerID    string
	Port        int
	LogLevel    string

	// Logdy (lightweight web log viewer)
	LogdyEnabled bool
	LogdyHost    string
	LogdyPort    int

	// Cameras
	// Camera count is a startup parameter; ids default to 0..CameraCount-1
	CameraCount     int
	CameraIDs       []int
	FrameWidth      int
	FrameHeight     int
	JPEGQuality     int
	TickInterval    time.Duration
	FrameRetryDelay time.Duration

	// Frame skip: run full detection on every Nth tick, re-emit the last result otherwise
	FrameSkip int

	// Detection
	ModelPath           string
	ModelsDir           string
	DetectTimeout       time.Duration
	PersonMinConfidence float64
	ObjectMinConfidence float64
	YOLOInputSize       int
	YOLONMSThreshold    float64
	YOLOInstances       int

	// Temporal confirmation window
	ConfirmWindowTicks int
	ConfirmMaxAge      time.Duration // 0 disables the wall-clock bound

	// Alerting
	AlertDecay       time.Duration
	ThreatTuningFile string

	// NATS (alert edge events), disabled when NatsURL is empty
	NatsURL            string
	NatsConnectTimeout time.Duration
	NatsReconnectWait  time.Duration
	NatsMaxReconnects  int
	AlertsSubject      string
	AlertsCooldown     time.Duration

	// WebSocket subscribers
	WSWriteTimeout time.Duration
	WSPingInterval time.Duration
	WSPongTimeout  time.Duration
	WSReadLimit    int64
	WSSendQueue    int

	// Swagger Configuration
	SwaggerHost string

	// Graceful Shutdown
	ShutdownTimeout time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found or error loading .env file, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	cameraCount := getEnvInt("CAMERA_COUNT", 3)

	return &Config{
		// Application
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		WorkerID:    getEnv("WORKER_ID", "sentinel-1"),
		Port:        getEnvInt("PORT", 8765),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Logdy
		LogdyEnabled: getEnvBool("LOGDY_ENABLED", false),
		LogdyHost:    getEnv("LOGDY_HOST", "localhost"),
		LogdyPort:    getEnvInt("LOGDY_PORT", 8080),

		// Cameras
		CameraCount:     cameraCount,
		CameraIDs:       getEnvIntList("CAMERA_IDS", defaultCameraIDs(cameraCount)),
		FrameWidth:      getEnvInt("FRAME_WIDTH", 640),
		FrameHeight:     getEnvInt("FRAME_HEIGHT", 480),
		JPEGQuality:     getEnvInt("JPEG_QUALITY", 85),
		TickInterval:    getEnvDuration("TICK_INTERVAL", 16*time.Millisecond), // ~60 FPS
		FrameRetryDelay: getEnvDuration("FRAME_RETRY_DELAY", 100*time.Millisecond),
		FrameSkip:       getEnvInt("FRAME_SKIP", 2),

		// Detection
		ModelPath:           getEnv("MODEL_PATH", "models/yolov8n.onnx"),
		ModelsDir:           getEnv("MODELS_DIR", "models"),
		DetectTimeout:       getEnvDuration("DETECT_TIMEOUT", 2*time.Second),
		PersonMinConfidence: getEnvFloat("PERSON_MIN_CONFIDENCE", 0.5),
		ObjectMinConfidence: getEnvFloat("OBJECT_MIN_CONFIDENCE", 0.5),
		YOLOInputSize:       getEnvInt("YOLO_INPUT_SIZE", 640),
		YOLONMSThreshold:    getEnvFloat("YOLO_NMS_THRESHOLD", 0.45),
		YOLOInstances:       getEnvInt("YOLO_INSTANCES", cameraCount),

		// Temporal confirmation
		ConfirmWindowTicks: getEnvInt("CONFIRM_WINDOW_TICKS", 3),
		ConfirmMaxAge:      getEnvDuration("CONFIRM_MAX_AGE", 0),

		// Alerting
		AlertDecay:       getEnvDuration("ALERT_DECAY", 5*time.Second),
		ThreatTuningFile: getEnv("THREAT_TUNING_FILE", ""),

		// NATS
		NatsURL:            getEnv("NATS_URL", ""),
		NatsConnectTimeout: getEnvDuration("NATS_CONNECT_TIMEOUT", 10*time.Second),
		NatsReconnectWait:  getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		NatsMaxReconnects:  getEnvInt("NATS_MAX_RECONNECTS", -1), // -1 = unlimited
		AlertsSubject:      getEnv("ALERTS_SUBJECT", "sentinel.alerts"),
		AlertsCooldown:     getEnvDuration("ALERTS_COOLDOWN", 10*time.Second),

		// WebSocket
		WSWriteTimeout: getEnvDuration("WS_WRITE_TIMEOUT", 2*time.Second),
		WSPingInterval: getEnvDuration("WS_PING_INTERVAL", 30*time.Second),
		WSPongTimeout:  getEnvDuration("WS_PONG_TIMEOUT", 60*time.Second),
		WSReadLimit:    int64(getEnvInt("WS_READ_LIMIT", 64*1024)),
		WSSendQueue:    getEnvInt("WS_SEND_QUEUE", 32),

		SwaggerHost: getEnv("SWAGGER_HOST", "localhost:8765"),

		// Graceful Shutdown
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// Validate rejects configurations the worker cannot start with.
func (c *Config) Validate() error {
	if len(c.CameraIDs) == 0 {
		return fmt.Errorf("at least one camera is required")
	}
	seen := make(map[int]struct{}, len(c.CameraIDs))
	for _, id := range c.CameraIDs {
		if id < 0 {
			return fmt.Errorf("camera id %d is negative", id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("camera id %d is listed twice", id)
		}
		seen[id] = struct{}{}
	}
	if c.FrameSkip < 1 {
		return fmt.Errorf("FRAME_SKIP must be >= 1, got %d", c.FrameSkip)
	}
	if c.ConfirmWindowTicks < 1 {
		return fmt.Errorf("CONFIRM_WINDOW_TICKS must be >= 1, got %d", c.ConfirmWindowTicks)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("JPEG_QUALITY must be within 1-100, got %d", c.JPEGQuality)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT %d is out of range", c.Port)
	}
	if c.AlertDecay <= 0 {
		return fmt.Errorf("ALERT_DECAY must be positive")
	}
	return nil
}

func defaultCameraIDs(n int) []int {
	ids := make([]int, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, i)
	}
	return ids
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvIntList parses a comma separated list such as "0,2,4".
// A malformed entry discards the whole value in favour of the default.
func getEnvIntList(key string, defaultValue []int) []int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			log.Warn().Str("key", key).Str("value", value).Msg("Invalid integer list, using default")
			return defaultValue
		}
		out = append(out, n)
	}
	return out
}
