package logging

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/logdyhq/logdy-core/logdy"
	"github.com/rs/zerolog/log"

	"sentinel-worker-go/internal/config"
)

// lineWriter forwards each complete log line to an embedded log viewer
type lineWriter struct {
	emit func(line string) error
}

func (w *lineWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(p, []byte("\n")) {
		line = bytes.TrimRight(line, "\r")
		if len(line) == 0 {
			continue
		}
		if err := w.emit(string(line)); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// StartLogdy serves the Logdy web UI on LOGDY_HOST:LOGDY_PORT and returns a
// writer to tee worker logs into it, plus the UI address.
func StartLogdy(cfg *config.Config) (io.Writer, string, error) {
	if cfg.LogdyPort <= 0 || cfg.LogdyPort > 65535 {
		return nil, "", fmt.Errorf("LOGDY_PORT %d is out of range", cfg.LogdyPort)
	}
	port := strconv.Itoa(cfg.LogdyPort)

	ld := logdy.InitializeLogdy(logdy.Config{
		ServerIp:   cfg.LogdyHost,
		ServerPort: port,
	}, nil)

	url := "http://" + net.JoinHostPort(cfg.LogdyHost, port)
	log.Info().Str("url", url).Str("worker_id", cfg.WorkerID).Msg("Logdy UI available")
	return &lineWriter{emit: ld.LogString}, url, nil
}
