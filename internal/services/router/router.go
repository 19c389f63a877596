package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sentinel-worker-go/internal/models"
	"sentinel-worker-go/internal/services/hub"
)

// ErrUnknownCommand is returned for commands outside the protocol
var ErrUnknownCommand = errors.New("unknown command")

// Canonical command names
const (
	CmdInit         = "init"
	CmdStartCameras = "start-cameras"
	CmdStopCameras  = "stop-cameras"
	CmdStartCamera  = "start-camera"
	CmdStopCamera   = "stop-camera"
	CmdSwitchModel  = "switch-model"
)

// legacy spellings accepted from older viewers
var aliases = map[string]string{
	"innit":         CmdInit,
	"start_cameras": CmdStartCameras,
	"start_all":     CmdStartCameras,
	"stop_cameras":  CmdStopCameras,
	"stop_all":      CmdStopCameras,
	"start_camera":  CmdStartCamera,
	"stop_camera":   CmdStopCamera,
	"switch_model":  CmdSwitchModel,
}

// Cameras is the session registry as seen by the router
type Cameras interface {
	CameraIDs() []int
	Start(id int) (bool, error)
	StartAll() int
	Stop(ctx context.Context, id int) (bool, error)
	StopAll(ctx context.Context) error
}

// Models is the swappable detector reference
type Models interface {
	CurrentPath() string
	Switch(ctx context.Context, path string) error
}

// Broadcaster notifies every subscriber
type Broadcaster interface {
	Broadcast(msg interface{})
}

// CatalogFunc lists the selectable models given the active path
type CatalogFunc func(current string) []models.ModelInfo

type Config struct {
	StopTimeout   time.Duration
	SwitchTimeout time.Duration
}

// Router parses subscriber commands and drives the camera registry and the
// detector reference. It is the only writer of either.
type Router struct {
	cfg     Config
	cameras Cameras
	models  Models
	catalog CatalogFunc
	out     Broadcaster
	logger  zerolog.Logger
}

func New(cfg Config, cameras Cameras, m Models, catalog CatalogFunc, out Broadcaster, logger zerolog.Logger) *Router {
	return &Router{
		cfg:     cfg,
		cameras: cameras,
		models:  m,
		catalog: catalog,
		out:     out,
		logger:  logger,
	}
}

// HandleCommand implements hub.CommandHandler
func (r *Router) HandleCommand(ctx context.Context, sub *hub.Subscriber, data []byte) {
	reply := r.Handle(ctx, data)
	if reply == nil {
		return
	}
	if err := sub.SendJSON(reply); err != nil {
		r.logger.Debug().Err(err).Str("subscriber_id", sub.ID).Msg("Failed to send reply")
	}
}

// Handle executes one raw command and returns the reply for the sender
func (r *Router) Handle(ctx context.Context, data []byte) interface{} {
	var cmd models.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		r.logger.Warn().Err(err).Msg("Malformed command")
		return models.NewError("malformed command: " + err.Error())
	}

	name := Normalize(cmd.Command)
	r.logger.Debug().Str("command", cmd.Command).Str("normalized", name).Msg("Command received")

	switch name {
	case CmdInit:
		return r.initReply(cmd.Command)
	case CmdStartCameras:
		n := r.cameras.StartAll()
		return models.NewStatus(fmt.Sprintf("Started %d cameras", n))
	case CmdStopCameras:
		return r.stopAll(ctx)
	case CmdStartCamera:
		return r.startCamera(cmd)
	case CmdStopCamera:
		return r.stopCamera(ctx, cmd)
	case CmdSwitchModel:
		return r.switchModel(ctx, cmd)
	default:
		err := fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Command)
		return models.NewError(err.Error())
	}
}

// Normalize maps legacy spellings onto canonical command names
func Normalize(command string) string {
	c := strings.TrimSpace(command)
	if canonical, ok := aliases[c]; ok {
		return canonical
	}
	return c
}

func (r *Router) initReply(requested string) models.InitMessage {
	ids := r.cameras.CameraIDs()
	current := r.models.CurrentPath()

	// legacy viewers match the reply type against the command they sent
	msgType := models.MessageTypeInit
	if strings.TrimSpace(requested) == "innit" {
		msgType = "innit"
	}

	available := r.catalog(current)
	if available == nil {
		available = []models.ModelInfo{}
	}
	return models.InitMessage{
		Type:            msgType,
		Cameras:         len(ids),
		CameraIDs:       ids,
		AvailableModels: available,
		CurrentModel:    current,
	}
}

func (r *Router) stopAll(ctx context.Context) interface{} {
	if r.cfg.StopTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.StopTimeout)
		defer cancel()
	}
	if err := r.cameras.StopAll(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("Cameras did not release in time")
	}
	r.logger.Info().Msg("Stopped all cameras")
	return models.NewStatus("All cameras stopped")
}

// SubscribersGone stops every camera once no viewer is left. It is the
// hub's OnEmpty callback.
func (r *Router) SubscribersGone() {
	r.logger.Info().Msg("Last subscriber left, stopping cameras")
	r.stopAll(context.Background())
}

func (r *Router) startCamera(cmd models.Command) interface{} {
	if cmd.CameraID == nil {
		return models.NewError("camera_id is required")
	}
	id := *cmd.CameraID
	started, err := r.cameras.Start(id)
	if err != nil {
		return models.NewError(err.Error())
	}
	if !started {
		return models.NewStatus(fmt.Sprintf("Camera %d already running", id))
	}
	return models.NewStatus(fmt.Sprintf("Camera %d started", id))
}

func (r *Router) stopCamera(ctx context.Context, cmd models.Command) interface{} {
	if cmd.CameraID == nil {
		return models.NewError("camera_id is required")
	}
	if r.cfg.StopTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.StopTimeout)
		defer cancel()
	}
	id := *cmd.CameraID
	stopped, err := r.cameras.Stop(ctx, id)
	if err != nil {
		return models.NewError(err.Error())
	}
	if !stopped {
		return models.NewStatus(fmt.Sprintf("Camera %d is not running", id))
	}
	return models.NewStatus(fmt.Sprintf("Camera %d stopped", id))
}

func (r *Router) switchModel(ctx context.Context, cmd models.Command) interface{} {
	path := strings.TrimSpace(cmd.ModelPath)
	if path == "" {
		return models.NewError("model_path is required to switch model")
	}

	if r.cfg.SwitchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.SwitchTimeout)
		defer cancel()
	}

	previous := r.models.CurrentPath()
	if err := r.models.Switch(ctx, path); err != nil {
		r.logger.Warn().Err(err).Str("model_path", path).Str("current_model", previous).Msg("Model switch failed")
		return models.NewError(fmt.Sprintf("Failed to switch model: %v", err))
	}

	r.logger.Info().Str("model_path", path).Str("previous_model", previous).Msg("Model switched")
	message := fmt.Sprintf("Switched model to %s", path)
	if r.out != nil {
		r.out.Broadcast(models.NewStatus(message))
	}
	return models.ModelSwitchedMessage{
		Type:      models.MessageTypeModelSwitched,
		ModelPath: path,
		Message:   message,
	}
}
