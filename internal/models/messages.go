package models

// Message types sent to subscribers
const (
	MessageTypeInit          = "init"
	MessageTypeFrame         = "frame"
	MessageTypeStatus        = "status"
	MessageTypeError         = "error"
	MessageTypeModelSwitched = "model_switched"
)

// Command is an inbound subscriber request
type Command struct {
	Command   string `json:"command"`
	ModelPath string `json:"model_path,omitempty"`
	CameraID  *int   `json:"camera_id,omitempty"`
}

// ModelInfo describes a selectable detection model
type ModelInfo struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// InitMessage answers the init command
type InitMessage struct {
	Type            string      `json:"type"`
	Cameras         int         `json:"cameras"`
	CameraIDs       []int       `json:"camera_ids"`
	AvailableModels []ModelInfo `json:"available_models"`
	CurrentModel    string      `json:"current_model"`
}

// FrameMessage is the per-tick camera output. Frame holds the encoded image,
// which encoding/json emits as base64.
type FrameMessage struct {
	Type       string           `json:"type"`
	CameraID   int              `json:"camera_id"`
	Frame      []byte           `json:"frame"`
	Detections *DetectionResult `json:"detections"`
	Timestamp  string           `json:"timestamp"`
}

// StatusMessage carries a status or error notice
type StatusMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ModelSwitchedMessage confirms a successful detector swap
type ModelSwitchedMessage struct {
	Type      string `json:"type"`
	ModelPath string `json:"model_path"`
	Message   string `json:"message"`
}

// AlertEvent is published to the message bus on an alert edge
type AlertEvent struct {
	WorkerID    string            `json:"worker_id"`
	CameraID    int               `json:"camera_id"`
	Message     string            `json:"message"`
	Weapons     []WeaponDetection `json:"weapons"`
	PeopleCount int               `json:"people_count"`
	ThreatLevel Score             `json:"threat_level"`
	Timestamp   string            `json:"timestamp"`
}

func NewStatus(message string) StatusMessage {
	return StatusMessage{Type: MessageTypeStatus, Message: message}
}

func NewError(message string) StatusMessage {
	return StatusMessage{Type: MessageTypeError, Message: message}
}
