package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sentinel-worker-go/internal/logging"
	"sentinel-worker-go/internal/services/camera"
)

// CameraRegistry is the read side of the camera session registry
type CameraRegistry interface {
	CameraIDs() []int
	IsConfigured(id int) bool
	Active() []int
	Stats() []camera.SessionStats
}

// PreviewStreamer serves the MJPEG preview of a camera
type PreviewStreamer interface {
	StreamMJPEGHTTP(w http.ResponseWriter, r *http.Request, cameraID int)
}

type CameraHandler struct {
	cameras  CameraRegistry
	previews PreviewStreamer
}

func NewCameraHandler(cameras CameraRegistry, previews PreviewStreamer) *CameraHandler {
	return &CameraHandler{
		cameras:  cameras,
		previews: previews,
	}
}

type ErrorResponse struct {
	Error string `json:"error" example:"unknown camera"`
}

type CameraListResponse struct {
	Configured []int                 `json:"configured"`
	Active     []int                 `json:"active"`
	Sessions   []camera.SessionStats `json:"sessions"`
}

// ListCameras lists configured cameras and live sessions
// @Summary List cameras
// @Description List configured camera ids and the stats of running sessions
// @Tags cameras
// @Produce json
// @Success 200 {object} CameraListResponse
// @Router /cameras [get]
func (h *CameraHandler) ListCameras(c *gin.Context) {
	c.JSON(http.StatusOK, CameraListResponse{
		Configured: h.cameras.CameraIDs(),
		Active:     h.cameras.Active(),
		Sessions:   h.cameras.Stats(),
	})
}

// StreamMJPEG streams the annotated preview of a camera
// @Summary MJPEG preview
// @Description Stream annotated frames of a running camera as multipart/x-mixed-replace
// @Tags cameras
// @Produce multipart/x-mixed-replace
// @Param id path int true "Camera ID"
// @Success 200
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /cameras/{id}/mjpeg [get]
func (h *CameraHandler) StreamMJPEG(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "camera id must be an integer"})
		return
	}
	if !h.cameras.IsConfigured(id) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: camera.ErrUnknownCamera.Error()})
		return
	}

	logging.Debug(c).Int("camera_id", id).Msg("MJPEG preview requested")
	h.previews.StreamMJPEGHTTP(c.Writer, c.Request, id)
}
