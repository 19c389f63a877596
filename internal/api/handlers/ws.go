package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type WebSocketHandler struct {
	hub http.Handler
}

func NewWebSocketHandler(hub http.Handler) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// Serve upgrades the request to a subscriber connection
// @Summary Subscriber WebSocket
// @Description Upgrade to the command and frame stream WebSocket
// @Tags stream
// @Success 101
// @Router /ws [get]
func (h *WebSocketHandler) Serve(c *gin.Context) {
	h.hub.ServeHTTP(c.Writer, c.Request)
}
