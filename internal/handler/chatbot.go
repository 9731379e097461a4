package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/cvewatch/cve-dashboard/internal/service"
)

type ChatHandler struct {
	Assistant *service.Assistant
	Log       *zap.Logger
}

func NewChatHandler(a *service.Assistant, log *zap.Logger) *ChatHandler {
	return &ChatHandler{Assistant: a, Log: log}
}

type chatReq struct {
	Message string `json:"message"`
}

func (h *ChatHandler) Chat(c echo.Context) error {
	var req chatReq
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request body")
	}

	reply, err := h.Assistant.Ask(c.Request().Context(), req.Message)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, reply)
	case errors.Is(err, service.ErrAssistantNotConfigured):
		return jsonError(c, http.StatusInternalServerError, "Gemini API key not configured")
	case errors.Is(err, service.ErrEmptyMessage):
		return jsonError(c, http.StatusBadRequest, "Message required")
	case errors.Is(err, service.ErrUpstream):
		h.Log.Error("gemini request failed", zap.Error(err))
		return jsonError(c, http.StatusInternalServerError, "Gemini API error")
	default:
		return serverError(c, h.Log, "chatbot failed", err)
	}
}
