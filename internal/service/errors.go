package service

import "errors"

var (
	// ErrAssistantNotConfigured means no generative-AI key was provided.
	ErrAssistantNotConfigured = errors.New("gemini API key not configured")
	ErrEmptyMessage           = errors.New("message required")
	// ErrUpstream wraps every failure talking to the generative-AI service.
	ErrUpstream = errors.New("gemini API error")
)
