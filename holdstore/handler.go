// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package holdstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/parley-chat/parley/lib/clock"
	"github.com/parley-chat/parley/lib/wire"
)

const maxRequestBodySize = 1 << 20

// appendRequest is the body of POST /messages/. Timestamp, type, and
// metadata are optional.
type appendRequest struct {
	Sender      string         `json:"sender"`
	Destination string         `json:"destination"`
	Message     *string        `json:"message"`
	Timestamp   string         `json:"timestamp"`
	Type        string         `json:"type"`
	Metadata    map[string]any `json:"metadata"`
}

// StatusResponse answers POST /messages/ and GET /health.
type StatusResponse struct {
	Status string `json:"status"`
}

// DrainResponse answers GET /messages/{handle}.
type DrainResponse struct {
	Messages []wire.Message `json:"messages"`
}

// Handler serves the holding store HTTP API over a Store:
//
//	POST /messages/          append one message
//	GET  /messages/{handle}  drain the handle's queue
//	GET  /health             liveness
type Handler struct {
	store  Store
	clock  clock.Clock
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewHandler builds the API. A nil clock means clock.Real().
func NewHandler(store Store, clk clock.Clock, logger *slog.Logger) *Handler {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{store: store, clock: clk, logger: logger, mux: http.NewServeMux()}
	h.mux.HandleFunc("POST /messages/", h.handleAppend)
	h.mux.HandleFunc("GET /messages/{handle}", h.handleDrain)
	h.mux.HandleFunc("GET /health", h.handleHealth)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleAppend(w http.ResponseWriter, r *http.Request) {
	var request appendRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	if err := decoder.Decode(&request); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			h.sendError(w, http.StatusRequestEntityTooLarge, "request body exceeds %d bytes", maxBytes.Limit)
			return
		}
		h.sendError(w, http.StatusBadRequest, "invalid JSON body: %v", err)
		return
	}
	if request.Message == nil {
		h.sendError(w, http.StatusUnprocessableEntity, "message is required")
		return
	}
	kind, err := wire.ParseKind(request.Type)
	if err != nil {
		h.sendError(w, http.StatusUnprocessableEntity, "%v", err)
		return
	}

	message := wire.NewMessage(request.Sender, request.Destination, *request.Message, kind, request.Metadata, h.clock.Now())
	if request.Timestamp != "" {
		message.Timestamp = request.Timestamp
	}
	if err := message.Validate(); err != nil {
		h.sendError(w, http.StatusUnprocessableEntity, "%v", err)
		return
	}

	if err := h.store.Append(r.Context(), message); err != nil {
		h.logger.Error("append failed", "destination", message.Destination, "error", err)
		h.sendError(w, http.StatusServiceUnavailable, "storing message: %v", err)
		return
	}
	h.logger.Debug("message stored", "sender", message.Sender, "destination", message.Destination, "type", message.Kind)
	h.writeJSON(w, StatusResponse{Status: "stored"})
}

func (h *Handler) handleDrain(w http.ResponseWriter, r *http.Request) {
	handle := r.PathValue("handle")
	messages, err := h.store.Drain(r.Context(), handle)
	if err != nil {
		h.logger.Error("drain failed", "handle", handle, "error", err)
		h.sendError(w, http.StatusServiceUnavailable, "retrieving messages: %v", err)
		return
	}
	if messages == nil {
		messages = []wire.Message{}
	}
	h.logger.Debug("messages drained", "handle", handle, "count", len(messages))
	h.writeJSON(w, DrainResponse{Messages: messages})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, StatusResponse{Status: "ok"})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) sendError(w http.ResponseWriter, status int, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: fmt.Sprintf(format, args...)}); err != nil {
		h.logger.Warn("writing JSON error response", "error", err, "status", status)
	}
}

// writeJSON logs encoding failures; a client that went away cannot be
// sent anything better.
func (h *Handler) writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(value); err != nil {
		h.logger.Warn("writing JSON response", "error", err)
	}
}
