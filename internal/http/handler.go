package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/davidbz/howl/internal/domain"
	"github.com/davidbz/howl/internal/observability"
)

// CompletionService is the orchestration surface the handler depends on.
// *domain.Client satisfies it.
type CompletionService interface {
	Call(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error)
	Stats() map[string]domain.ProviderStats
}

// Handler handles HTTP requests.
type Handler struct {
	service  CompletionService
	registry domain.ProviderRegistry
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(service CompletionService, registry domain.ProviderRegistry) *Handler {
	return &Handler{
		service:  service,
		registry: registry,
	}
}

// HandleCompletion processes completion requests.
func (h *Handler) HandleCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Early validation.
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse request.
	var req domain.CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	// An X-Provider header overrides the configured primary for this call.
	if provider := r.Header.Get("X-Provider"); provider != "" {
		req.Provider = provider
	}

	// Inject provider and model into context for downstream logging.
	if req.Provider != "" {
		ctx = observability.WithProvider(ctx, req.Provider)
	}
	ctx = observability.WithModel(ctx, req.Model)

	logger := observability.FromContext(ctx)
	logger.Info("completion request received",
		zap.String("provider", req.Provider),
		zap.String("model", req.Model),
	)

	response, err := h.service.Call(ctx, &req)
	if err != nil {
		logger.Error("completion failed", zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrMissingInput) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	logger.Info("completion finished",
		zap.Bool("success", response.Success),
		zap.String("provider", response.Provider),
		zap.Int("attempts", response.Attempts),
		zap.Int("tokens", response.Usage.TotalTokens),
		zap.Float64("cost", response.Usage.Cost),
	)

	// All-providers-failed is still a structured response. Surface it with a
	// 502 so callers can distinguish it from handler errors.
	status := http.StatusOK
	if !response.Success {
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encodeErr := json.NewEncoder(w).Encode(response)
	if encodeErr != nil {
		logger.Error("failed to encode response", zap.Error(encodeErr))
		return
	}
}

type providerInfo struct {
	Name   string   `json:"name"`
	Models []string `json:"models"`
}

// HandleProviders lists the registered providers and their models.
func (h *Handler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	infos := make([]providerInfo, 0)
	for _, name := range h.registry.List(ctx) {
		info := providerInfo{Name: name, Models: []string{}}
		// Construction failures leave the model list empty; the name is
		// still reported since the router may try it.
		if provider, err := h.registry.Resolve(ctx, name, nil); err == nil {
			if models := provider.ListModels(ctx); models != nil {
				info.Models = models
			}
		}
		infos = append(infos, info)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"providers": infos,
	}); err != nil {
		observability.FromContext(ctx).Error("failed to encode providers", zap.Error(err))
	}
}

// HandleStats returns per-provider call statistics.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.service.Stats()); err != nil {
		observability.FromContext(r.Context()).Error("failed to encode stats", zap.Error(err))
	}
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	}); err != nil {
		// Already written status, can't change it, just log.
		return
	}
}
