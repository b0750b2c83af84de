package settings

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lunaugust/plantracker/internal/middleware"
	"github.com/lunaugust/plantracker/internal/telemetry/tracing"
	"github.com/lunaugust/plantracker/pkg"

	log "github.com/sirupsen/logrus"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
	}
}

type languageResponse struct {
	Language string `json:"language"`
}

func (handler *Handler) HandleGetLanguage(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "settingsHandler.getLanguage")
	defer span.End()

	scope := middleware.ScopeFromContext(ctx)
	respBytes, err := json.Marshal(languageResponse{
		Language: handler.service.Language(ctx, scope),
	})
	if err != nil {
		http.Error(w, "failed to get language", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respBytes)
}

func (handler *Handler) HandleSetLanguage(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "settingsHandler.setLanguage")
	defer span.End()

	var req languageResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("set language, unmarshal json params: %s", err)
		http.Error(w, "set language failed", http.StatusBadRequest)
		return
	}

	scope := middleware.ScopeFromContext(ctx)
	if err := handler.service.SetLanguage(ctx, scope, req.Language); err != nil {
		if errors.Is(err, ErrUnsupportedLanguage) {
			http.Error(w, "unsupported language", http.StatusBadRequest)
			return
		}
		log.Errorf("set language [scope %s]: %s", scope, err)
		http.Error(w, "set language failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteTextResponseOK(w, "updated")
}
