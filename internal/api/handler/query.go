package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/airquery/airquery/internal/agent"
	"github.com/airquery/airquery/internal/api/middleware"
	"github.com/airquery/airquery/internal/api/models"
	"github.com/airquery/airquery/internal/api/response"
)

// Query limits.
const (
	MaxPromptLength = 2000
	maxQueryBody    = 16 << 10
)

// Asker answers free-text prompts.
type Asker interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// QueryHandler serves the conversational endpoints.
type QueryHandler struct {
	asker  Asker
	logger zerolog.Logger
}

// NewQueryHandler creates a new QueryHandler. A nil asker answers 503.
func NewQueryHandler(asker Asker, logger zerolog.Logger) *QueryHandler {
	return &QueryHandler{asker: asker, logger: logger}
}

// Root handles GET /.
func (h *QueryHandler) Root(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.RootStatus{Status: models.AgentOnline})
}

// Query handles POST /query. The prompt comes from the prompt query
// parameter or, when that is absent, a JSON body {"prompt": "..."}.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	if h.asker == nil {
		response.ServiceUnavailable(w, r, "the conversational agent is not configured")
		return
	}

	prompt, err := promptFrom(w, r)
	if err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	if strings.TrimSpace(prompt) == "" {
		response.BadRequest(w, r, "prompt is required", []models.FieldError{
			{Field: "prompt", Message: "must not be empty", Code: models.CodeRequired},
		})
		return
	}
	if utf8.RuneCountInString(prompt) > MaxPromptLength {
		response.BadRequest(w, r, "prompt is too long", []models.FieldError{
			{Field: "prompt", Message: "must be at most 2000 characters", Code: models.CodeOutOfRange},
		})
		return
	}

	answer, err := h.asker.Ask(r.Context(), prompt)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("query failed")

		switch {
		case errors.Is(err, agent.ErrEmptyPrompt):
			response.BadRequest(w, r, "prompt is required", nil)
		case errors.Is(err, agent.ErrModel), errors.Is(err, agent.ErrTooManyToolRounds):
			response.BadGateway(w, r, "the language model could not answer the prompt")
		default:
			response.InternalError(w, r, "failed to answer the prompt")
		}
		return
	}

	response.JSON(w, r, http.StatusOK, models.QueryResponse{Response: answer})
}

func promptFrom(w http.ResponseWriter, r *http.Request) (string, error) {
	if prompt := r.URL.Query().Get("prompt"); prompt != "" {
		return prompt, nil
	}
	if r.Body == nil || r.Body == http.NoBody {
		return "", nil
	}

	var req models.QueryRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBody)).Decode(&req)
	if errors.Is(err, io.EOF) {
		return "", nil
	}
	if err != nil {
		return "", errors.New("request body must be a JSON object with a prompt field")
	}
	return req.Prompt, nil
}
