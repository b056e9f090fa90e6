package httpapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jmgress/smartrecover/internal/apperr"
)

var validate = validator.New()

// decodeValidated decodes r's body into v, then runs struct-tag validation
// against it (spec §4.1's required-field/enum checks), surfacing either
// failure as invalid-input.
func decodeValidated(r *http.Request, v any) error {
	if err := decodeJSON(r, v); err != nil {
		return err
	}
	if err := validate.Struct(v); err != nil {
		return apperr.Wrap(apperr.InvalidInput, "validate request body", err)
	}
	return nil
}

// updateStatusRequest is PUT /incidents/{id}/status's body.
type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=open investigating resolved"`
}

// resolveRequest is POST /resolve's body.
type resolveRequest struct {
	IncidentID string `json:"incident_id" validate:"required"`
	UserQuery  string `json:"user_query" validate:"required"`
}

// excludeItemRequest is POST /incidents/{id}/exclude-item's body.
type excludeItemRequest struct {
	ItemID   string `json:"item_id" validate:"required"`
	Category string `json:"category" validate:"required,oneof=similar_incidents knowledge_documents changes logs events"`
}

// chatStreamRequest is POST /chat/stream's body.
type chatStreamRequest struct {
	IncidentID         string               `json:"incident_id" validate:"required"`
	Message            string               `json:"message" validate:"required"`
	ConversationHistory []string            `json:"conversation_history"`
	ExcludedItems      []excludeItemRequest `json:"excluded_items"`
}

// putPromptRequest is PUT /admin/agent-prompts/{agent}'s body.
type putPromptRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

// putLLMConfigRequest is PUT /admin/llm-config's body.
type putLLMConfigRequest struct {
	Provider string `json:"provider" validate:"required,oneof=openai google anthropic ollama"`
}

// putLoggingConfigRequest is PUT /admin/logging-config's body.
type putLoggingConfigRequest struct {
	Level string `json:"level" validate:"required,oneof=debug info warning error critical"`
}
