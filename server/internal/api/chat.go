package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/statusdeck/statusdeck/server/internal/upstream"
)

const maxChatBody = 1 << 20

// chat handles POST /proxy/chat. The request is forwarded as an
// OpenAI-compatible completion and only the first choice is returned.
func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msgs := make([]ChatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if m.Role == "" {
			m.Role = "user"
		}
		msgs = append(msgs, m)
	}
	if len(msgs) == 0 {
		jsonErr(w, http.StatusBadRequest, "messages must not be empty")
		return
	}

	model := req.Model
	if model == "" {
		model = h.cfg.Upstreams.Chat.Model
	}
	body, err := json.Marshal(completionRequest{Model: model, Messages: msgs})
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "encode request")
		return
	}

	resp, err := h.call(r, upstream.Chat, upstream.Target{Method: http.MethodPost, Body: body})
	if err != nil {
		if errors.Is(err, upstream.ErrNotConfigured) {
			jsonErr(w, http.StatusServiceUnavailable, "chat endpoint not configured")
			return
		}
		h.writeUpstreamError(w, upstream.Chat, err)
		return
	}
	if !resp.OK() {
		h.passthrough(w, resp)
		return
	}

	var completion completionResponse
	if err := json.Unmarshal([]byte(resp.Body), &completion); err != nil {
		jsonErr(w, http.StatusBadGateway, "chat reply is not valid JSON")
		return
	}
	if len(completion.Choices) == 0 {
		jsonErr(w, http.StatusBadGateway, "chat reply contained no choices")
		return
	}
	if completion.Model != "" {
		model = completion.Model
	}
	jsonResp(w, http.StatusOK, ChatResponse{
		Reply: completion.Choices[0].Message.Content,
		Model: model,
	})
}
