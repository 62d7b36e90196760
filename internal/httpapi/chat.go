package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/cortexhub/llmgateway/internal/chatapi"
	"github.com/cortexhub/llmgateway/internal/gwerrors"
)

const maxBodyBytes = 1 << 20 // 1MB, per the teacher's DecodeJSONBody limit

// HandleChatCompletion implements POST /v1/chat/completions (spec §6.1):
// decode the OpenAI-compatible request body directly (no envelope),
// validate it, hand it to the dispatcher, and write back the raw
// normalized response or a mapped error.
func (h *Handlers) HandleChatCompletion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only POST is supported")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req chatapi.Request
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(gwerrors.KindMalformedRequest), "invalid request body: "+err.Error())
		return
	}

	if err := req.Validate(); err != nil {
		h.writeDispatchError(w, err)
		return
	}

	resp, err := h.dispatcher.Dispatch(r.Context(), &req)
	if err != nil {
		h.writeDispatchError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) writeDispatchError(w http.ResponseWriter, err error) {
	kind, ok := gwerrors.KindOf(err)
	if !ok {
		h.logger.Error("unclassified dispatch error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	h.logger.Warn("request failed", zap.String("kind", string(kind)), zap.Error(err))
	writeError(w, statusForKind(kind), string(kind), err.Error())
}
