package workerapi

import (
	"encoding/json"
	"net/http"

	"github.com/ossfeed/coordinator/internal/handler/http/respond"
	"github.com/ossfeed/coordinator/internal/usecase/summarize"
)

// Steps exposes the external step recorder: workers that perform a
// pipeline stage themselves (content save, summary generation,
// vectorization) report coarse per-step progress here instead of through
// the full submit endpoints.
type Steps struct {
	Engine *summarize.Engine
}

type processingStepRequest struct {
	ArticleID    int64  `json:"article_id"`
	Step         string `json:"step"`
	OK           bool   `json:"ok"`
	ErrorMessage string `json:"error_message,omitempty"`
	ContentID    *int64 `json:"content_id,omitempty"`
}

// Update handles POST update_article_processing_step.
func (h Steps) Update(w http.ResponseWriter, r *http.Request) {
	var req processingStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	err := h.Engine.UpdateArticleProcessingStep(r.Context(), req.ArticleID, req.Step, req.OK, req.ErrorMessage,
		summarize.ProcessingStepUpdate{ContentID: req.ContentID})
	if err != nil {
		writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"article_id": req.ArticleID,
		"step":       req.Step,
		"ok":         req.OK,
	})
}
