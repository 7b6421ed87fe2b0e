package consumerapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ossfeed/coordinator/internal/handler/http/respond"
	"github.com/ossfeed/coordinator/internal/usecase/stream"
)

// Stream exposes the summarize/translate transformers as either a
// server-sent-event stream or a single consumed-to-completion response.
type Stream struct {
	Transformer *stream.Transformer
}

type streamRequest struct {
	ArticleID int64  `json:"article_id"`
	UserID    string `json:"user_id,omitempty"`
	Stream    bool   `json:"stream"`
}

type transformFunc func(ctx context.Context, userID string, articleID int64) (<-chan stream.Event, error)

// Summarize handles POST summarize.
func (h Stream) Summarize(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.Transformer.SummarizeArticleStream)
}

// Translate handles POST translate.
func (h Stream) Translate(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.Transformer.TranslateArticleStream)
}

func (h Stream) run(w http.ResponseWriter, r *http.Request, transform transformFunc) {
	var req streamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	events, err := transform(r.Context(), req.UserID, req.ArticleID)
	if err != nil {
		writeError(w, err)
		return
	}

	if req.Stream {
		writeSSE(w, r, events)
		return
	}
	writeConsumed(w, events)
}

func writeSSE(w http.ResponseWriter, r *http.Request, events <-chan stream.Event) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, canFlush := w.(http.Flusher)
	for ev := range events {
		payload, err := json.Marshal(ev.Fields)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
		if canFlush {
			flusher.Flush()
		}
		select {
		case <-r.Context().Done():
			return
		default:
		}
	}
}

// writeConsumed drains the stream to its terminal event and returns the
// complete payload as a single JSON response, for the stream=false path.
func writeConsumed(w http.ResponseWriter, events <-chan stream.Event) {
	var content string
	var titleSummary string
	var translationGroups []string
	var lastErr string
	var finished bool

	for ev := range events {
		switch ev.Type {
		case stream.EventContent:
			if delta, ok := ev.Fields["delta"].(string); ok {
				content += delta
			}
		case stream.EventTitleSummaryContent:
			if c, ok := ev.Fields["content"].(string); ok {
				titleSummary = c
			}
		case stream.EventContentTranslation:
			if c, ok := ev.Fields["content"].(string); ok {
				translationGroups = append(translationGroups, c)
			}
		case stream.EventComplete:
			finished = true
		case stream.EventError:
			if msg, ok := ev.Fields["message"].(string); ok {
				lastErr = msg
			}
		}
	}

	if lastErr != "" {
		respond.JSON(w, http.StatusBadGateway, map[string]any{"error": lastErr})
		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{
		"content":            content,
		"title_summary":      titleSummary,
		"translation_groups": translationGroups,
		"complete":           finished,
	})
}
