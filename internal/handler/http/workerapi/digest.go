package workerapi

import (
	"net/http"
	"time"

	"github.com/ossfeed/coordinator/internal/domain/entity"
	"github.com/ossfeed/coordinator/internal/handler/http/respond"
	"github.com/ossfeed/coordinator/internal/usecase/digest"
)

// Digest exposes the daily-summary surface atop a digest.Service.
type Digest struct {
	Svc *digest.Service
}

func parseDigestQuery(r *http.Request) (date time.Time, language entity.Language, ok bool) {
	q := r.URL.Query()
	dateStr := q.Get("target_date")
	if dateStr == "" {
		dateStr = q.Get("date")
	}
	parsed, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return time.Time{}, "", false
	}
	language = entity.Language(q.Get("language"))
	if language == "" {
		language = entity.LanguageChinese
	}
	return parsed, language, true
}

// FeedsNeedingSummary handles GET get_feeds_needing_summary.
func (h Digest) FeedsNeedingSummary(w http.ResponseWriter, r *http.Request) {
	date, language, ok := parseDigestQuery(r)
	if !ok {
		respond.SafeError(w, http.StatusBadRequest, errInvalidTargetDate)
		return
	}

	feedIDs, err := h.Svc.GetFeedsNeedingSummary(r.Context(), date, language)
	if err != nil {
		writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"feed_ids": feedIDs, "language": language})
}

// ProcessFeedSummary handles GET process_feed_summary.
func (h Digest) ProcessFeedSummary(w http.ResponseWriter, r *http.Request) {
	feedID := r.URL.Query().Get("feed_id")
	if feedID == "" {
		respond.SafeError(w, http.StatusBadRequest, errMissingFeedID)
		return
	}
	date, language, ok := parseDigestQuery(r)
	if !ok {
		respond.SafeError(w, http.StatusBadRequest, errInvalidTargetDate)
		return
	}

	started := time.Now()
	summary, err := h.Svc.GenerateFeedSummary(r.Context(), feedID, date, language)
	if err != nil {
		writeError(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{
		"result":          summary,
		"status":          string(summary.Status),
		"processing_time": time.Since(started).Seconds(),
	})
}

var (
	errInvalidTargetDate = &respond.AppError{Code: http.StatusBadRequest, UserMsg: "target_date must be in YYYY-MM-DD format"}
	errMissingFeedID     = &respond.AppError{Code: http.StatusBadRequest, UserMsg: "feed_id is required"}
)
