package handlers

import (
	"net/http"
	"strconv"

	"librotek/service"
	"librotek/store"
)

const defaultReportLimit = 10

// ReportHandler serves the admin analytics endpoints.
type ReportHandler struct {
	Store store.Store
	Orch  *service.Orchestrator
}

func NewReportHandler(st store.Store, orch *service.Orchestrator) *ReportHandler {
	return &ReportHandler{Store: st, Orch: orch}
}

func reportLimit(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			return n
		}
	}
	return defaultReportLimit
}

func (h *ReportHandler) MostBorrowed(w http.ResponseWriter, r *http.Request) {
	books, err := h.Store.MostBorrowedBooks(r.Context(), reportLimit(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, books)
}

func (h *ReportHandler) HighestRated(w http.ResponseWriter, r *http.Request) {
	books, err := h.Store.HighestRatedBooks(r.Context(), reportLimit(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, books)
}

// Consistency reports books whose catalog status disagrees with the
// ledger. Empty means healthy.
func (h *ReportHandler) Consistency(w http.ResponseWriter, r *http.Request) {
	drift, err := h.Orch.ConsistencyReport(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	if drift == nil {
		drift = []service.DriftEntry{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"consistent": len(drift) == 0,
		"drift":      drift,
	})
}
