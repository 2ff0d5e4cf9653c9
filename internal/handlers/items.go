package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"datecreated-fixer/internal/catalog"
	"datecreated-fixer/internal/datefix"
	"datecreated-fixer/internal/indexer"
	"datecreated-fixer/internal/logging"
)

// ItemResponse is a catalog item as returned by the API.
type ItemResponse struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Kind        catalog.Kind `json:"kind"`
	Path        string       `json:"path,omitempty"`
	ParentID    string       `json:"parentId,omitempty"`
	DateCreated *time.Time   `json:"dateCreated,omitempty"`
	BadDate     bool         `json:"badDate"`
}

// GetItem returns one catalog item
func (h *Handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSONError(w, "invalid item id", http.StatusBadRequest)
		return
	}

	item, err := h.catalog.GetItem(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		writeJSONError(w, "item not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("Failed to load item %s: %v", id, err)
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	response := ItemResponse{
		ID:      item.ID.String(),
		Name:    item.Name,
		Kind:    item.Kind,
		Path:    item.Path,
		BadDate: datefix.IsBad(item.DateCreated),
	}
	if item.HasParent() {
		response.ParentID = item.ParentID.String()
	}
	if !item.DateCreated.IsZero() {
		created := item.DateCreated
		response.DateCreated = &created
	}
	writeJSONResponse(w, http.StatusOK, response)
}

// StatsResponse summarizes the catalog and the fixer.
type StatsResponse struct {
	ItemsByKind      map[catalog.Kind]int `json:"itemsByKind"`
	Total            int                  `json:"total"`
	BadDates         int                  `json:"badDates"`
	Threshold        time.Time            `json:"threshold"`
	ReactiveInFlight int                  `json:"reactiveInFlight"`
	Indexing         bool                 `json:"indexing"`
	LastIndexed      *time.Time           `json:"lastIndexed,omitempty"`
	LastScan         *indexer.Result      `json:"lastScan,omitempty"`
}

// GetStats returns catalog statistics
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.catalog.Stats(r.Context(), datefix.Threshold)
	if err != nil {
		logging.Error("Failed to collect stats: %v", err)
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	response := StatsResponse{
		ItemsByKind: stats.ItemsByKind,
		Total:       stats.Total,
		BadDates:    stats.BadDates,
		Threshold:   datefix.Threshold,
		Indexing:    h.indexer.IsIndexing(),
	}
	if h.fixer != nil {
		response.ReactiveInFlight = h.fixer.InFlight()
	}
	if last := h.indexer.LastIndexTime(); !last.IsZero() {
		result := h.indexer.LastResult()
		response.LastIndexed = &last
		response.LastScan = &result
	}

	w.Header().Set("Cache-Control", "no-cache")
	writeJSONResponse(w, http.StatusOK, response)
}
