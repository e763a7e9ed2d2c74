package handlers

import (
	"net/http"

	"lostfound-ai/internal/item"
	"lostfound-ai/internal/live"
	"lostfound-ai/internal/search"
)

// SearchHandler re-ranks the live list against a query.
type SearchHandler struct {
	view       *live.View
	controller *search.Controller
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(view *live.View, controller *search.Controller) *SearchHandler {
	return &SearchHandler{view: view, controller: controller}
}

// SearchResponse represents the ranked list. Loading is true while the
// query embedding is still pending; clients re-poll to pick up the
// semantic ranking once it lands.
//
// swagger:model SearchResponse
type SearchResponse struct {
	Items   []item.Item `json:"items"`
	Loading bool        `json:"loading"`
}

// ServeHTTP ranks the current item list.
//
// swagger:route GET /api/search searchItems
//
// # Search the item list
//
// Ranks the live item list against the q parameter. mode=semantic uses
// embedding similarity once the debounced query embedding is ready and
// falls back to substring matching until then; any other mode is plain
// substring matching over name tag, description and location.
//
// ---
// produces:
// - application/json
// parameters:
//   - in: query
//     name: q
//     type: string
//     required: false
//   - in: query
//     name: mode
//     type: string
//     description: '"keyword" (default) or "semantic"'
//     required: false
//
// responses:
//
//	'200':
//	  description: Ranked items and the loading flag
//	  schema:
//	    "$ref": "#/definitions/SearchResponse"
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	query := r.URL.Query()
	h.controller.SetMode(search.ParseMode(query.Get("mode")))
	h.controller.SetQuery(query.Get("q"))

	writeJSON(w, http.StatusOK, SearchResponse{
		Items:   h.controller.Rank(h.view.Items()),
		Loading: h.controller.Loading(),
	})
}
