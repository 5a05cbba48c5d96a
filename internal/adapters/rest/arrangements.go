package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ewilliams-labs/songform/internal/core/domain"
	"github.com/ewilliams-labs/songform/internal/core/services"
)

const arrangementNotFound = "Arrangement not found"

// createArrangementRequest leaves sections nil to seed the timeline from
// the song's analysis; an empty array is an explicit empty timeline.
type createArrangementRequest struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	SongID      string                  `json:"songId"`
	Sections    *domain.SectionTimeline `json:"sections"`
	IsPublic    bool                    `json:"isPublic"`
	Tags        []string                `json:"tags"`
}

type updateArrangementRequest struct {
	Name        *string                 `json:"name"`
	Description *string                 `json:"description"`
	Sections    *domain.SectionTimeline `json:"sections"`
	IsPublic    *bool                   `json:"isPublic"`
	Tags        *[]string               `json:"tags"`
	Version     *int                    `json:"version"`
}

type applySuggestionRequest struct {
	Applied *bool `json:"applied"`
}

// arrangementView adds the derived timeline summary to an arrangement.
type arrangementView struct {
	domain.Arrangement
	Summary domain.TimelineSummary `json:"summary"`
}

func viewOf(a domain.Arrangement) arrangementView {
	return arrangementView{Arrangement: a, Summary: a.Sections.Summarize()}
}

type arrangementResponse struct {
	Message     string          `json:"message,omitempty"`
	Arrangement arrangementView `json:"arrangement"`
}

type arrangementListResponse struct {
	Arrangements []arrangementView `json:"arrangements"`
	Pagination   pagination        `json:"pagination"`
}

// CreateArrangement handles POST /api/arrangements
func (h *Handler) CreateArrangement(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	owner, _ := OwnerFromContext(r.Context())

	var req createArrangementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sections := domain.SeededSections()
	if req.Sections != nil {
		sections = domain.ExplicitSections(*req.Sections)
	}

	a, err := h.arrangements.Create(r.Context(), services.CreateArrangement{
		OwnerID:     owner,
		Name:        req.Name,
		Description: req.Description,
		SongID:      req.SongID,
		Sections:    sections,
		IsPublic:    req.IsPublic,
		Tags:        req.Tags,
	})
	if err != nil {
		h.writeServiceError(w, r, err, "Song not found")
		return
	}

	w.Header().Set("Location", "/api/arrangements/"+a.ID)
	writeJSON(w, http.StatusCreated, arrangementResponse{Message: "Arrangement created successfully", Arrangement: viewOf(a)})
}

// ListArrangements handles GET /api/arrangements
func (h *Handler) ListArrangements(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())
	page, limit, err := pageParams(r)
	if err != nil {
		h.writeServiceError(w, r, err, "")
		return
	}

	result, err := h.arrangements.List(r.Context(), owner, page, limit)
	if err != nil {
		h.writeServiceError(w, r, err, "")
		return
	}

	views := make([]arrangementView, 0, len(result.Items))
	for _, a := range result.Items {
		views = append(views, viewOf(a))
	}
	writeJSON(w, http.StatusOK, arrangementListResponse{Arrangements: views, Pagination: paginationOf(result)})
}

// GetArrangement handles GET /api/arrangements/{id}
func (h *Handler) GetArrangement(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())

	a, err := h.arrangements.Get(r.Context(), r.PathValue("id"), owner)
	if err != nil {
		h.writeServiceError(w, r, err, arrangementNotFound)
		return
	}
	writeJSON(w, http.StatusOK, arrangementResponse{Arrangement: viewOf(a)})
}

// UpdateArrangement handles PUT /api/arrangements/{id}
func (h *Handler) UpdateArrangement(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	owner, _ := OwnerFromContext(r.Context())

	var req updateArrangementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	a, err := h.arrangements.Update(r.Context(), r.PathValue("id"), owner, domain.ArrangementPatch{
		Name:            req.Name,
		Description:     req.Description,
		Sections:        req.Sections,
		IsPublic:        req.IsPublic,
		Tags:            req.Tags,
		ExpectedVersion: req.Version,
	})
	if err != nil {
		h.writeServiceError(w, r, err, arrangementNotFound)
		return
	}
	writeJSON(w, http.StatusOK, arrangementResponse{Message: "Arrangement updated successfully", Arrangement: viewOf(a)})
}

// ApplySuggestion handles POST /api/arrangements/{id}/suggestions/{index}/apply
// An empty body marks the suggestion applied; {"applied": false} reverts it.
func (h *Handler) ApplySuggestion(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())

	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "suggestion index must be an integer")
		return
	}

	applied := true
	if r.ContentLength != 0 {
		var req applySuggestionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Applied != nil {
			applied = *req.Applied
		}
	}

	a, err := h.arrangements.ApplySuggestion(r.Context(), r.PathValue("id"), owner, index, applied)
	if err != nil {
		h.writeServiceError(w, r, err, arrangementNotFound)
		return
	}
	writeJSON(w, http.StatusOK, arrangementResponse{Arrangement: viewOf(a)})
}

// DeleteArrangement handles DELETE /api/arrangements/{id}
func (h *Handler) DeleteArrangement(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())

	if err := h.arrangements.Delete(r.Context(), r.PathValue("id"), owner); err != nil {
		h.writeServiceError(w, r, err, arrangementNotFound)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Arrangement deleted successfully"})
}
