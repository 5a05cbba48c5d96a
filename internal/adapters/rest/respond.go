package rest

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/ewilliams-labs/songform/internal/core/domain"
)

type errorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps core error kinds onto status codes. Internal
// detail only reaches the client when ExposeErrors is set.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	var ve domain.ValidationError
	var ue domain.UnavailableError

	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Message, Field: ve.Field})
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "Arrangement was modified by another request")
	case errors.Is(err, domain.ErrServiceUnavailable):
		if errors.As(err, &ue) && ue.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(ue.RetryAfter.Seconds())))
		}
		writeError(w, http.StatusServiceUnavailable, "Audio analysis service unavailable")
	case errors.Is(err, domain.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "Audio analysis timed out")
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		resp := errorResponse{Error: "Internal server error"}
		if h.opts.ExposeErrors {
			resp.Details = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}

func isJSONContentType(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

type pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func paginationOf[T any](p domain.Page[T]) pagination {
	return pagination{Page: p.Page, Limit: p.Limit, Total: p.Total, Pages: p.Pages()}
}

// pageParams reads ?page=&limit= with defaults 1 and 10.
func pageParams(r *http.Request) (page, limit int, err error) {
	page, limit = 1, 10
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil {
			return 0, 0, domain.Invalid("page", "must be an integer")
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return 0, 0, domain.Invalid("limit", "must be an integer")
		}
	}
	return page, limit, nil
}
