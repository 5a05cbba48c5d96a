package rest

import (
	"errors"
	"io"
	"net/http"

	"github.com/ewilliams-labs/songform/internal/core/domain"
	"github.com/ewilliams-labs/songform/internal/core/services"
)

// multipartOverhead leaves room for the text fields next to the file.
const multipartOverhead = 1 << 20

type songResponse struct {
	Message string      `json:"message,omitempty"`
	Song    domain.Song `json:"song"`
}

type songListResponse struct {
	Songs      []domain.Song `json:"songs"`
	Pagination pagination    `json:"pagination"`
}

// UploadSong handles POST /api/songs/upload
func (h *Handler) UploadSong(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Audio file is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No audio file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read audio file")
		return
	}

	song, err := h.songs.Ingest(r.Context(), services.IngestRequest{
		OwnerID:   owner,
		Title:     r.FormValue("title"),
		Artist:    r.FormValue("artist"),
		Filename:  header.Filename,
		MimeType:  header.Header.Get("Content-Type"),
		Audio:     data,
		AuthToken: tokenFromContext(r.Context()),
	})
	if err != nil {
		h.writeServiceError(w, r, err, "Song not found")
		return
	}

	w.Header().Set("Location", "/api/songs/"+song.ID)
	writeJSON(w, http.StatusCreated, songResponse{Message: "Song uploaded and analyzed successfully", Song: song})
}

// ListSongs handles GET /api/songs
func (h *Handler) ListSongs(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())
	page, limit, err := pageParams(r)
	if err != nil {
		h.writeServiceError(w, r, err, "")
		return
	}

	result, err := h.songs.ListSongs(r.Context(), owner, page, limit)
	if err != nil {
		h.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, songListResponse{Songs: result.Items, Pagination: paginationOf(result)})
}

// GetSong handles GET /api/songs/{id}
func (h *Handler) GetSong(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())

	song, err := h.songs.GetSong(r.Context(), r.PathValue("id"), owner)
	if err != nil {
		h.writeServiceError(w, r, err, "Song not found")
		return
	}
	writeJSON(w, http.StatusOK, songResponse{Song: song})
}

// DeleteSong handles DELETE /api/songs/{id}
func (h *Handler) DeleteSong(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())

	if err := h.songs.DeleteSong(r.Context(), r.PathValue("id"), owner); err != nil {
		h.writeServiceError(w, r, err, "Song not found")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Song deleted successfully"})
}
