package app

import (
	"net/http"
	"strconv"

	"ideajournal/internal/export"
	"ideajournal/internal/models"
)

const historyLimit = 50

func (s *HTTPServer) handleSaveIdea(w http.ResponseWriter, r *http.Request) {
	var draft models.Draft
	if err := decodeBody(r, &draft); err != nil {
		s.fail(w, r, errInvalidBody)
		return
	}
	folder, err := s.ideas.Create(r.Context(), draft)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Idea saved", "folder": folder})
}

func (s *HTTPServer) handleListIdeas(w http.ResponseWriter, r *http.Request) {
	items, err := s.ideas.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *HTTPServer) handleGetIdea(w http.ResponseWriter, r *http.Request, folder string) {
	idea, err := s.ideas.Get(r.Context(), folder)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeIndentedJSON(w, http.StatusOK, idea)
}

func (s *HTTPServer) handleDeleteIdea(w http.ResponseWriter, r *http.Request, folder string) {
	if err := s.ideas.Delete(r.Context(), folder); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Idea deleted"})
}

func (s *HTTPServer) handleAddUpdate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IdeaTitle  string `json:"ideaTitle"`
		UpdateText string `json:"updateText"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, errInvalidBody)
		return
	}
	if _, err := s.ideas.AppendUpdate(r.Context(), body.IdeaTitle, body.UpdateText); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Update added"})
}

func (s *HTTPServer) handleIdeaPDF(w http.ResponseWriter, r *http.Request, folder string) {
	data, err := s.ideas.Artifact(r.Context(), folder)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", export.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", `inline; filename="idea.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *HTTPServer) handleIdeaHistory(w http.ResponseWriter, r *http.Request, folder string) {
	idea, err := s.ideas.Get(r.Context(), folder)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if s.history == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	entries, err := s.history.Log(r.Context(), idea.Folder, historyLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
