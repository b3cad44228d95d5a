package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pbaille/letterdesk/internal/domain"
	"github.com/pbaille/letterdesk/internal/queue"
)

// RefineRequest is the request body for refining a cover letter
type RefineRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) enqueue(ctx context.Context, w http.ResponseWriter, name string, job any, message string) {
	if s.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "job queue not configured")
		return
	}
	if err := s.queue.Push(ctx, name, job); err != nil {
		s.log.Error().Err(err).Str("queue", name).Msg("enqueue failed")
		writeError(w, http.StatusInternalServerError, "failed to queue job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

func (s *Server) generateCoverLetter(w http.ResponseWriter, r *http.Request) {
	recipient, err := s.store.Get(r.Context(), domain.KindRecipient, r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}

	job := queue.GenerateJob{Recipient: recipient.Attr("email")}
	s.enqueue(r.Context(), w, s.opts.GenerateQueue, job, "generation queued")
}

// coverLetterRecipient loads a cover letter and the recipient it is addressed to
func (s *Server) coverLetterRecipient(w http.ResponseWriter, r *http.Request) (domain.Record, domain.Record, bool) {
	letter, err := s.store.Get(r.Context(), domain.KindCoverLetter, r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return domain.Record{}, domain.Record{}, false
	}

	recipientID := letter.Relation("recipient")
	if recipientID == "" {
		writeError(w, http.StatusConflict, "cover letter has no recipient")
		return domain.Record{}, domain.Record{}, false
	}
	recipient, err := s.store.Get(r.Context(), domain.KindRecipient, recipientID)
	if err != nil {
		s.storeError(w, err)
		return domain.Record{}, domain.Record{}, false
	}

	return letter, recipient, true
}

func (s *Server) refineCoverLetter(w http.ResponseWriter, r *http.Request) {
	var req RefineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	letter, recipient, ok := s.coverLetterRecipient(w, r)
	if !ok {
		return
	}

	job := queue.GenerateJob{
		Recipient:      recipient.Attr("email"),
		ConversationID: letter.Attr("conversation"),
		Prompt:         req.Prompt,
	}
	s.enqueue(r.Context(), w, s.opts.GenerateQueue, job, "refinement queued")
}

func (s *Server) sendCoverLetter(w http.ResponseWriter, r *http.Request) {
	letter, recipient, ok := s.coverLetterRecipient(w, r)
	if !ok {
		return
	}

	job := queue.EmailJob{
		Recipient:   recipient.Attr("email"),
		CoverLetter: letter.Attr("content"),
	}
	s.enqueue(r.Context(), w, s.opts.EmailQueue, job, "email queued")
}
