package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/pbaille/letterdesk/internal/domain"
	"github.com/pbaille/letterdesk/internal/signature"
	"github.com/pbaille/letterdesk/internal/store"
)

func (s *Server) schemaFor(w http.ResponseWriter, r *http.Request) (domain.Schema, bool) {
	sch, err := domain.Lookup(domain.Kind(r.PathValue("kind")))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return domain.Schema{}, false
	}
	return sch, true
}

// storeError maps store failures onto status codes
func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalid), errors.Is(err, signature.ErrTooLarge):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error().Err(err).Msg("store operation failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	sch, ok := s.schemaFor(w, r)
	if !ok {
		return
	}

	records, err := s.store.List(r.Context(), sch.Kind)
	if err != nil {
		s.storeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	sch, ok := s.schemaFor(w, r)
	if !ok {
		return
	}

	rec, err := s.store.Get(r.Context(), sch.Kind, r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) createRecord(w http.ResponseWriter, r *http.Request) {
	sch, ok := s.schemaFor(w, r)
	if !ok {
		return
	}

	var rec domain.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// Server assigns ids
	rec.ID = ""

	if sch.HasScalar("signature") {
		if err := signature.Validate(rec.Attr("signature")); err != nil {
			s.storeError(w, err)
			return
		}
	}

	created, err := s.store.Create(r.Context(), sch.Kind, rec)
	if err != nil {
		s.storeError(w, err)
		return
	}

	s.log.Info().Str("kind", string(sch.Kind)).Str("id", created.ID).Msg("created")
	writeJSON(w, http.StatusCreated, created)
}

// updateRecord sets one attribute, {"<attr>": value}, or one relation, {"<relation>_id": id}.
// A null or empty relation id clears the relation.
func (s *Server) updateRecord(w http.ResponseWriter, r *http.Request) {
	sch, ok := s.schemaFor(w, r)
	if !ok {
		return
	}
	id, name := r.PathValue("id"), r.PathValue("attr")

	var body map[string]*string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var err error
	switch {
	case sch.HasScalar(name):
		value, present := body[name]
		if !present || value == nil {
			writeError(w, http.StatusBadRequest, name+" is required in body")
			return
		}
		if name == "signature" {
			if err := signature.Validate(*value); err != nil {
				s.storeError(w, err)
				return
			}
		}
		err = s.store.SetAttribute(r.Context(), sch.Kind, id, name, *value)

	default:
		if _, isRelation := sch.Relation(name); !isRelation {
			writeError(w, http.StatusNotFound, "unknown attribute "+name)
			return
		}
		var target string
		if v := body[domain.RelationKey(name)]; v != nil {
			target = strings.TrimSpace(*v)
		}
		err = s.store.SetRelation(r.Context(), sch.Kind, id, name, target)
	}
	if err != nil {
		s.storeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": sch.Singular + " " + name + " updated"})
}

func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request) {
	sch, ok := s.schemaFor(w, r)
	if !ok {
		return
	}

	if err := s.store.Delete(r.Context(), sch.Kind, r.PathValue("id")); err != nil {
		s.storeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": sch.Singular + " deleted"})
}
