package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zeusync/mist/internal/core/entity"
	"github.com/zeusync/mist/internal/core/observability/log"
)

// EntityPath prefixes the document endpoints:
//
//	PUT    /mist/entities/{type}/{id}  store a JSON document, then broadcast
//	GET    /mist/entities/{type}/{id}  read it back
//	DELETE /mist/entities/{type}/{id}  remove it
const EntityPath = "/mist/entities"

const defaultEntityBodyLimit = 1 << 20

// WithEntityStore exposes store under EntityPath. Saves go through the
// store, so subscribers of the affected components receive updates.
func WithEntityStore(store entity.Store) Option {
	return func(s *Server) { s.store = store }
}

func (s *Server) entityRoutes(r chi.Router) {
	r.Put("/{type}/{id}", s.putEntity)
	r.Get("/{type}/{id}", s.getEntity)
	r.Delete("/{type}/{id}", s.deleteEntity)
}

// entityTarget resolves the type and id of a request, writing the error
// response itself when either is unusable.
func (s *Server) entityTarget(w http.ResponseWriter, r *http.Request) (entity.Type, uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid entity id", http.StatusBadRequest)
		return nil, uuid.Nil, false
	}
	typeName := chi.URLParam(r, "type")
	t, ok := s.store.Type(typeName)
	if !ok {
		http.Error(w, "unknown entity type '"+typeName+"'", http.StatusNotFound)
		return nil, uuid.Nil, false
	}
	return t, id, true
}

func (s *Server) putEntity(w http.ResponseWriter, r *http.Request) {
	t, id, ok := s.entityTarget(w, r)
	if !ok {
		return
	}

	limit := s.cfg.ReadLimit
	if limit <= 0 {
		limit = defaultEntityBodyLimit
	}
	var doc entity.Document
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit)).Decode(&doc); err != nil {
		http.Error(w, "invalid document: "+err.Error(), http.StatusBadRequest)
		return
	}
	doc.ID = id
	if doc.Fields == nil {
		doc.Fields = map[string]any{}
	}

	if err := s.store.Save(r.Context(), t.Name(), &doc); err != nil {
		s.entityError(w, "save", t.Name(), id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getEntity(w http.ResponseWriter, r *http.Request) {
	t, id, ok := s.entityTarget(w, r)
	if !ok {
		return
	}
	e, err := t.Find(r.Context(), id)
	if err != nil {
		s.entityError(w, "find", t.Name(), id, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(e); err != nil {
		s.logger.Warn("failed to write entity", log.String("entity_type", t.Name()), log.Error(err))
	}
}

func (s *Server) deleteEntity(w http.ResponseWriter, r *http.Request) {
	t, id, ok := s.entityTarget(w, r)
	if !ok {
		return
	}
	if err := s.store.Delete(r.Context(), t.Name(), id); err != nil {
		s.entityError(w, "delete", t.Name(), id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) entityError(w http.ResponseWriter, op, typeName string, id uuid.UUID, err error) {
	switch {
	case errors.Is(err, entity.ErrNotFound), errors.Is(err, entity.ErrUnknownType):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		s.logger.Error("entity request failed",
			log.String("op", op),
			log.String("entity_type", typeName),
			log.String("entity_id", id.String()),
			log.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
