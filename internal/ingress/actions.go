package ingress

import (
	"encoding/json"
	"net/http"

	"github.com/flowkeep/durableflow/internal/store"
	"github.com/flowkeep/durableflow/pkg/executor"
	"github.com/go-chi/chi/v5"
)

type actionRequest struct {
	Name   string         `json:"name"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

// createAction handles `POST /actions`; a duplicate name is a 409.
func (s *Server) createAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "action name is required", http.StatusBadRequest)
		return
	}

	a := &executor.Action{Name: req.Name, Type: req.Type, Config: req.Config}
	if err := s.Store.CreateAction(r.Context(), a); err != nil {
		if err == store.ErrActionExists {
			http.Error(w, "action already exists", http.StatusConflict)
			return
		}
		http.Error(w, "failed to create action: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) getAction(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	a, err := s.Store.GetAction(r.Context(), name)
	if err != nil {
		http.Error(w, "failed to load action: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if a == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) listActions(w http.ResponseWriter, r *http.Request) {
	actions, err := s.Store.ListActions(r.Context())
	if err != nil {
		http.Error(w, "failed to list actions: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, actions)
}

// updateAction is the single PUT handler; an earlier version of this
// route had two handlers registered on it that silently shadowed each
// other, so only one ever ran.
func (s *Server) updateAction(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	a := &executor.Action{Name: name, Type: req.Type, Config: req.Config}
	if err := s.Store.UpdateAction(r.Context(), name, a); err != nil {
		if err == store.ErrActionNotFound {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "failed to update action: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) deleteAction(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	existed, err := s.Store.DeleteAction(r.Context(), name)
	if err != nil {
		http.Error(w, "failed to delete action: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if !existed {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
