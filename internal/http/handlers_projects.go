package http

import (
	"net/http"

	"sitebook/internal/core"
)

type createProjectRequest struct {
	Name string `json:"name"`
}

type projectResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(w, "invalid request body: "+err.Error())
		return
	}

	p, err := s.repo.CreateProject(r.Context(), core.Project{Name: sanitizeInput(req.Name)})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, projectResponse{ID: p.ID, Name: p.Name})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.repo.ListProjects(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		resp = append(resp, projectResponse{ID: p.ID, Name: p.Name})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}

	p, err := s.repo.GetProject(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, projectResponse{ID: p.ID, Name: p.Name})
}
