package http

import (
	"errors"
	"net/http"

	"financify/internal/core"
	"financify/internal/log"
)

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		users, err := s.deps.Users.List(r.Context())
		if err != nil {
			s.writeServiceError(w, r, err, log.OpList, "")
			return
		}
		if users == nil {
			users = []core.User{}
		}
		NewJSONResponse().Body(users).Write(w)
		return
	}

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	username := parser.Get("username")
	if username == "" {
		BadRequestError("no username provided").Write(w)
		return
	}

	created, err := s.deps.Users.Create(r.Context(), username)
	if err != nil {
		msg := ""
		if errors.Is(err, core.ErrConflict) {
			msg = "username already taken"
		}
		s.writeServiceError(w, r, err, log.OpCreate, msg)
		return
	}
	s.sl.LogRecordChange(r.Context(), log.OpCreate, created.ID, core.TableUsers, created.ID)
	NewJSONResponse().Status(http.StatusCreated).Body(created).Write(w)
}
