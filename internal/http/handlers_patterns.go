package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"financify/internal/core"
	"financify/internal/log"
	"financify/internal/middleware/auth"
)

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	if r.Method == http.MethodGet {
		list, err := s.deps.Patterns.List(r.Context(), user.ID)
		if err != nil {
			s.writeServiceError(w, r, err, log.OpList, "")
			return
		}
		if list == nil {
			list = []core.Pattern{}
		}
		NewJSONResponse().Body(list).Write(w)
		return
	}

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := parser.Require("title", "date", "value"); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	created, err := s.deps.Patterns.Create(r.Context(), user.ID, core.Pattern{
		Title: parser.Get("title"),
		Date:  parser.Get("date"),
		Value: parser.Get("value"),
	})
	if err != nil {
		msg := ""
		if errors.Is(err, core.ErrConflict) {
			msg = fmt.Sprintf("patterns title %s already exists", core.NormalizeTitle(parser.Get("title")))
		}
		s.writeServiceError(w, r, err, log.OpCreate, msg)
		return
	}
	s.sl.LogRecordChange(r.Context(), log.OpCreate, user.ID, core.TablePatterns, created.ID)
	NewJSONResponse().Status(http.StatusCreated).Body(created).Write(w)
}

// handleGetPattern looks the pattern up by id when the path segment is
// numeric and by title otherwise.
func (s *Server) handleGetPattern(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	ref := r.PathValue("ref")

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if id <= 0 {
			BadRequestError(core.TablePatterns + " id invalid").Write(w)
			return
		}
		p, err := s.deps.Patterns.Get(r.Context(), user.ID, id)
		if err != nil {
			s.writeServiceError(w, r, err, log.OpRead, statementMessage(err, core.TablePatterns, id))
			return
		}
		NewJSONResponse().Body(p).Write(w)
		return
	}

	p, err := s.deps.Patterns.GetByTitle(r.Context(), user.ID, ref)
	if err != nil {
		msg := ""
		if errors.Is(err, core.ErrNotFound) {
			msg = fmt.Sprintf("patterns title %s not found", core.NormalizeTitle(ref))
		}
		s.writeServiceError(w, r, err, log.OpRead, msg)
		return
	}
	NewJSONResponse().Body(p).Write(w)
}
