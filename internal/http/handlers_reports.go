package http

import (
	"errors"
	"fmt"
	"net/http"

	"financify/internal/core"
	"financify/internal/log"
	"financify/internal/middleware/auth"
	"financify/internal/middleware/trace"
	"financify/internal/reports"
)

// generateBody is the response of a synchronous run. Only the caller's
// reports are listed; ReportsCreated counts every owner's.
type generateBody struct {
	RunID          string        `json:"run_id"`
	NoOp           bool          `json:"no_op"`
	ReportsCreated int           `json:"reports_created"`
	Reports        []core.Report `json:"reports"`
}

type enqueuedBody struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	list, err := s.deps.Reports.List(r.Context(), user.ID)
	if err != nil {
		s.writeServiceError(w, r, err, log.OpList, "")
		return
	}
	if list == nil {
		list = []core.Report{}
	}
	NewJSONResponse().Body(list).Write(w)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	id, err := parseID(r, core.TableReports)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	report, err := s.deps.Reports.Get(r.Context(), user.ID, id)
	if err != nil {
		s.writeServiceError(w, r, err, log.OpRead, statementMessage(err, core.TableReports, id))
		return
	}
	NewJSONResponse().Body(report).Write(w)
}

// handleGenerateReports runs the pipeline, or hands the run to the worker
// when a queue is configured.
func (s *Server) handleGenerateReports(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	if s.deps.Reports.CanEnqueue() {
		id, err := s.deps.Reports.Enqueue(r.Context(), user.ID, reports.TriggerAPI)
		if err == nil {
			NewJSONResponse().Status(http.StatusAccepted).
				Body(enqueuedBody{RequestID: id, Status: "queued"}).
				Write(w)
			return
		}
		s.logger.WarnContext(r.Context(), "Enqueue failed, running report pipeline inline",
			log.FieldError, err.Error(),
			log.FieldRequestID, trace.GetRequestID(r.Context()))
	}

	res, err := s.deps.Reports.Generate(r.Context(), reports.TriggerAPI)
	if err != nil {
		var parseErr *core.ParseError
		if errors.As(err, &parseErr) {
			s.sl.LogError(r.Context(), "Stored data rejected by report run", err,
				log.ComponentReport, log.OpGenerate, log.NewFields().WithErrorType(log.ErrorTypeValidation))
			ErrorResponse(http.StatusInternalServerError, fmt.Sprintf("stored %s data is invalid", parseErr.Table)).Write(w)
			return
		}
		s.writeServiceError(w, r, err, log.OpGenerate, "")
		return
	}
	s.sl.LogReportRun(r.Context(), res.RunID, len(res.Reports), reports.TriggerAPI)

	own := []core.Report{}
	for _, rep := range res.Reports {
		if rep.UserID == user.ID {
			own = append(own, rep)
		}
	}
	NewJSONResponse().Body(generateBody{
		RunID:          res.RunID,
		NoOp:           res.NoOp,
		ReportsCreated: len(res.Reports),
		Reports:        own,
	}).Write(w)
}
