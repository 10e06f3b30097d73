package http

import (
	"bytes"
	"errors"
	"net/http"

	"carlog/internal/app"
	"carlog/internal/core"
	"carlog/internal/entry"
	"carlog/internal/fuel"
	applog "carlog/internal/log"
	"carlog/internal/sheets"
	"carlog/internal/spending"
)

// recentLimit bounds the records listed on the dashboard.
const recentLimit = 20

type dashboardData struct {
	Today      string
	Categories []core.Category
	Analysis   fuel.Analysis
	Spending   spending.Summary
	Recent     []core.Record
	Revision   int64
	LoadError  string
	Report     sheets.DecodeReport
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.templates == nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Templates not loaded", applog.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	now := s.now()
	records := s.state.Records()
	// newest first
	recent := make([]core.Record, 0, recentLimit)
	for i := len(records) - 1; i >= 0 && len(recent) < recentLimit; i-- {
		recent = append(recent, records[i])
	}
	data := dashboardData{
		Today:      core.DateOf(now).String(),
		Categories: core.Categories(),
		Analysis:   s.state.Analyze(),
		Spending:   s.state.Spending(now),
		Recent:     recent,
		Revision:   s.state.Revision(),
		Report:     s.state.Report(),
	}
	if err := s.state.Err(); err != nil {
		data.LoadError = err.Error()
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", data); err != nil {
		applog.LogError(ctx, "Index template execution failed", err, applog.ComponentTemplate, applog.OpRender, nil)
		http.Error(w, "template rendering failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleFuel(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(newAnalysisView(s.state.Analyze())).Write(w)
}

func (s *Server) handleSpending(w http.ResponseWriter, r *http.Request) {
	month, err := ParseMonth(r.URL.Query(), s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(newSpendingView(s.state.Spending(month))).Write(w)
}

type recordsResponse struct {
	Revision int64        `json:"revision"`
	Count    int          `json:"count"`
	Records  []recordView `json:"records"`
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	crit, err := ParseCriteria(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	records := s.state.Filter(crit)
	NewResponse().JSON(recordsResponse{
		Revision: s.state.Revision(),
		Count:    len(records),
		Records:  newRecordViews(records),
	}).Write(w)
}

type createdResponse struct {
	Revision int64      `json:"revision"`
	Record   recordView `json:"record"`
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	form, err := ParseEntryForm(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rec, err := s.state.Add(ctx, form)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	revision := s.state.Revision()
	applog.FromContext(ctx).InfoContext(ctx, "Record created",
		applog.NewFields().
			WithOperation(applog.OpAdd).
			WithRecord(rec.Category.String(), rec.Odometer, rec.Amount.Cents).
			ToSlice()...)

	switch {
	case isHTMX(r):
		var buf bytes.Buffer
		if s.templates != nil {
			if err := s.templates.ExecuteTemplate(&buf, "record-row", rec); err != nil {
				applog.LogError(ctx, "Record row rendering failed", err, applog.ComponentTemplate, applog.OpRender, nil)
				buf.Reset()
			}
		}
		NewResponse().
			Status(http.StatusCreated).
			TriggerRecordsChanged(revision, len(s.state.Records())).
			TriggerFormReset().
			TriggerNotification(NotificationSuccess, "Record saved", 3000).
			HTML(buf.String()).
			Write(w)
	case wantsHTML(r):
		http.Redirect(w, r, "/", http.StatusSeeOther)
	default:
		NewResponse().
			Status(http.StatusCreated).
			JSON(createdResponse{Revision: revision, Record: newRecordView(rec)}).
			Write(w)
	}
}

type commitResponse struct {
	Revision int64 `json:"revision"`
	Count    int   `json:"count"`
}

func (s *Server) handleEditRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	crit, edited, err := ParseEditRequest(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.state.Edit(ctx, crit, edited); err != nil {
		s.writeError(w, r, err)
		return
	}
	count := len(s.state.Records())
	applog.FromContext(ctx).InfoContext(ctx, "Records edited",
		applog.FieldOperation, applog.OpEdit,
		"edited", len(edited),
		applog.FieldCount, count)
	NewResponse().
		TriggerRecordsChanged(s.state.Revision(), count).
		JSON(commitResponse{Revision: s.state.Revision(), Count: count}).
		Write(w)
}

type reloadResponse struct {
	Revision int64  `json:"revision"`
	Count    int    `json:"count"`
	Dialect  string `json:"dialect"`
	Dropped  int    `json:"dropped"`
	Issues   int    `json:"issues"`
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.state.Reload(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	rep := s.state.Report()
	NewResponse().
		TriggerRecordsChanged(s.state.Revision(), len(s.state.Records())).
		JSON(reloadResponse{
			Revision: s.state.Revision(),
			Count:    len(s.state.Records()),
			Dialect:  rep.Dialect.String(),
			Dropped:  rep.Dropped,
			Issues:   len(rep.Issues),
		}).
		Write(w)
}

// writeError maps domain errors to status codes: malformed requests are
// 400, invalid entries 422 and store failures 502.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	var (
		status = http.StatusInternalServerError
		msg    = "internal error"
		fields entry.FieldErrors
	)
	switch {
	case errors.Is(err, errBadRequest):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.As(err, &fields):
		status, msg = http.StatusUnprocessableEntity, "invalid entry"
	case errors.Is(err, entry.ErrInvalid):
		status, msg = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, app.ErrStore):
		status, msg = http.StatusBadGateway, err.Error()
	}

	logger := applog.FromContext(ctx)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "Request failed", applog.FieldError, err, applog.FieldStatusCode, status)
	} else {
		logger.WarnContext(ctx, "Request rejected", applog.FieldError, err, applog.FieldStatusCode, status)
	}

	if wantsHTML(r) {
		ErrorHTML(status, msg).Write(w)
		return
	}
	ErrorJSON(status, msg, fields).Write(w)
}
