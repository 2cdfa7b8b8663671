package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"finance/internal/core"
	"finance/internal/log"
)

func (s *Server) handleUserName(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.ledger.UserName()).Write(w)
}

func (s *Server) handleAllExpenses(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(recordsByIndex(core.Indexed(s.ledger.AllRecords()))).Write(w)
}

func (s *Server) handleExpensesByCategory(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	if category == "" {
		BadRequestError("missing category").Write(w)
		return
	}
	NewJSONResponse().Body(recordsByIndex(s.ledger.FilterByCategory(category))).Write(w)
}

func (s *Server) handleMonthlyTotals(w http.ResponseWriter, r *http.Request) {
	month := ParseMonthParam(r.URL.Query())
	totals, err := s.ledger.MonthlyTotals(month)
	if err != nil {
		s.fail(w, r, err, log.FieldMonth, month)
		return
	}
	NewJSONResponse().Body(totalsList(totals)).Write(w)
}

func (s *Server) handleMonthlyHeights(w http.ResponseWriter, r *http.Request) {
	month := ParseMonthParam(r.URL.Query())
	heights, err := s.ledger.MonthlyHeights(month)
	if err != nil {
		s.fail(w, r, err, log.FieldMonth, month)
		return
	}
	NewJSONResponse().Body(heightsList(heights)).Write(w)
}

func (s *Server) handleMonthlySum(w http.ResponseWriter, r *http.Request) {
	month := ParseMonthParam(r.URL.Query())
	sum, err := s.ledger.MonthlySum(month)
	if err != nil {
		s.fail(w, r, err, log.FieldMonth, month)
		return
	}
	NewJSONResponse().Body(map[string]string{"sum": core.FormatSum(sum)}).Write(w)
}

func (s *Server) handleMonthsList(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.ledger.ListMonths()).Write(w)
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	in, err := ParseRecordInput(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.ledger.AddRecord(r.Context(), in); err != nil {
		s.fail(w, r, err, log.FieldCategory, in.Category, log.FieldTitle, in.Title)
		return
	}
	atomic.AddInt64(&s.appMetrics.recordsAdded, 1)
	NewJSONResponse().Status(http.StatusCreated).Message("expense add success").Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	target, err := ParseDeleteTarget(r.URL.Query())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if target.ByID {
		_, err = s.ledger.DeleteRecordByID(r.Context(), target.ID)
	} else {
		_, err = s.ledger.DeleteRecord(r.Context(), target.Index)
	}
	if err != nil {
		s.fail(w, r, err, log.FieldIndex, target.Index, log.FieldRecordID, target.ID.String())
		return
	}
	atomic.AddInt64(&s.appMetrics.recordsDeleted, 1)
	NewJSONResponse().Status(http.StatusCreated).Message("expense delete success").Write(w)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	records, err := s.ledger.Refresh(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.refreshes, 1)
	NewJSONResponse().Body(recordList(records)).Write(w)
}

func (s *Server) handleEstablishSession(w http.ResponseWriter, r *http.Request) {
	tok := s.ledger.NewSession(r.Context())
	NewJSONResponse().Body(map[string]string{
		"success": fmt.Sprintf("new session established: %s", tok),
	}).Write(w)
}

// fail logs err with the request logger and writes the mapped error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, fields ...any) {
	if errors.Is(err, core.ErrStaleWrite) {
		atomic.AddInt64(&s.appMetrics.staleWrites, 1)
	}
	resp := ErrorFrom(err)
	logger := log.FromContext(r.Context())
	args := append([]any{log.FieldPath, r.URL.Path, log.FieldError, err}, fields...)
	if resp.statusCode >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", args...)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", args...)
	}
	resp.Write(w)
}
