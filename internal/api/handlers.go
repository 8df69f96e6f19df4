package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/balkashynov/evshift/internal/lifecycle"
	"github.com/balkashynov/evshift/internal/models"
	"github.com/balkashynov/evshift/internal/reconciler"
)

type bodyError struct {
	Error string `json:"error"`
}

type cancelRequest struct {
	Note string `json:"note"`
}

type endTimeRequest struct {
	EndTime *time.Time `json:"end_time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"store":  s.shifts.Describe(),
	})
}

// List shifts, optionally filtered by status and start window
func (s *Server) handleListShifts(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r.URL.Query())
	if err != nil {
		s.sendError(w, fmt.Errorf("%w: %v", lifecycle.ErrInvalidShift, err))
		return
	}

	shifts, err := s.shifts.ListShifts(r.Context(), opts)
	if err != nil {
		s.sendError(w, err)
		return
	}
	if shifts == nil {
		shifts = []models.Shift{}
	}
	s.sendJSON(w, http.StatusOK, shifts)
}

func (s *Server) handleGetShift(w http.ResponseWriter, r *http.Request) {
	id, ok := s.shiftID(w, r)
	if !ok {
		return
	}
	shift, err := s.shifts.GetShift(r.Context(), id)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, shift)
}

func (s *Server) handleCreateShift(w http.ResponseWriter, r *http.Request) {
	var req models.CreateShiftRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	shift, err := s.shifts.CreateShift(r.Context(), req)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.logger.Info("shift created", zap.Uint("shift_id", shift.ID), zap.String("status", shift.Status.String()))
	s.sendJSON(w, http.StatusCreated, shift)
}

func (s *Server) handleAssignShift(w http.ResponseWriter, r *http.Request) {
	id, ok := s.shiftID(w, r)
	if !ok {
		return
	}
	var req models.AssignRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	shift, err := s.shifts.AssignShift(r.Context(), id, req)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.logger.Info("shift assigned", zap.Uint("shift_id", id), zap.String("assignee_id", shift.AssigneeID))
	s.sendJSON(w, http.StatusOK, shift)
}

func (s *Server) handleCancelShift(w http.ResponseWriter, r *http.Request) {
	id, ok := s.shiftID(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if !s.decode(w, r, &req, true) {
		return
	}
	shift, err := s.shifts.CancelShift(r.Context(), id, req.Note)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.logger.Info("shift cancelled", zap.Uint("shift_id", id))
	s.sendJSON(w, http.StatusOK, shift)
}

func (s *Server) handleSetEndTime(w http.ResponseWriter, r *http.Request) {
	id, ok := s.shiftID(w, r)
	if !ok {
		return
	}
	var req endTimeRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	if req.EndTime == nil {
		s.sendError(w, fmt.Errorf("%w: end_time is required", lifecycle.ErrInvalidShift))
		return
	}
	shift, err := s.shifts.SetEndTime(r.Context(), id, *req.EndTime)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, shift)
}

func (s *Server) handleDeleteShift(w http.ResponseWriter, r *http.Request) {
	id, ok := s.shiftID(w, r)
	if !ok {
		return
	}
	if err := s.shifts.DeleteShift(r.Context(), id); err != nil {
		s.sendError(w, err)
		return
	}
	s.logger.Info("shift deleted", zap.Uint("shift_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// Run a reconciliation pass now
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := s.passes.RunOnce(r.Context())
	if errors.Is(err, reconciler.ErrPassInProgress) {
		s.sendJSON(w, http.StatusConflict, bodyError{Error: err.Error()})
		return
	}
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, report)
}

////////////////////////////

func listOptions(values url.Values) (models.ListOptions, error) {
	var opts models.ListOptions

	if raw := values.Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status, ok := models.ParseStatus(part)
			if !ok {
				return opts, fmt.Errorf("unknown status %q", part)
			}
			opts.Statuses = append(opts.Statuses, status)
		}
	}
	for key, dst := range map[string]**time.Time{"from": &opts.From, "to": &opts.To} {
		raw := values.Get(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return opts, fmt.Errorf("%s must be an RFC 3339 time", key)
		}
		*dst = &t
	}
	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return opts, fmt.Errorf("limit must be a positive number")
		}
		opts.Limit = limit
	}
	return opts, nil
}

func (s *Server) shiftID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	raw := chi.URLParam(r, "shiftId")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		s.sendJSON(w, http.StatusBadRequest, bodyError{Error: fmt.Sprintf("invalid shift id %q", raw)})
		return 0, false
	}
	return uint(id), true
}

// decode reads a JSON body into dst. allowEmpty accepts a missing body.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		if allowEmpty {
			return true
		}
		s.sendJSON(w, http.StatusBadRequest, bodyError{Error: "empty payload"})
		return false
	}
	if err != nil {
		s.sendJSON(w, http.StatusBadRequest, bodyError{Error: fmt.Sprintf("invalid payload: %v", err)})
		return false
	}
	return true
}

// statusFor maps domain errors to HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrInvalidTransition), errors.Is(err, lifecycle.ErrInvalidShift):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) sendError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
		msg = http.StatusText(status)
	} else {
		s.logger.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	}
	s.sendJSON(w, status, bodyError{Error: msg})
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("could not encode response", zap.Error(err))
	}
}
