package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/KaramelBytes/walletcase/internal/ai"
	"github.com/KaramelBytes/walletcase/internal/analysis"
	"github.com/KaramelBytes/walletcase/internal/dataset"
	"github.com/KaramelBytes/walletcase/internal/report"
	"github.com/KaramelBytes/walletcase/internal/usecase"
)

const formFile = "csvFile"

// multipart framing allowance on top of the file limit
const formOverhead = 1 << 20

// uploadError is a client-side upload problem; its message is returned as is.
type uploadError struct{ msg string }

func (e *uploadError) Error() string { return e.msg }

func badUpload(format string, args ...any) error {
	return &uploadError{msg: fmt.Sprintf(format, args...)}
}

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	Status    string `json:"status"`
	Method    string `json:"method"`
	URL       string `json:"url"`
	Timestamp string `json:"timestamp"`
	Env       string `json:"env"`
}

type analyzeResponse struct {
	Success  bool                     `json:"success"`
	Rows     int                      `json:"rows"`
	Columns  []string                 `json:"columns"`
	Summary  string                   `json:"summary"`
	Patterns analysis.PatternReport   `json:"patterns"`
	Profiles []analysis.ColumnProfile `json:"profiles"`
}

type uploadResponse struct {
	Success  bool                   `json:"success"`
	Data     []dataset.Row          `json:"data"`
	Summary  string                 `json:"summary"`
	Patterns analysis.PatternReport `json:"patterns"`
	UseCases []usecase.UseCase      `json:"useCases"`
	RunID    string                 `json:"runId,omitempty"`
}

// writeJSON encodes v before committing the status, so an encoding failure
// still yields a well-formed 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		buf.Reset()
		status = http.StatusInternalServerError
		_ = json.NewEncoder(&buf).Encode(errorResponse{Error: "Internal server error: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Status:    "API is working!",
		Method:    r.Method,
		URL:       r.URL.RequestURI(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Env:       s.env,
	})
}

// readUpload pulls the CSV part out of a multipart request. Everything stays
// in memory.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	if r.ContentLength > s.maxUpload+formOverhead {
		return "", nil, badUpload("File exceeds the %d MB limit", s.maxUpload>>20)
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+formOverhead)
	if err := r.ParseMultipartForm(s.maxUpload + formOverhead); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return "", nil, badUpload("File exceeds the %d MB limit", s.maxUpload>>20)
		}
		return "", nil, badUpload("Please upload a CSV file")
	}
	file, header, err := r.FormFile(formFile)
	if err != nil {
		return "", nil, badUpload("Please upload a CSV file")
	}
	defer file.Close()

	if !isCSV(header.Filename, header.Header.Get("Content-Type")) {
		return "", nil, badUpload("Only CSV files are allowed")
	}
	if header.Size > s.maxUpload {
		return "", nil, badUpload("File exceeds the %d MB limit", s.maxUpload>>20)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	return filepath.Base(header.Filename), data, nil
}

func isCSV(name, contentType string) bool {
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "text/csv"
}

// statusFor maps pipeline errors onto HTTP statuses and client messages.
func statusFor(err error) (int, string) {
	var (
		ue *uploadError
		pe *dataset.ParseError
	)
	switch {
	case errors.As(err, &ue):
		return http.StatusBadRequest, ue.msg
	case errors.As(err, &pe):
		return http.StatusBadRequest, "Failed to parse CSV: " + pe.Error()
	case errors.Is(err, usecase.ErrEmptyDataset):
		return http.StatusBadRequest, usecase.ErrEmptyDataset.Error()
	case ai.IsAuthFailure(err):
		return http.StatusUnauthorized, "API key error: " + err.Error()
	}
	return http.StatusInternalServerError, "Internal server error: " + err.Error()
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	level := s.logger.Warn
	if status >= 500 {
		level = s.logger.Error
	}
	level("request failed",
		"path", r.URL.Path,
		"status", status,
		"request_id", middleware.GetReqID(r.Context()),
		"error", err)
	writeError(w, status, msg)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	_, data, err := s.readUpload(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ds, err := dataset.Parse(data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ds.Len() == 0 {
		s.fail(w, r, usecase.ErrEmptyDataset)
		return
	}
	res := analysis.Analyze(ds)
	writeJSON(w, http.StatusOK, analyzeResponse{
		Success:  true,
		Rows:     ds.Len(),
		Columns:  ds.Header,
		Summary:  res.Summary,
		Patterns: res.Patterns,
		Profiles: res.Profiles,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.readUpload(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	bc := usecase.BusinessContext{
		Problem:  r.FormValue("businessProblem"),
		Scenario: r.FormValue("businessScenario"),
	}
	reqID := middleware.GetReqID(r.Context())
	s.logger.Info("upload received", "file", name, "bytes", len(data), "request_id", reqID)

	if s.gen == nil {
		s.fail(w, r, errors.New("use-case generation is not configured"))
		return
	}
	out, err := s.gen.Generate(r.Context(), data, bc)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := uploadResponse{
		Success:  true,
		Data:     out.Dataset.Rows,
		Summary:  out.Analysis.Summary,
		Patterns: out.Analysis.Patterns,
		UseCases: out.UseCases,
	}
	if s.store != nil {
		run := report.NewRun(name, s.provider, bc, out)
		if err := s.store.Save(run); err != nil {
			s.logger.Warn("could not save run", "error", err, "request_id", reqID)
		} else {
			resp.RunID = run.ID
		}
	}
	s.logger.Info("upload processed",
		"file", name,
		"rows", out.Dataset.Len(),
		"insights", len(out.Analysis.Patterns.Insights),
		"use_cases", len(out.UseCases),
		"model_request_id", out.RequestID,
		"request_id", reqID)
	writeJSON(w, http.StatusOK, resp)
}
