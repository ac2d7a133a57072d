package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/mvaldesr/tabletalk/internal/app/workbook"
	"github.com/mvaldesr/tabletalk/internal/domain"
)

// ownerHeader carries the caller's identity. There is no auth layer in
// front of this API; the header is trusted as-is.
const ownerHeader = "X-Owner-ID"

const maxUploadBytes = 16 << 20

type Server struct {
	svc *workbook.Service
}

func NewServer(svc *workbook.Service) http.Handler {
	s := &Server{svc: svc}
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)

	// /sessions → POST: upload a dataset, GET: list sessions
	mux.HandleFunc("/sessions", s.handleSessions)

	// /sessions/{id}           → GET: current state, DELETE: soft delete
	// /sessions/{id}/transform → POST: apply a prompt
	// /sessions/{id}/undo      → POST: deactivate last step
	// /sessions/{id}/reset     → POST: deactivate every step
	mux.HandleFunc("/sessions/", s.handleSessionWithID)

	return chainMiddlewares(mux, withLogging, withCORS, withRequestID)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type sessionResponse struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Filename  string    `json:"filename"`
	Format    string    `json:"format"`
	CreatedAt time.Time `json:"created_at"`
}

type uploadResponse struct {
	Session sessionResponse `json:"session"`
	Preview workbook.Grid   `json:"preview"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type transformRequest struct {
	Prompt string `json:"prompt"`
}

type transformResponse struct {
	Intent      string            `json:"intent"`
	Grid        workbook.Grid     `json:"grid"`
	Chart       *domain.ChartSpec `json:"chart,omitempty"`
	HasChart    bool              `json:"has_chart"`
	Script      string            `json:"script"`
	Explanation string            `json:"explanation,omitempty"`
}

type stateResponse struct {
	Session  sessionResponse    `json:"session"`
	Grid     workbook.Grid      `json:"grid"`
	Chart    *domain.ChartSpec  `json:"chart,omitempty"`
	HasChart bool               `json:"has_chart"`
	Messages []workbook.Message `json:"messages"`
}

// ─────────────────────────────────────────────
// Basic routing
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// /sessions
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleUpload(w, r)
	case http.MethodGet:
		s.handleListSessions(w, r)
	default:
		methodNotAllowed(w)
	}
}

// /sessions/{id} or /sessions/{id}/{action}
func (s *Server) handleSessionWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	if path == "" {
		http.NotFound(w, r)
		return
	}

	parts := strings.Split(path, "/")
	id := domain.SessionID(parts[0])
	if id == "" {
		http.NotFound(w, r)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.handleSessionState(w, r, id)
		case http.MethodDelete:
			s.handleDeleteSession(w, r, id)
		default:
			methodNotAllowed(w)
		}
		return
	}

	if len(parts) == 2 {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		switch parts[1] {
		case "transform":
			s.handleTransform(w, r, id)
		case "undo":
			s.handleUndo(w, r, id)
		case "reset":
			s.handleReset(w, r, id)
		default:
			http.NotFound(w, r)
		}
		return
	}

	http.NotFound(w, r)
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		badRequest(w, "expected a multipart form with a file field")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		badRequest(w, "could not read upload")
		return
	}

	out, err := s.svc.Upload(r.Context(), workbook.UploadInput{
		Owner:    owner,
		Filename: header.Filename,
		Format:   formatOf(header.Filename),
		Data:     data,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		Session: toSessionResponse(out.Session),
		Preview: out.Preview,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}

	sessions, err := s.svc.ListSessions(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := listSessionsResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, sess := range sessions {
		resp.Sessions = append(resp.Sessions, toSessionResponse(sess))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}

	out, err := s.svc.SessionState(r.Context(), id, owner)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stateResponse{
		Session:  toSessionResponse(out.Session),
		Grid:     out.Grid,
		Chart:    out.Chart,
		HasChart: out.HasChart,
		Messages: out.Messages,
	})
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}

	var req transformRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		badRequest(w, "prompt is required")
		return
	}

	out, err := s.svc.ApplyPrompt(r.Context(), workbook.TransformInput{
		SessionID: id,
		Owner:     owner,
		Prompt:    req.Prompt,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transformResponse{
		Intent:      string(out.Intent),
		Grid:        out.Grid,
		Chart:       out.Chart,
		HasChart:    out.HasChart,
		Script:      out.Script,
		Explanation: out.Explanation,
	})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}
	if err := s.svc.Undo(r.Context(), id, owner); err != nil {
		writeError(w, err)
		return
	}
	s.handleSessionState(w, r, id)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}
	if err := s.svc.Reset(r.Context(), id, owner); err != nil {
		writeError(w, err)
		return
	}
	s.handleSessionState(w, r, id)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}
	if err := s.svc.DeleteSession(r.Context(), id, owner); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ─────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────

func toSessionResponse(s *domain.Session) sessionResponse {
	return sessionResponse{
		ID:        string(s.ID),
		OwnerID:   string(s.OwnerID),
		Filename:  s.Filename,
		Format:    s.Format,
		CreatedAt: s.CreatedAt,
	}
}

func ownerOf(w http.ResponseWriter, r *http.Request) (domain.OwnerID, bool) {
	owner := strings.TrimSpace(r.Header.Get(ownerHeader))
	if owner == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error": ownerHeader + " header is required",
		})
		return "", false
	}
	return domain.OwnerID(owner), true
}

func formatOf(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}

// writeError maps a domain error kind to an HTTP status. Unknown errors
// never leak their message to the client.
func writeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
		return
	}

	body := map[string]string{
		"error": err.Error(),
		"kind":  string(kind),
	}
	var derr *domain.Error
	if errors.As(err, &derr) && derr.Trace != "" {
		body["trace"] = derr.Trace
	}
	writeJSON(w, status, body)
}

var statusByKind = map[domain.Kind]int{
	domain.KindAccessDenied:   http.StatusForbidden,
	domain.KindQuotaExceeded:  http.StatusConflict,
	domain.KindNotFound:       http.StatusNotFound,
	domain.KindDecode:         http.StatusBadRequest,
	domain.KindGeneration:     http.StatusBadGateway,
	domain.KindScriptContract: http.StatusUnprocessableEntity,
	domain.KindScriptRuntime:  http.StatusUnprocessableEntity,
	domain.KindPersistence:    http.StatusInternalServerError,
}
