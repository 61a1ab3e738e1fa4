package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	domainerrors "github.com/cineshelfapp/cineshelf/internal/errors"
	"github.com/cineshelfapp/cineshelf/internal/http/response"
	"github.com/cineshelfapp/cineshelf/internal/metrics"
	"github.com/cineshelfapp/cineshelf/internal/snapshot"
)

// snapshotPrefixes are the mount points devices may use for the snapshot endpoints.
// Older clients post to the bare paths.
var snapshotPrefixes = []string{"/api/v1", "/api", ""}

// The snapshot endpoints keep the plain JSON bodies deployed devices already parse,
// so they are served by chi directly instead of huma.
func (s *Server) registerSnapshotRoutes() {
	for _, prefix := range snapshotPrefixes {
		s.router.Post(prefix+"/backup", s.handleBackup)
		s.router.Get(prefix+"/restore", s.handleRestore)
		s.router.Post(prefix+"/restore", s.handleRestore)
	}
}

// restoreRequest is the body of a POST restore.
type restoreRequest struct {
	User string `json:"user"`
	File string `json:"file"`
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.RecordSnapshot("put", metrics.OutcomeInvalid)
			response.Error(w, http.StatusRequestEntityTooLarge, "Backup exceeds the size limit", s.logger)
			return
		}
		metrics.RecordSnapshot("put", metrics.OutcomeInvalid)
		response.BadRequest(w, "Failed to read request body", s.logger)
		return
	}

	doc, err := snapshot.DecodeBytes(raw)
	if err != nil {
		metrics.RecordSnapshot("put", metrics.OutcomeInvalid)
		response.BadRequest(w, "Invalid data - "+messageOf(err), s.logger)
		return
	}

	user := strings.TrimSpace(doc.User)
	if user == "" {
		user = strings.TrimSpace(r.Header.Get(snapshot.HeaderUserID))
	}
	if user == "" {
		metrics.RecordSnapshot("put", metrics.OutcomeInvalid)
		response.BadRequest(w, "Invalid data - user field required", s.logger)
		return
	}

	res, err := s.snapshots.Put(r.Context(), user, doc)
	if err != nil {
		if domainerrors.Is(err, domainerrors.ErrValidation) {
			metrics.RecordSnapshot("put", metrics.OutcomeInvalid)
			response.BadRequest(w, "Invalid username", s.logger)
			return
		}
		metrics.RecordSnapshot("put", metrics.OutcomeError)
		s.logger.Error("failed to store snapshot", "user", user, "error", err)
		response.InternalError(w, "Failed to save backup", s.logger)
		return
	}

	metrics.SnapshotBytes.Observe(float64(len(raw)))
	metrics.RecordSnapshot("put", metrics.OutcomeOK)
	s.logger.Info("backup received",
		"user", res.User,
		"file", res.Filename,
		"client_version", r.Header.Get(snapshot.HeaderBackupVersion),
	)

	response.Success(w, snapshot.PushResponse{
		Success:   true,
		Message:   "Backup saved successfully",
		Filename:  res.Filename,
		User:      res.User,
		Timestamp: res.Timestamp,
	}, s.logger)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	req := restoreRequest{
		User: r.URL.Query().Get("user"),
		File: r.URL.Query().Get("file"),
	}
	if r.Method == http.MethodPost {
		body := http.MaxBytesReader(w, r.Body, 64<<10)
		if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			response.BadRequest(w, "Invalid request body", s.logger)
			return
		}
	}

	user, err := snapshot.Sanitize(req.User)
	if err != nil {
		metrics.RecordSnapshot("get", metrics.OutcomeInvalid)
		response.BadRequest(w, "User parameter required", s.logger)
		return
	}

	lookup, err := s.snapshots.Get(r.Context(), user, req.File)
	switch {
	case err == nil:
	case domainerrors.Is(err, domainerrors.ErrNotFound):
		metrics.RecordSnapshot("get", metrics.OutcomeNotFound)
		response.JSON(w, http.StatusNotFound, snapshot.FileNotFoundResponse{
			Error: "Specified file not found",
			File:  req.File,
		}, s.logger)
		return
	default:
		metrics.RecordSnapshot("get", metrics.OutcomeError)
		s.logger.Error("failed to read snapshot", "user", user, "file", req.File, "error", err)
		response.HandleError(w, err, s.logger)
		return
	}

	if !lookup.Found() {
		metrics.RecordSnapshot("get", metrics.OutcomeNotFound)
		available := lookup.Available
		if available == nil {
			available = []snapshot.BackupInfo{}
		}
		response.JSON(w, http.StatusNotFound, snapshot.NotFoundResponse{
			Error:            "No backup found for this user",
			User:             user,
			AvailableBackups: available,
			Suggestion:       snapshot.NotFoundSuggestion,
		}, s.logger)
		return
	}

	metrics.RecordSnapshot("get", metrics.OutcomeOK)
	s.logger.Info("backup restored", "user", user, "file", lookup.Filename, "forced", req.File != "")
	response.Success(w, lookup.Document, s.logger)
}

func messageOf(err error) string {
	var domainErr *domainerrors.Error
	if domainerrors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}
