package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/scribblestars/scribble-engine/internal/game"
	"github.com/scribblestars/scribble-engine/internal/models"
)

// maxSubmissionBytes bounds a multipart submission (a handful of small
// grayscale letter images)
const maxSubmissionBytes = 10 << 20

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondGameError maps the game error taxonomy onto HTTP statuses
func respondGameError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrStudentNotFound):
		respondError(w, http.StatusNotFound, "student_not_found", "student not found")
	case errors.Is(err, game.ErrLevelNotFound):
		respondError(w, http.StatusNotFound, "level_not_found", "level not found")
	case errors.Is(err, game.ErrInvalidTask):
		respondError(w, http.StatusBadRequest, "invalid_task", "task id is out of range")
	case errors.Is(err, game.ErrInvalidImages):
		respondError(w, http.StatusBadRequest, "invalid_images", err.Error())
	case errors.Is(err, game.ErrInvalidNickname):
		respondError(w, http.StatusBadRequest, "invalid_nickname", "nickname is required")
	case errors.Is(err, game.ErrNicknameTaken):
		respondError(w, http.StatusBadRequest, "nickname_taken", "nickname already exists")
	case errors.Is(err, game.ErrLevelLocked):
		respondError(w, http.StatusConflict, "level_locked", "level is not unlocked yet")
	default:
		slog.Error("request failed", "error", err)
		respondError(w, http.StatusBadGateway, "upstream_error", "request could not be completed")
	}
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Student handlers

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	student, err := s.game.Signup(r.Context(), req.Nickname)
	if err != nil {
		respondGameError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, models.SignupResponse{
		Message: "Student created successfully",
		ID:      student.ID,
		SID:     student.SID,
	})
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "student id is required")
		return
	}

	report, err := s.game.GetProgress(r.Context(), id)
	if err != nil {
		respondGameError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// Level handlers

func (s *Server) handleListLevels(w http.ResponseWriter, r *http.Request) {
	levels := s.library.List()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"levels": levels,
		"total":  len(levels),
	})
}

func (s *Server) handleGetLevelTasks(w http.ResponseWriter, r *http.Request) {
	levelID, err := strconv.Atoi(chi.URLParam(r, "levelID"))
	if err != nil || levelID < 1 {
		respondError(w, http.StatusBadRequest, "validation_error", "level id must be a positive integer")
		return
	}

	level, ok := s.library.Get(levelID)
	if !ok {
		respondError(w, http.StatusNotFound, "level_not_found", "level not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"level": level.ID,
		"tasks": level.Tasks,
	})
}

// Leaderboard handler

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := s.game.Top(r.Context(), 0)
	if err != nil {
		slog.Error("failed to compute leaderboard", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to compute leaderboard")
		return
	}

	respondJSON(w, http.StatusOK, models.LeaderboardSnapshot{Top5: entries})
}

// Game handlers

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseSubmission(w, r)
	if !ok {
		return
	}

	result, err := s.game.SubmitTask(r.Context(), req)
	if err != nil {
		respondGameError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseSubmission(w, r)
	if !ok {
		return
	}

	result, err := s.game.Predict(r.Context(), req)
	if err != nil {
		respondGameError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// parseSubmission decodes a multipart submission: student_id, level_id,
// task_id fields plus one image file per letter
func (s *Server) parseSubmission(w http.ResponseWriter, r *http.Request) (game.SubmitRequest, bool) {
	if err := r.ParseMultipartForm(maxSubmissionBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid multipart body")
		return game.SubmitRequest{}, false
	}

	studentID := r.FormValue("student_id")
	if studentID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "student_id is required")
		return game.SubmitRequest{}, false
	}

	levelID, err := strconv.Atoi(r.FormValue("level_id"))
	if err != nil || levelID < 1 {
		respondError(w, http.StatusBadRequest, "validation_error", "level_id must be a positive integer")
		return game.SubmitRequest{}, false
	}

	taskID, err := strconv.Atoi(r.FormValue("task_id"))
	if err != nil || taskID < 0 {
		respondError(w, http.StatusBadRequest, "validation_error", "task_id must be a non-negative integer")
		return game.SubmitRequest{}, false
	}

	files := r.MultipartForm.File["images"]
	images := make([][]byte, 0, len(files))
	for i, header := range files {
		file, err := header.Open()
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "failed to read image "+strconv.Itoa(i+1))
			return game.SubmitRequest{}, false
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "failed to read image "+strconv.Itoa(i+1))
			return game.SubmitRequest{}, false
		}
		images = append(images, data)
	}

	return game.SubmitRequest{
		StudentID: studentID,
		LevelID:   levelID,
		TaskID:    taskID,
		Images:    images,
	}, true
}
