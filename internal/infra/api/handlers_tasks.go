package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"langtest-practice/internal/domain"
	"langtest-practice/internal/domain/model"
	"langtest-practice/internal/usecase"

	"github.com/go-chi/chi/v5"
)

type availableResponse struct {
	Status          string       `json:"status"`
	Tasks           []model.Task `json:"tasks"`
	CanGenerate     bool         `json:"canGenerate"`
	RemainingDemo   *int         `json:"remainingDemo,omitempty"`
	UpgradeRequired bool         `json:"upgradeRequired,omitempty"`
	LoginRequired   bool         `json:"loginRequired,omitempty"`
	Message         string       `json:"message"`
}

func (s *Server) handleAvailable(w http.ResponseWriter, r *http.Request) {
	av, err := s.tasks.Available(r.Context(), AccountID(r.Context()))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	resp := availableResponse{
		Status:          av.Status,
		Tasks:           av.Tasks,
		CanGenerate:     av.CanGenerate,
		UpgradeRequired: av.UpgradeRequired,
		LoginRequired:   av.LoginRequired,
		Message:         av.Message,
	}
	if av.Status == usecase.StatusDemo {
		n := av.RemainingDemo
		resp.RemainingDemo = &n
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.tasks.Get(r.Context(), AccountID(r.Context()), chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task": task})
}

type generateRequest struct {
	Type string `json:"type"`
	Mode string `json:"mode"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	res, err := s.tasks.Generate(r.Context(), AccountID(r.Context()), req.Type, req.Mode)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeResult(w, "task", res)
}

type evaluateWritingRequest struct {
	Task     *model.Task `json:"task"`
	UserText string      `json:"userText"`
}

func (s *Server) handleEvaluateWriting(w http.ResponseWriter, r *http.Request) {
	var req evaluateWritingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	res, err := s.tasks.EvaluateWriting(r.Context(), AccountID(r.Context()), req.Task, req.UserText)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeResult(w, "result", res)
}

type evaluateSpeakingRequest struct {
	Task        *model.Task `json:"task"`
	AudioBase64 string      `json:"audioBase64"`
	MIMEType    string      `json:"mimeType"`
}

func (s *Server) handleEvaluateSpeaking(w http.ResponseWriter, r *http.Request) {
	var req evaluateSpeakingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	audio, mime, err := decodeAudio(req.AudioBase64)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if req.MIMEType != "" {
		mime = req.MIMEType
	}
	res, err := s.tasks.EvaluateSpeaking(r.Context(), AccountID(r.Context()), req.Task, audio, mime)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeResult(w, "result", res)
}

// decodeAudio accepts raw base64 or a data URL ("data:audio/webm;base64,...").
func decodeAudio(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, "", fmt.Errorf("%w: audio data required", domain.ErrInvalidArgument)
	}
	var mime string
	if strings.HasPrefix(s, "data:") {
		head, body, ok := strings.Cut(s, ",")
		if !ok {
			return nil, "", fmt.Errorf("%w: bad audio data url", domain.ErrInvalidArgument)
		}
		mime = strings.TrimSuffix(strings.TrimPrefix(head, "data:"), ";base64")
		s = body
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, "", fmt.Errorf("%w: audio is not base64", domain.ErrInvalidArgument)
	}
	return b, mime, nil
}

func writeResult(w http.ResponseWriter, key string, res *model.TaskResult) {
	body := map[string]any{key: json.RawMessage(res.Payload)}
	if res.Degraded {
		body["degraded"] = true
	}
	writeJSON(w, http.StatusOK, body)
}
