package api

import (
	"net/http"
	"time"

	"langtest-practice/internal/domain"
	"langtest-practice/internal/domain/model"
	"langtest-practice/internal/usecase"
)

type userView struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	IsPremium     bool       `json:"isPremium"`
	PremiumUntil  *time.Time `json:"premiumUntil"`
	DemoTasksUsed int        `json:"demoTasksUsed"`
	DemoRemaining int        `json:"demoRemaining"`
}

func newUserView(acc *model.AccountRecord, ent model.EffectiveEntitlement) userView {
	v := userView{
		ID:            acc.ID,
		Email:         acc.Email,
		Name:          acc.Name,
		IsPremium:     ent.IsPremium,
		DemoTasksUsed: acc.DemoTasksUsed,
		DemoRemaining: ent.DemoRemaining,
	}
	if ent.IsPremium {
		v.PremiumUntil = acc.PremiumUntil
	}
	return v
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	acc, err := s.accounts.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	token, err := s.auth.Mint(acc.ID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	ent, _ := model.ComputeEffectiveState(acc, time.Now())
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Registration successful",
		"token":   token,
		"user":    newUserView(acc, ent),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	acc, ent, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	token, err := s.auth.Mint(acc.ID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"token":   token,
		"user":    newUserView(acc, ent),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id := AccountID(r.Context())
	if id == "" {
		writeError(w, r, s.log, domain.ErrUnauthenticated)
		return
	}
	acc, ent, err := s.accounts.Profile(r.Context(), id)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": newUserView(acc, ent)})
}

type profileRequest struct {
	Name            string `json:"name"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id := AccountID(r.Context())
	if id == "" {
		writeError(w, r, s.log, domain.ErrUnauthenticated)
		return
	}
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	err := s.accounts.UpdateProfile(r.Context(), id, usecase.ProfileUpdate{
		Name:            req.Name,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Profile updated successfully"})
}
