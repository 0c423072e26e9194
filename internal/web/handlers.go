package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"gorm.io/gorm"

	"github.com/advisorloop/autoengine/internal/storage"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// Engine controls

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Start(); err != nil {
		s.writeError(w, http.StatusConflict, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Stop(); err != nil {
		s.writeError(w, http.StatusConflict, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	// Synchronous single pass; blocks until the cycle (and any cycle it is
	// queued behind) completes.
	s.engine.RunCycleNow(r.Context())
	s.writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Status())
}

// Read endpoints

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	open, err := s.repo.GetOpenPositions()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	recent, err := s.repo.GetRecentPositions(50)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"open":   open,
		"recent": recent,
	})
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	logs, err := s.repo.GetRecentCycleLogs(50)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	logs, err := s.repo.GetRecentTradeLogs(50)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.repo.GetAccount()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	todayPnL, _ := s.repo.GetTodayPnL(s.config.MarketLocation())
	totalPnL, _ := s.repo.GetTotalPnL()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"cash":      account.Cash,
		"today_pnl": todayPnL,
		"total_pnl": totalPnL,
	})
}

// Automations

func (s *Server) handleListAutomations(w http.ResponseWriter, r *http.Request) {
	automations, err := s.repo.GetAutomations()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, automations)
}

func (s *Server) handleCreateAutomation(w http.ResponseWriter, r *http.Request) {
	var a storage.Automation
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := validateAutomation(&a); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.repo.SaveAutomation(&a); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleUpdateAutomation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid automation id"))
		return
	}

	existing, err := s.repo.GetAutomation(uint(id))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.writeError(w, http.StatusNotFound, errors.New("automation not found"))
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	var a storage.Automation
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	a.ID = existing.ID
	a.CreatedAt = existing.CreatedAt
	if err := validateAutomation(&a); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.repo.UpdateAutomation(&a); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, a)
}

func (s *Server) handlePauseAutomation(w http.ResponseWriter, r *http.Request) {
	s.setPaused(w, r, true)
}

func (s *Server) handleResumeAutomation(w http.ResponseWriter, r *http.Request) {
	s.setPaused(w, r, false)
}

func (s *Server) setPaused(w http.ResponseWriter, r *http.Request, paused bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid automation id"))
		return
	}
	a, err := s.repo.SetAutomationPaused(uint(id), paused)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.writeError(w, http.StatusNotFound, errors.New("automation not found"))
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, a)
}

func validateAutomation(a *storage.Automation) error {
	if a.Name == "" {
		return errors.New("name is required")
	}
	if a.Symbol == "" && a.Watchlist == "" {
		return errors.New("symbol or watchlist is required")
	}
	if a.MinConfidence < 0 || a.MinConfidence > 1 {
		return errors.New("min_confidence must be between 0.0 and 1.0")
	}
	if a.DeltaMin > a.DeltaMax {
		return errors.New("delta_min must not exceed delta_max")
	}
	if a.StopLossPercent < 0 {
		return errors.New("stop_loss_percent must be a positive magnitude")
	}
	return nil
}
