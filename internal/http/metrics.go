package httpapi

import (
	"net/http"

	"riskscreen-backend/internal/models"
	"riskscreen-backend/internal/services"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type DashboardHistoryResponse struct {
	Items []models.DashboardSample `json:"items"`
}

func (s *Server) DashboardHistory(w http.ResponseWriter, r *http.Request) {
	items, err := s.Dashboard.History(r.Context(), parseInt(r.URL.Query().Get("limit"), 0))
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, DashboardHistoryResponse{Items: items})
}

func (s *Server) allowedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.Config.CorsOrigins) == 0 {
		return true
	}
	for _, allowed := range s.Config.CorsOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// AlertSocket streams risk alerts and dashboard samples; browsers pass the access token as ?token=.
func (s *Server) AlertSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		WriteError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}
	identity, err := s.Guard.Authenticate(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	if err := s.Guard.Authorize(services.OpSubscribeAlerts, identity); err != nil {
		writeServiceError(w, r, s.Log, err)
		return
	}
	upgrader := websocket.Upgrader{CheckOrigin: s.allowedOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Warn("alert socket upgrade failed", zap.Error(err))
		return
	}
	s.Hub.Add(conn)
	defer func() {
		s.Hub.Remove(conn)
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
