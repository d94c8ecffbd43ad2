package services

import (
	"context"
	"sync"
	"time"

	"riskscreen-backend/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	EventRiskAlert = "risk_alert"
	EventDashboard = "dashboard"

	alertWriteWait = 5 * time.Second
)

type RiskAlert struct {
	SurveyID  string            `json:"surveyId"`
	UserID    *string           `json:"userId,omitempty"`
	Type      models.SurveyType `json:"type"`
	Phase     models.Phase      `json:"phase"`
	Score     float64           `json:"score"`
	RiskLevel models.RiskLevel  `json:"riskLevel"`
	CourseID  *string           `json:"courseId,omitempty"`
	ProgramID *string           `json:"programId,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

func NewRiskAlert(s models.Survey) RiskAlert {
	return RiskAlert{
		SurveyID:  s.ID,
		UserID:    s.UserID,
		Type:      s.Type,
		Phase:     s.Phase,
		Score:     s.Score,
		RiskLevel: s.RiskLevel,
		CourseID:  s.CourseID,
		ProgramID: s.ProgramID,
		CreatedAt: s.CreatedAt,
	}
}

type HubEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// AlertHub fans events out to every subscribed websocket.
type AlertHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	ch      chan HubEvent
	log     *zap.Logger
}

func NewAlertHub(log *zap.Logger) *AlertHub {
	return &AlertHub{
		clients: map[*websocket.Conn]bool{},
		ch:      make(chan HubEvent, 64),
		log:     loggerOrNop(log),
	}
}

func (h *AlertHub) Run(ctx context.Context) {
	for {
		select {
		case event := <-h.ch:
			h.deliver(event)
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

func (h *AlertHub) deliver(event HubEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(alertWriteWait))
		if err := conn.WriteJSON(event); err != nil {
			h.log.Debug("dropping alert subscriber", zap.Error(err))
			delete(h.clients, conn)
			_ = conn.Close()
		}
	}
}

func (h *AlertHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.Close()
		delete(h.clients, conn)
	}
}

// Broadcast never blocks; events are dropped when the queue is full.
func (h *AlertHub) Broadcast(event HubEvent) {
	select {
	case h.ch <- event:
	default:
		h.log.Warn("alert queue full, dropping event", zap.String("type", event.Type))
	}
}

func (h *AlertHub) PublishRiskAlert(alert RiskAlert) {
	h.Broadcast(HubEvent{Type: EventRiskAlert, Data: alert})
}

func (h *AlertHub) PublishDashboard(sample models.DashboardSample) {
	h.Broadcast(HubEvent{Type: EventDashboard, Data: sample})
}

func (h *AlertHub) Add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
}

func (h *AlertHub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

func (h *AlertHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// publishIfHigh forwards a high-risk evaluation to the alert publisher, if any.
func publishIfHigh(alerts AlertPublisher, s models.Survey) {
	if alerts == nil || s.RiskLevel != models.RiskHigh {
		return
	}
	alerts.PublishRiskAlert(NewRiskAlert(s))
}
