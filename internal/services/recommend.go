package services

import "riskscreen-backend/internal/models"

const (
	ActionBookConsultation = "bookConsultation"
	ActionProceed          = "proceed"
)

type NextAction struct {
	Action string `json:"action"`
	Link   string `json:"link"`
}

type Recommendation struct {
	Message     string       `json:"message"`
	NextActions []NextAction `json:"nextActions"`
}

// RecommendationLinks are the context-specific targets a recommendation points to.
type RecommendationLinks struct {
	Proceed      string
	Consultation string
}

func CourseLinks(courseID string) RecommendationLinks {
	return RecommendationLinks{
		Proceed:      "/courses/" + courseID + "/content",
		Consultation: "/api/appointments?course=" + courseID,
	}
}

func ProgramLinks(programID string) RecommendationLinks {
	return RecommendationLinks{
		Proceed:      "/programs/" + programID,
		Consultation: "/api/appointments?program=" + programID,
	}
}

func PublicLinks() RecommendationLinks {
	return RecommendationLinks{
		Proceed:      "/courses",
		Consultation: "/appointments",
	}
}

func Recommend(level models.RiskLevel, links RecommendationLinks) Recommendation {
	book := NextAction{Action: ActionBookConsultation, Link: links.Consultation}
	proceed := NextAction{Action: ActionProceed, Link: links.Proceed}
	switch level {
	case models.RiskHigh:
		return Recommendation{
			Message:     "Your risk level is high. Please book a consultation with a specialist as soon as possible.",
			NextActions: []NextAction{book},
		}
	case models.RiskModerate:
		return Recommendation{
			Message:     "Your risk level is moderate. Consider booking a consultation before you continue.",
			NextActions: []NextAction{book, proceed},
		}
	}
	return Recommendation{
		Message:     "Your risk level is low. You can continue right away.",
		NextActions: []NextAction{proceed},
	}
}
