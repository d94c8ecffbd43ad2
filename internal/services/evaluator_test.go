package services

import (
	"testing"

	"riskscreen-backend/internal/models"
)

func TestEvaluateClassifiesRiskTiers(t *testing.T) {
	tests := []struct {
		name    string
		typ     models.SurveyType
		answers []float64
		score   float64
		level   models.RiskLevel
	}{
		{"assist zero", models.SurveyASSIST, answersOf(0, 10), 0, models.RiskLow},
		{"assist low boundary", models.SurveyASSIST, answersOf(1, 10), 10, models.RiskLow},
		{"assist moderate", models.SurveyASSIST, []float64{2, 2, 2, 2, 2, 1, 0, 0, 0, 0}, 11, models.RiskModerate},
		{"assist moderate boundary", models.SurveyASSIST, []float64{3, 3, 3, 3, 3, 3, 3, 3, 2, 0}, 26, models.RiskModerate},
		{"assist high", models.SurveyASSIST, []float64{3, 3, 3, 3, 3, 3, 3, 3, 3, 0}, 27, models.RiskHigh},
		{"crafft low", models.SurveyCRAFFT, answersOf(0, 6), 0, models.RiskLow},
		{"crafft moderate", models.SurveyCRAFFT, []float64{1, 0, 0, 0, 0, 0}, 1, models.RiskModerate},
		{"crafft moderate boundary", models.SurveyCRAFFT, []float64{1, 1, 0, 0, 0, 0}, 2, models.RiskModerate},
		{"crafft high", models.SurveyCRAFFT, []float64{1, 1, 1, 0, 0, 0}, 3, models.RiskHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval, err := Evaluate(tt.typ, tt.answers)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if eval.Score != tt.score || eval.RiskLevel != tt.level {
				t.Fatalf("got %v/%s, want %v/%s", eval.Score, eval.RiskLevel, tt.score, tt.level)
			}
		})
	}
}

func TestEvaluateRejectsWrongAnswerCount(t *testing.T) {
	_, err := Evaluate(models.SurveyASSIST, answersOf(0, 9))
	expectKind(t, err, KindValidation)
	_, err = Evaluate(models.SurveyCRAFFT, answersOf(0, 7))
	expectKind(t, err, KindValidation)
	_, err = Evaluate(models.SurveyType("AUDIT"), answersOf(0, 6))
	expectKind(t, err, KindValidation)
}

func TestValidateOptions(t *testing.T) {
	if err := ValidateOptions(models.SurveyCRAFFT, []float64{0, 1, 0, 1, 0, 1}); err != nil {
		t.Fatalf("expected valid answers, got %v", err)
	}
	expectKind(t, ValidateOptions(models.SurveyCRAFFT, []float64{0, 2, 0, 0, 0, 0}), KindValidation)
	expectKind(t, ValidateOptions(models.SurveyASSIST, []float64{0, 1, 2, 3, 4, 0, 0, 0, 0, 0}), KindValidation)
}

func TestRecommendActionsPerTier(t *testing.T) {
	links := CourseLinks("c-1")
	tests := []struct {
		level models.RiskLevel
		want  []NextAction
	}{
		{models.RiskHigh, []NextAction{{ActionBookConsultation, "/api/appointments?course=c-1"}}},
		{models.RiskModerate, []NextAction{
			{ActionBookConsultation, "/api/appointments?course=c-1"},
			{ActionProceed, "/courses/c-1/content"},
		}},
		{models.RiskLow, []NextAction{{ActionProceed, "/courses/c-1/content"}}},
	}
	for _, tt := range tests {
		rec := Recommend(tt.level, links)
		if rec.Message == "" {
			t.Fatalf("%s: empty message", tt.level)
		}
		if len(rec.NextActions) != len(tt.want) {
			t.Fatalf("%s: got %v want %v", tt.level, rec.NextActions, tt.want)
		}
		for i := range tt.want {
			if rec.NextActions[i] != tt.want[i] {
				t.Fatalf("%s: action %d got %v want %v", tt.level, i, rec.NextActions[i], tt.want[i])
			}
		}
	}
}

func TestRecommendationLinkSets(t *testing.T) {
	if got := ProgramLinks("p-1"); got.Proceed != "/programs/p-1" || got.Consultation != "/api/appointments?program=p-1" {
		t.Fatalf("unexpected program links %+v", got)
	}
	if got := PublicLinks(); got.Proceed != "/courses" || got.Consultation != "/appointments" {
		t.Fatalf("unexpected public links %+v", got)
	}
}
