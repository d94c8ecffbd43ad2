package services

import (
	"fmt"

	"riskscreen-backend/internal/models"
)

const (
	assistAnswerCount = 10
	crafftAnswerCount = 6

	assistLowMax      = 10
	assistModerateMax = 26
	crafftModerateMax = 2
)

type Evaluation struct {
	Score     float64          `json:"score"`
	RiskLevel models.RiskLevel `json:"riskLevel"`
}

// Evaluate scores a response and classifies it into a risk tier.
func Evaluate(surveyType models.SurveyType, answers []float64) (Evaluation, error) {
	expected, err := expectedAnswers(surveyType)
	if err != nil {
		return Evaluation{}, err
	}
	if len(answers) != expected {
		return Evaluation{}, ErrValidation(fmt.Sprintf("%s requires exactly %d answers", surveyType, expected))
	}
	score := 0.0
	for _, answer := range answers {
		score += answer
	}
	return Evaluation{Score: score, RiskLevel: classify(surveyType, score)}, nil
}

// ValidateOptions checks every answer against the option values of its question.
func ValidateOptions(surveyType models.SurveyType, answers []float64) error {
	questions, err := Questions(surveyType)
	if err != nil {
		return err
	}
	if len(answers) != len(questions) {
		return ErrValidation(fmt.Sprintf("%s requires exactly %d answers", surveyType, len(questions)))
	}
	for i, question := range questions {
		valid := false
		for _, option := range question.Options {
			if option.Value == answers[i] {
				valid = true
				break
			}
		}
		if !valid {
			return ErrValidation(fmt.Sprintf("Invalid answer for question %d", question.ID))
		}
	}
	return nil
}

func expectedAnswers(surveyType models.SurveyType) (int, error) {
	switch surveyType {
	case models.SurveyASSIST:
		return assistAnswerCount, nil
	case models.SurveyCRAFFT:
		return crafftAnswerCount, nil
	}
	return 0, ErrValidation("Invalid survey type")
}

func classify(surveyType models.SurveyType, score float64) models.RiskLevel {
	switch surveyType {
	case models.SurveyASSIST:
		switch {
		case score <= assistLowMax:
			return models.RiskLow
		case score <= assistModerateMax:
			return models.RiskModerate
		}
		return models.RiskHigh
	case models.SurveyCRAFFT:
		switch {
		case score <= 0:
			return models.RiskLow
		case score <= crafftModerateMax:
			return models.RiskModerate
		}
		return models.RiskHigh
	}
	return models.RiskHigh
}
