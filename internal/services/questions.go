package services

import "riskscreen-backend/internal/models"

type QuestionOption struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

type Question struct {
	ID      int              `json:"id"`
	Text    string           `json:"text"`
	Options []QuestionOption `json:"options"`
}

func frequencyOptions(sometimes, often string) []QuestionOption {
	return []QuestionOption{
		{Label: "Never", Value: 0},
		{Label: sometimes, Value: 1},
		{Label: often, Value: 2},
		{Label: "Always", Value: 3},
	}
}

func yesNoOptions() []QuestionOption {
	return []QuestionOption{
		{Label: "No", Value: 0},
		{Label: "Yes", Value: 1},
	}
}

var assistQuestions = []Question{
	{ID: 1, Text: "In the past 3 months, have you felt unable to control your drug use?", Options: frequencyOptions("Sometimes", "Often")},
	{ID: 2, Text: "Have you used drugs to feel relaxed or high?", Options: frequencyOptions("Sometimes", "Often")},
	{ID: 3, Text: "Do you remember what you did while using drugs?", Options: frequencyOptions("A few times", "Many times")},
	{ID: 4, Text: "Have you felt regret or guilt after using drugs?", Options: frequencyOptions("Sometimes", "Often")},
	{ID: 5, Text: "Have other people complained about your drug use?", Options: frequencyOptions("A few times", "Many times")},
	{ID: 6, Text: "Have you tried to cut down or stop using drugs without success?", Options: frequencyOptions("Sometimes", "Often")},
	{ID: 7, Text: "Have you used drugs even though you knew they could harm your health?", Options: frequencyOptions("Sometimes", "Often")},
	{ID: 8, Text: "Do you use drugs alone to cope with stress?", Options: frequencyOptions("Sometimes", "Often")},
	{ID: 9, Text: "Have you needed more drugs to reach the same high?", Options: frequencyOptions("A few times", "Many times")},
	{ID: 10, Text: "Have you had trouble finishing work or study because of drug use?", Options: frequencyOptions("Sometimes", "Often")},
}

var crafftQuestions = []Question{
	{ID: 1, Text: "Have you used drugs while driving or riding in a car driven by someone else?", Options: yesNoOptions()},
	{ID: 2, Text: "Do you use drugs to cope with stress or boredom?", Options: yesNoOptions()},
	{ID: 3, Text: "Do you forget things you did while using drugs?", Options: yesNoOptions()},
	{ID: 4, Text: "Have family or friends told you to stop using drugs?", Options: yesNoOptions()},
	{ID: 5, Text: "Have you missed an important opportunity (work, study) because of drug use?", Options: yesNoOptions()},
	{ID: 6, Text: "Have you used drugs knowing they could cause legal or health trouble?", Options: yesNoOptions()},
}

// Questions returns the question bank for an instrument.
func Questions(surveyType models.SurveyType) ([]Question, error) {
	switch surveyType {
	case models.SurveyASSIST:
		return assistQuestions, nil
	case models.SurveyCRAFFT:
		return crafftQuestions, nil
	}
	return nil, ErrValidation("Invalid survey type")
}
