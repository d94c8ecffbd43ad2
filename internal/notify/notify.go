package notify

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"riskscreen-backend/internal/models"
	"riskscreen-backend/internal/services"
)

type message struct {
	Subject string
	Body    string
}

var (
	preSurveyTmpl = template.Must(template.New("pre").Parse(`Hello,

Thank you for registering for "{{.Title}}". Before you start, please take the short screening survey below. Your answers help us tailor the course to you.

Pre-survey: {{.Link}}

If the link does not open, copy it into your browser.

The Drug Prevention team
`))

	postSurveyTmpl = template.Must(template.New("post").Parse(`Hello,

Congratulations on completing "{{.Title}}". Please spend two or three minutes on the follow-up survey so we can keep improving:

{{.Link}}

Thank you for your feedback.

The Drug Prevention team
`))

	riskTmpl = template.Must(template.New("risk").Parse(`Hello,

Your screening for "{{.Subject}}" scored {{.Score}}, which is a {{.Level}} risk level.

{{.Message}}
{{range .Actions}}
- {{.Label}}: {{.Link}}{{end}}

The Drug Prevention team
`))

	appointmentTmpl = template.Must(template.New("appointment").Parse(`Hello,

Your consultation scheduled for {{.When}} is now {{.Status}}.

The Drug Prevention team
`))
)

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func actionLabel(action string) string {
	switch action {
	case services.ActionBookConsultation:
		return "Book a consultation"
	case services.ActionProceed:
		return "Continue"
	}
	return action
}

func absolute(baseURL, link string) string {
	if strings.HasPrefix(link, "/") {
		return strings.TrimRight(baseURL, "/") + link
	}
	return link
}

func preSurveyMessage(course models.Course, link string) (message, error) {
	body, err := render(preSurveyTmpl, map[string]string{"Title": course.Title, "Link": link})
	return message{Subject: "Pre-course survey: " + course.Title, Body: body}, err
}

func postSurveyMessage(course models.Course, link string) (message, error) {
	body, err := render(postSurveyTmpl, map[string]string{"Title": course.Title, "Link": link})
	return message{Subject: "Post-course survey: " + course.Title, Body: body}, err
}

func riskMessage(baseURL string, notice services.RiskNotice) (message, error) {
	type action struct{ Label, Link string }
	actions := make([]action, 0, len(notice.Recommendation.NextActions))
	for _, next := range notice.Recommendation.NextActions {
		actions = append(actions, action{Label: actionLabel(next.Action), Link: absolute(baseURL, next.Link)})
	}
	body, err := render(riskTmpl, map[string]any{
		"Subject": notice.Subject,
		"Score":   notice.Score,
		"Level":   string(notice.RiskLevel),
		"Message": notice.Recommendation.Message,
		"Actions": actions,
	})
	return message{Subject: fmt.Sprintf("Screening result: %s", notice.Subject), Body: body}, err
}

func appointmentMessage(appointment models.Appointment) (message, error) {
	body, err := render(appointmentTmpl, map[string]string{
		"When":   appointment.ScheduledAt.UTC().Format("2006-01-02 15:04 MST"),
		"Status": string(appointment.Status),
	})
	return message{Subject: "Appointment " + string(appointment.Status), Body: body}, err
}
