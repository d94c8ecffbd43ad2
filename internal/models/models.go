package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type User struct {
	ID             string     `db:"id" json:"id"`
	Username       string     `db:"username" json:"username"`
	Email          string     `db:"email" json:"email"`
	FullName       *string    `db:"full_name" json:"fullName,omitempty"`
	PasswordHash   string     `db:"password_hash" json:"-"`
	Role           Role       `db:"role" json:"role"`
	IsVerified     bool       `db:"is_verified" json:"isVerified"`
	Bio            *string    `db:"bio" json:"bio,omitempty"`
	Qualifications StringList `db:"qualifications" json:"qualifications,omitempty"`
	Specialties    StringList `db:"specialties" json:"specialties,omitempty"`
	WorkSchedule   StringList `db:"work_schedule" json:"workSchedule,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

type Course struct {
	ID          string     `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	AgeGroup    AgeGroup   `db:"age_group" json:"ageGroup"`
	Content     string     `db:"content" json:"content"`
	Category    string     `db:"category" json:"category"`
	Price       float64    `db:"price" json:"price"`
	SurveyType  SurveyType `db:"survey_type" json:"surveyType"`
	CreatedBy   string     `db:"created_by" json:"createdBy"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

type CourseRegistration struct {
	ID             string     `db:"id" json:"id"`
	UserID         string     `db:"user_id" json:"userId"`
	CourseID       string     `db:"course_id" json:"courseId"`
	RegisteredAt   time.Time  `db:"registered_at" json:"registeredAt"`
	Completed      bool       `db:"completed" json:"completed"`
	PreSurveyDone  bool       `db:"pre_survey_done" json:"preSurveyDone"`
	PreSurveyAt    *time.Time `db:"pre_survey_at" json:"preSurveyAt,omitempty"`
	PreRiskLevel   *RiskLevel `db:"pre_risk_level" json:"preRiskLevel,omitempty"`
	PostSurveyDone bool       `db:"post_survey_done" json:"postSurveyDone"`
	PostSurveyAt   *time.Time `db:"post_survey_at" json:"postSurveyAt,omitempty"`
}

type Program struct {
	ID          string      `db:"id" json:"id"`
	Title       string      `db:"title" json:"title"`
	Description string      `db:"description" json:"description"`
	StartDate   time.Time   `db:"start_date" json:"startDate"`
	EndDate     time.Time   `db:"end_date" json:"endDate"`
	Location    *string     `db:"location" json:"location,omitempty"`
	PreSurvey   *SurveyType `db:"pre_survey" json:"preSurvey,omitempty"`
	PostSurvey  *SurveyType `db:"post_survey" json:"postSurvey,omitempty"`
	CreatedBy   string      `db:"created_by" json:"createdBy"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updatedAt"`
}

// RequiredInstrument reports the instrument a program fixes for a phase, if any.
func (p Program) RequiredInstrument(phase Phase) *SurveyType {
	switch phase {
	case PhasePre:
		return p.PreSurvey
	case PhasePost:
		return p.PostSurvey
	}
	return nil
}

type ProgramParticipant struct {
	ProgramID    string    `db:"program_id" json:"programId"`
	UserID       string    `db:"user_id" json:"userId"`
	Username     string    `db:"username" json:"username,omitempty"`
	Email        string    `db:"email" json:"email,omitempty"`
	RegisteredAt time.Time `db:"registered_at" json:"registeredAt"`
}

type Survey struct {
	ID        string     `db:"id" json:"id"`
	UserID    *string    `db:"user_id" json:"userId,omitempty"`
	Email     *string    `db:"email" json:"email,omitempty"`
	Type      SurveyType `db:"type" json:"type"`
	Phase     Phase      `db:"phase" json:"phase"`
	Answers   Answers    `db:"answers" json:"answers"`
	Score     float64    `db:"score" json:"score"`
	RiskLevel RiskLevel  `db:"risk_level" json:"riskLevel"`
	CourseID  *string    `db:"course_id" json:"courseId,omitempty"`
	ProgramID *string    `db:"program_id" json:"programId,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
}

type Appointment struct {
	ID           string            `db:"id" json:"id"`
	UserID       string            `db:"user_id" json:"userId"`
	ConsultantID string            `db:"consultant_id" json:"consultantId"`
	ScheduledAt  time.Time         `db:"scheduled_at" json:"scheduledAt"`
	Status       AppointmentStatus `db:"status" json:"status"`
	CreatedAt    time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updatedAt"`
}

type DashboardSample struct {
	CapturedAt          time.Time `db:"captured_at" json:"capturedAt"`
	ProcessRSSBytes     int64     `db:"process_rss_bytes" json:"processRssBytes"`
	SystemMemoryTotal   int64     `db:"system_memory_total_bytes" json:"systemMemoryTotalBytes"`
	SystemMemoryUsed    int64     `db:"system_memory_used_bytes" json:"systemMemoryUsedBytes"`
	DiskTotalBytes      int64     `db:"disk_total_bytes" json:"diskTotalBytes"`
	DiskUsedBytes       int64     `db:"disk_used_bytes" json:"diskUsedBytes"`
	ProcessCPULoad      float64   `db:"process_cpu_load" json:"processCpuLoad"`
	SystemCPULoad       float64   `db:"system_cpu_load" json:"systemCpuLoad"`
	PendingAppointments int       `db:"pending_appointments" json:"pendingAppointments"`
	HighRiskLastDay     int       `db:"high_risk_last_day" json:"highRiskLastDay"`
}

// Answers is stored as a JSONB array.
type Answers []float64

func (a Answers) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]float64(a))
}

func (a *Answers) Scan(src any) error {
	return scanJSON(src, (*[]float64)(a))
}

// StringList is stored as a JSONB array.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

func (l *StringList) Scan(src any) error {
	return scanJSON(src, (*[]string)(l))
}

func scanJSON(src any, dest any) error {
	switch value := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(value, dest)
	case string:
		return json.Unmarshal([]byte(value), dest)
	}
	return errors.New("unsupported json column type")
}
