package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"riskscreen-backend/internal/db"
	"riskscreen-backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// adminBootstrapLock serializes first-admin creation across connections.
const adminBootstrapLock = 7291001

type Postgres struct {
	DB *sqlx.DB
}

func NewPostgres(database *sqlx.DB) *Postgres {
	return &Postgres{DB: database}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows), db.IsInvalidInput(err):
		return ErrNotFound
	case db.IsUniqueViolation(err):
		return ErrDuplicate
	}
	return err
}

func expectOne(res sql.Result, err error) error {
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const userColumns = `id, username, email, full_name, password_hash, role, is_verified, bio,
  qualifications, specialties, work_schedule, created_at, updated_at`

func (p *Postgres) InsertUser(ctx context.Context, u *models.User, onlyIfNoAdmin bool) (bool, error) {
	tx, err := p.DB.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()
	if onlyIfNoAdmin {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, adminBootstrapLock); err != nil {
			return false, err
		}
		var admins int
		if err := tx.GetContext(ctx, &admins, `SELECT COUNT(*) FROM users WHERE role = $1`, models.RoleAdmin); err != nil {
			return false, err
		}
		if admins > 0 {
			return false, nil
		}
	}
	_, err = tx.NamedExecContext(ctx, `
INSERT INTO users (`+userColumns+`)
VALUES (:id, :username, :email, :full_name, :password_hash, :role, :is_verified, :bio,
  :qualifications, :specialties, :work_schedule, :created_at, :updated_at)
`, u)
	if err != nil {
		return false, translate(err)
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Postgres) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := p.DB.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (p *Postgres) FindUserByLogin(ctx context.Context, login string) (*models.User, error) {
	var u models.User
	err := p.DB.GetContext(ctx, &u, `
SELECT `+userColumns+` FROM users
WHERE lower(email) = lower($1) OR username = $1
LIMIT 1
`, login)
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (p *Postgres) ListUsers(ctx context.Context, role models.Role) ([]models.User, error) {
	items := []models.User{}
	err := p.DB.SelectContext(ctx, &items, `
SELECT `+userColumns+` FROM users
WHERE ($1 = '' OR role = $1)
ORDER BY created_at DESC
`, string(role))
	return items, err
}

func (p *Postgres) UpdateUser(ctx context.Context, u *models.User) error {
	res, err := p.DB.NamedExecContext(ctx, `
UPDATE users SET username = :username, email = :email, full_name = :full_name,
  password_hash = :password_hash, role = :role, is_verified = :is_verified, bio = :bio,
  qualifications = :qualifications, specialties = :specialties, work_schedule = :work_schedule,
  updated_at = :updated_at
WHERE id = :id
`, u)
	return expectOne(res, err)
}

func (p *Postgres) DeleteUser(ctx context.Context, id string) error {
	res, err := p.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	return expectOne(res, err)
}

const courseColumns = `id, title, description, age_group, content, category, price, survey_type,
  created_by, created_at, updated_at`

func (p *Postgres) InsertCourse(ctx context.Context, c *models.Course) error {
	_, err := p.DB.NamedExecContext(ctx, `
INSERT INTO courses (`+courseColumns+`)
VALUES (:id, :title, :description, :age_group, :content, :category, :price, :survey_type,
  :created_by, :created_at, :updated_at)
`, c)
	return translate(err)
}

func (p *Postgres) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	var c models.Course
	if err := p.DB.GetContext(ctx, &c, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id); err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (p *Postgres) ListCourses(ctx context.Context) ([]models.Course, error) {
	items := []models.Course{}
	err := p.DB.SelectContext(ctx, &items, `SELECT `+courseColumns+` FROM courses ORDER BY created_at DESC`)
	return items, err
}

func (p *Postgres) UpdateCourse(ctx context.Context, c *models.Course) error {
	res, err := p.DB.NamedExecContext(ctx, `
UPDATE courses SET title = :title, description = :description, age_group = :age_group,
  content = :content, category = :category, price = :price, survey_type = :survey_type,
  updated_at = :updated_at
WHERE id = :id
`, c)
	return expectOne(res, err)
}

func (p *Postgres) DeleteCourse(ctx context.Context, id string) error {
	res, err := p.DB.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	return expectOne(res, err)
}

const registrationColumns = `id, user_id, course_id, registered_at, completed, pre_survey_done,
  pre_survey_at, pre_risk_level, post_survey_done, post_survey_at`

func (p *Postgres) InsertRegistration(ctx context.Context, reg *models.CourseRegistration) error {
	_, err := p.DB.NamedExecContext(ctx, `
INSERT INTO course_registrations (`+registrationColumns+`)
VALUES (:id, :user_id, :course_id, :registered_at, :completed, :pre_survey_done,
  :pre_survey_at, :pre_risk_level, :post_survey_done, :post_survey_at)
`, reg)
	return translate(err)
}

func (p *Postgres) GetRegistration(ctx context.Context, userID, courseID string) (*models.CourseRegistration, error) {
	var reg models.CourseRegistration
	err := p.DB.GetContext(ctx, &reg, `
SELECT `+registrationColumns+` FROM course_registrations
WHERE user_id = $1 AND course_id = $2
`, userID, courseID)
	if err != nil {
		return nil, translate(err)
	}
	return &reg, nil
}

func (p *Postgres) ListRegistrationsByUser(ctx context.Context, userID string) ([]models.CourseRegistration, error) {
	items := []models.CourseRegistration{}
	err := p.DB.SelectContext(ctx, &items, `
SELECT `+registrationColumns+` FROM course_registrations
WHERE user_id = $1
ORDER BY registered_at DESC
`, userID)
	return items, err
}

func (p *Postgres) ListRegistrationsByCourse(ctx context.Context, courseID string) ([]models.CourseRegistration, error) {
	items := []models.CourseRegistration{}
	err := p.DB.SelectContext(ctx, &items, `
SELECT `+registrationColumns+` FROM course_registrations
WHERE course_id = $1
ORDER BY registered_at DESC
`, courseID)
	return items, err
}

func (p *Postgres) CompleteRegistration(ctx context.Context, userID, courseID string, _ time.Time) error {
	res, err := p.DB.ExecContext(ctx, `
UPDATE course_registrations SET completed = TRUE
WHERE user_id = $1 AND course_id = $2 AND completed = FALSE
`, userID, courseID)
	if err := expectOne(res, err); err != nil {
		if errors.Is(err, ErrNotFound) {
			return p.stateOrMissing(ctx, userID, courseID)
		}
		return err
	}
	return nil
}

// stateOrMissing distinguishes a guarded update that lost its race from a missing row.
func (p *Postgres) stateOrMissing(ctx context.Context, userID, courseID string) error {
	if _, err := p.GetRegistration(ctx, userID, courseID); err != nil {
		return err
	}
	return ErrStateChanged
}

func (p *Postgres) RecordCourseSurvey(ctx context.Context, s *models.Survey) error {
	if s.UserID == nil || s.CourseID == nil {
		return ErrNotFound
	}
	tx, err := p.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var res sql.Result
	switch s.Phase {
	case models.PhasePre:
		res, err = tx.ExecContext(ctx, `
UPDATE course_registrations
SET pre_survey_done = TRUE, pre_survey_at = $3, pre_risk_level = $4
WHERE user_id = $1 AND course_id = $2 AND pre_survey_done = FALSE
`, *s.UserID, *s.CourseID, s.CreatedAt, s.RiskLevel)
	case models.PhasePost:
		res, err = tx.ExecContext(ctx, `
UPDATE course_registrations
SET post_survey_done = TRUE, post_survey_at = $3
WHERE user_id = $1 AND course_id = $2 AND post_survey_done = FALSE
`, *s.UserID, *s.CourseID, s.CreatedAt)
	default:
		return ErrStateChanged
	}
	if err := expectOne(res, err); err != nil {
		if errors.Is(err, ErrNotFound) {
			return p.stateOrMissing(ctx, *s.UserID, *s.CourseID)
		}
		return err
	}
	if err := insertSurvey(ctx, tx, s); err != nil {
		return err
	}
	return tx.Commit()
}

const programColumns = `id, title, description, start_date, end_date, location, pre_survey,
  post_survey, created_by, created_at, updated_at`

func (p *Postgres) InsertProgram(ctx context.Context, program *models.Program) error {
	_, err := p.DB.NamedExecContext(ctx, `
INSERT INTO programs (`+programColumns+`)
VALUES (:id, :title, :description, :start_date, :end_date, :location, :pre_survey,
  :post_survey, :created_by, :created_at, :updated_at)
`, program)
	return translate(err)
}

func (p *Postgres) GetProgram(ctx context.Context, id string) (*models.Program, error) {
	var program models.Program
	if err := p.DB.GetContext(ctx, &program, `SELECT `+programColumns+` FROM programs WHERE id = $1`, id); err != nil {
		return nil, translate(err)
	}
	return &program, nil
}

func (p *Postgres) ListPrograms(ctx context.Context) ([]models.Program, error) {
	items := []models.Program{}
	err := p.DB.SelectContext(ctx, &items, `SELECT `+programColumns+` FROM programs ORDER BY start_date ASC`)
	return items, err
}

func (p *Postgres) UpdateProgram(ctx context.Context, program *models.Program) error {
	res, err := p.DB.NamedExecContext(ctx, `
UPDATE programs SET title = :title, description = :description, start_date = :start_date,
  end_date = :end_date, location = :location, pre_survey = :pre_survey,
  post_survey = :post_survey, updated_at = :updated_at
WHERE id = :id
`, program)
	return expectOne(res, err)
}

func (p *Postgres) DeleteProgram(ctx context.Context, id string) error {
	res, err := p.DB.ExecContext(ctx, `DELETE FROM programs WHERE id = $1`, id)
	return expectOne(res, err)
}

func (p *Postgres) InsertParticipant(ctx context.Context, participant *models.ProgramParticipant) error {
	_, err := p.DB.ExecContext(ctx, `
INSERT INTO program_participants (program_id, user_id, registered_at)
VALUES ($1, $2, $3)
`, participant.ProgramID, participant.UserID, participant.RegisteredAt)
	return translate(err)
}

func (p *Postgres) IsParticipant(ctx context.Context, programID, userID string) (bool, error) {
	var exists bool
	err := p.DB.GetContext(ctx, &exists, `
SELECT EXISTS(SELECT 1 FROM program_participants WHERE program_id = $1 AND user_id = $2)
`, programID, userID)
	return exists, err
}

func (p *Postgres) ListParticipants(ctx context.Context, programID string) ([]models.ProgramParticipant, error) {
	items := []models.ProgramParticipant{}
	err := p.DB.SelectContext(ctx, &items, `
SELECT pp.program_id, pp.user_id, u.username, u.email, pp.registered_at
FROM program_participants pp
JOIN users u ON u.id = pp.user_id
WHERE pp.program_id = $1
ORDER BY pp.registered_at ASC
`, programID)
	return items, err
}

const surveyColumns = `id, user_id, email, type, phase, answers, score, risk_level, course_id,
  program_id, created_at, updated_at`

func insertSurvey(ctx context.Context, exec sqlx.ExtContext, s *models.Survey) error {
	_, err := sqlx.NamedExecContext(ctx, exec, `
INSERT INTO surveys (`+surveyColumns+`)
VALUES (:id, :user_id, :email, :type, :phase, :answers, :score, :risk_level, :course_id,
  :program_id, :created_at, :updated_at)
`, s)
	return translate(err)
}

func (p *Postgres) InsertSurvey(ctx context.Context, s *models.Survey) error {
	return insertSurvey(ctx, p.DB, s)
}

func (p *Postgres) GetSurvey(ctx context.Context, id string) (*models.Survey, error) {
	var s models.Survey
	if err := p.DB.GetContext(ctx, &s, `SELECT `+surveyColumns+` FROM surveys WHERE id = $1`, id); err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (p *Postgres) UpdateSurvey(ctx context.Context, s *models.Survey) error {
	res, err := p.DB.NamedExecContext(ctx, `
UPDATE surveys SET email = :email, phase = :phase, updated_at = :updated_at
WHERE id = :id
`, s)
	return expectOne(res, err)
}

func (p *Postgres) DeleteSurvey(ctx context.Context, id string) error {
	res, err := p.DB.ExecContext(ctx, `DELETE FROM surveys WHERE id = $1`, id)
	return expectOne(res, err)
}

func surveyWhere(filter SurveyFilter) (string, []any) {
	clauses := []string{}
	args := []any{}
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.Type != "" {
		add("type = $%d", filter.Type)
	}
	if filter.Phase != "" {
		add("phase = $%d", filter.Phase)
	}
	if filter.RiskLevel != "" {
		add("risk_level = $%d", filter.RiskLevel)
	}
	if filter.CourseID != "" {
		add("course_id = $%d", filter.CourseID)
	}
	if filter.ProgramID != "" {
		add("program_id = $%d", filter.ProgramID)
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at <= $%d", *filter.To)
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (p *Postgres) ListSurveys(ctx context.Context, filter SurveyFilter) ([]models.Survey, int, error) {
	where, args := surveyWhere(filter)
	var total int
	if err := p.DB.GetContext(ctx, &total, `SELECT COUNT(*) FROM surveys`+where, args...); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + surveyColumns + ` FROM surveys` + where + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	items := []models.Survey{}
	if err := p.DB.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (p *Postgres) CountSurveysByRisk(ctx context.Context) (map[models.RiskLevel]int, error) {
	rows := []struct {
		RiskLevel models.RiskLevel `db:"risk_level"`
		Count     int              `db:"count"`
	}{}
	if err := p.DB.SelectContext(ctx, &rows, `SELECT risk_level, COUNT(*) AS count FROM surveys GROUP BY risk_level`); err != nil {
		return nil, err
	}
	counts := map[models.RiskLevel]int{}
	for _, row := range rows {
		counts[row.RiskLevel] = row.Count
	}
	return counts, nil
}

func (p *Postgres) CountHighRiskSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := p.DB.GetContext(ctx, &count, `
SELECT COUNT(*) FROM surveys WHERE risk_level = $1 AND created_at >= $2
`, models.RiskHigh, since)
	return count, err
}

const appointmentColumns = `id, user_id, consultant_id, scheduled_at, status, created_at, updated_at`

func (p *Postgres) InsertAppointment(ctx context.Context, a *models.Appointment) error {
	_, err := p.DB.NamedExecContext(ctx, `
INSERT INTO appointments (`+appointmentColumns+`)
VALUES (:id, :user_id, :consultant_id, :scheduled_at, :status, :created_at, :updated_at)
`, a)
	return translate(err)
}

func (p *Postgres) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	var a models.Appointment
	if err := p.DB.GetContext(ctx, &a, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id); err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (p *Postgres) TransitionAppointment(ctx context.Context, id string, from, to models.AppointmentStatus, at time.Time) error {
	res, err := p.DB.ExecContext(ctx, `
UPDATE appointments SET status = $3, updated_at = $4
WHERE id = $1 AND status = $2
`, id, from, to, at)
	if err := expectOne(res, err); err != nil {
		if errors.Is(err, ErrNotFound) {
			if _, getErr := p.GetAppointment(ctx, id); getErr != nil {
				return getErr
			}
			return ErrStateChanged
		}
		return err
	}
	return nil
}

func (p *Postgres) SetAppointmentStatus(ctx context.Context, id string, status models.AppointmentStatus, at time.Time) error {
	res, err := p.DB.ExecContext(ctx, `UPDATE appointments SET status = $2, updated_at = $3 WHERE id = $1`, id, status, at)
	return expectOne(res, err)
}

func (p *Postgres) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]models.Appointment, error) {
	items := []models.Appointment{}
	err := p.DB.SelectContext(ctx, &items, `
SELECT `+appointmentColumns+` FROM appointments
WHERE ($1 = '' OR user_id::text = $1)
  AND ($2 = '' OR consultant_id::text = $2)
  AND ($3 = '' OR status = $3)
ORDER BY scheduled_at ASC
`, filter.UserID, filter.ConsultantID, string(filter.Status))
	return items, err
}

func (p *Postgres) CountAppointments(ctx context.Context, status models.AppointmentStatus) (int, error) {
	var count int
	err := p.DB.GetContext(ctx, &count, `
SELECT COUNT(*) FROM appointments WHERE ($1 = '' OR status = $1)
`, string(status))
	return count, err
}

func (p *Postgres) InsertDashboardSample(ctx context.Context, sample *models.DashboardSample) error {
	_, err := p.DB.NamedExecContext(ctx, `
INSERT INTO dashboard_samples (
  captured_at, process_rss_bytes, system_memory_total_bytes, system_memory_used_bytes,
  disk_total_bytes, disk_used_bytes, process_cpu_load, system_cpu_load,
  pending_appointments, high_risk_last_day
) VALUES (
  :captured_at, :process_rss_bytes, :system_memory_total_bytes, :system_memory_used_bytes,
  :disk_total_bytes, :disk_used_bytes, :process_cpu_load, :system_cpu_load,
  :pending_appointments, :high_risk_last_day
)
`, sample)
	return err
}

func (p *Postgres) LatestDashboardSamples(ctx context.Context, limit int) ([]models.DashboardSample, error) {
	rows := []models.DashboardSample{}
	if err := p.DB.SelectContext(ctx, &rows, `
SELECT captured_at, process_rss_bytes, system_memory_total_bytes, system_memory_used_bytes,
       disk_total_bytes, disk_used_bytes, process_cpu_load, system_cpu_load,
       pending_appointments, high_risk_last_day
FROM dashboard_samples
ORDER BY captured_at DESC
LIMIT $1
`, limit); err != nil {
		return nil, err
	}
	items := make([]models.DashboardSample, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		items = append(items, rows[i])
	}
	return items, nil
}
