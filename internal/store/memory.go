package store

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"riskscreen-backend/internal/models"
)

// Memory keeps every entity in process maps guarded by a single mutex.
type Memory struct {
	mu            sync.Mutex
	users         map[string]models.User
	courses       map[string]models.Course
	registrations map[string]models.CourseRegistration
	programs      map[string]models.Program
	participants  map[string]models.ProgramParticipant
	surveys       map[string]models.Survey
	appointments  map[string]models.Appointment
	samples       []models.DashboardSample
}

func NewMemory() *Memory {
	return &Memory{
		users:         map[string]models.User{},
		courses:       map[string]models.Course{},
		registrations: map[string]models.CourseRegistration{},
		programs:      map[string]models.Program{},
		participants:  map[string]models.ProgramParticipant{},
		surveys:       map[string]models.Survey{},
		appointments:  map[string]models.Appointment{},
	}
}

func pairKey(a, b string) string {
	return a + "|" + b
}

func cloneUser(u models.User) models.User {
	u.Qualifications = slices.Clone(u.Qualifications)
	u.Specialties = slices.Clone(u.Specialties)
	u.WorkSchedule = slices.Clone(u.WorkSchedule)
	return u
}

func cloneSurvey(s models.Survey) models.Survey {
	s.Answers = slices.Clone(s.Answers)
	return s
}

func (m *Memory) InsertUser(_ context.Context, u *models.User, onlyIfNoAdmin bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if onlyIfNoAdmin {
		for _, existing := range m.users {
			if existing.Role == models.RoleAdmin {
				return false, nil
			}
		}
	}
	if err := m.checkUserUnique(*u); err != nil {
		return false, err
	}
	m.users[u.ID] = cloneUser(*u)
	return true, nil
}

func (m *Memory) checkUserUnique(u models.User) error {
	for _, existing := range m.users {
		if existing.ID == u.ID {
			continue
		}
		if strings.EqualFold(existing.Email, u.Email) || existing.Username == u.Username {
			return ErrDuplicate
		}
	}
	return nil
}

func (m *Memory) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u = cloneUser(u)
	return &u, nil
}

func (m *Memory) FindUserByLogin(_ context.Context, login string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, login) || u.Username == login {
			u = cloneUser(u)
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListUsers(_ context.Context, role models.Role) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := []models.User{}
	for _, u := range m.users {
		if role != "" && u.Role != role {
			continue
		}
		items = append(items, cloneUser(u))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func (m *Memory) UpdateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return ErrNotFound
	}
	if err := m.checkUserUnique(*u); err != nil {
		return err
	}
	m.users[u.ID] = cloneUser(*u)
	return nil
}

func (m *Memory) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	for key, reg := range m.registrations {
		if reg.UserID == id {
			delete(m.registrations, key)
		}
	}
	for key, p := range m.participants {
		if p.UserID == id {
			delete(m.participants, key)
		}
	}
	for key, a := range m.appointments {
		if a.UserID == id || a.ConsultantID == id {
			delete(m.appointments, key)
		}
	}
	for key, s := range m.surveys {
		if s.UserID != nil && *s.UserID == id {
			s.UserID = nil
			m.surveys[key] = s
		}
	}
	return nil
}

func (m *Memory) InsertCourse(_ context.Context, c *models.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courses[c.ID] = *c
	return nil
}

func (m *Memory) GetCourse(_ context.Context, id string) (*models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *Memory) ListCourses(_ context.Context) ([]models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]models.Course, 0, len(m.courses))
	for _, c := range m.courses {
		items = append(items, c)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func (m *Memory) UpdateCourse(_ context.Context, c *models.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[c.ID]; !ok {
		return ErrNotFound
	}
	m.courses[c.ID] = *c
	return nil
}

func (m *Memory) DeleteCourse(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[id]; !ok {
		return ErrNotFound
	}
	delete(m.courses, id)
	for key, reg := range m.registrations {
		if reg.CourseID == id {
			delete(m.registrations, key)
		}
	}
	for key, s := range m.surveys {
		if s.CourseID != nil && *s.CourseID == id {
			s.CourseID = nil
			m.surveys[key] = s
		}
	}
	return nil
}

func (m *Memory) InsertRegistration(_ context.Context, reg *models.CourseRegistration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey(reg.UserID, reg.CourseID)
	if _, ok := m.registrations[key]; ok {
		return ErrDuplicate
	}
	m.registrations[key] = *reg
	return nil
}

func (m *Memory) GetRegistration(_ context.Context, userID, courseID string) (*models.CourseRegistration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.registrations[pairKey(userID, courseID)]
	if !ok {
		return nil, ErrNotFound
	}
	return &reg, nil
}

func (m *Memory) ListRegistrationsByUser(_ context.Context, userID string) ([]models.CourseRegistration, error) {
	return m.listRegistrations(func(reg models.CourseRegistration) bool { return reg.UserID == userID }), nil
}

func (m *Memory) ListRegistrationsByCourse(_ context.Context, courseID string) ([]models.CourseRegistration, error) {
	return m.listRegistrations(func(reg models.CourseRegistration) bool { return reg.CourseID == courseID }), nil
}

func (m *Memory) listRegistrations(keep func(models.CourseRegistration) bool) []models.CourseRegistration {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := []models.CourseRegistration{}
	for _, reg := range m.registrations {
		if keep(reg) {
			items = append(items, reg)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].RegisteredAt.After(items[j].RegisteredAt) })
	return items
}

func (m *Memory) CompleteRegistration(_ context.Context, userID, courseID string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey(userID, courseID)
	reg, ok := m.registrations[key]
	if !ok {
		return ErrNotFound
	}
	if reg.Completed {
		return ErrStateChanged
	}
	reg.Completed = true
	m.registrations[key] = reg
	return nil
}

func (m *Memory) RecordCourseSurvey(_ context.Context, s *models.Survey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.UserID == nil || s.CourseID == nil {
		return ErrNotFound
	}
	key := pairKey(*s.UserID, *s.CourseID)
	reg, ok := m.registrations[key]
	if !ok {
		return ErrNotFound
	}
	at := s.CreatedAt
	switch s.Phase {
	case models.PhasePre:
		if reg.PreSurveyDone {
			return ErrStateChanged
		}
		level := s.RiskLevel
		reg.PreSurveyDone = true
		reg.PreSurveyAt = &at
		reg.PreRiskLevel = &level
	case models.PhasePost:
		if reg.PostSurveyDone {
			return ErrStateChanged
		}
		reg.PostSurveyDone = true
		reg.PostSurveyAt = &at
	default:
		return ErrStateChanged
	}
	if m.surveyExists(*s) {
		return ErrDuplicate
	}
	m.registrations[key] = reg
	m.surveys[s.ID] = cloneSurvey(*s)
	return nil
}

// surveyExists mirrors the partial unique indexes on (user, course|program, phase).
func (m *Memory) surveyExists(s models.Survey) bool {
	if s.UserID == nil || (s.CourseID == nil && s.ProgramID == nil) {
		return false
	}
	for _, existing := range m.surveys {
		if existing.UserID == nil || *existing.UserID != *s.UserID || existing.Phase != s.Phase {
			continue
		}
		if s.CourseID != nil && existing.CourseID != nil && *existing.CourseID == *s.CourseID {
			return true
		}
		if s.ProgramID != nil && existing.ProgramID != nil && *existing.ProgramID == *s.ProgramID {
			return true
		}
	}
	return false
}

func (m *Memory) InsertProgram(_ context.Context, p *models.Program) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.programs[p.ID] = *p
	return nil
}

func (m *Memory) GetProgram(_ context.Context, id string) (*models.Program, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.programs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *Memory) ListPrograms(_ context.Context) ([]models.Program, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]models.Program, 0, len(m.programs))
	for _, p := range m.programs {
		items = append(items, p)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].StartDate.Before(items[j].StartDate) })
	return items, nil
}

func (m *Memory) UpdateProgram(_ context.Context, p *models.Program) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.programs[p.ID]; !ok {
		return ErrNotFound
	}
	m.programs[p.ID] = *p
	return nil
}

func (m *Memory) DeleteProgram(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.programs[id]; !ok {
		return ErrNotFound
	}
	delete(m.programs, id)
	for key, p := range m.participants {
		if p.ProgramID == id {
			delete(m.participants, key)
		}
	}
	for key, s := range m.surveys {
		if s.ProgramID != nil && *s.ProgramID == id {
			s.ProgramID = nil
			m.surveys[key] = s
		}
	}
	return nil
}

func (m *Memory) InsertParticipant(_ context.Context, p *models.ProgramParticipant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey(p.ProgramID, p.UserID)
	if _, ok := m.participants[key]; ok {
		return ErrDuplicate
	}
	m.participants[key] = *p
	return nil
}

func (m *Memory) IsParticipant(_ context.Context, programID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.participants[pairKey(programID, userID)]
	return ok, nil
}

func (m *Memory) ListParticipants(_ context.Context, programID string) ([]models.ProgramParticipant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := []models.ProgramParticipant{}
	for _, p := range m.participants {
		if p.ProgramID != programID {
			continue
		}
		if u, ok := m.users[p.UserID]; ok {
			p.Username = u.Username
			p.Email = u.Email
		}
		items = append(items, p)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].RegisteredAt.Before(items[j].RegisteredAt) })
	return items, nil
}

func (m *Memory) InsertSurvey(_ context.Context, s *models.Survey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.surveyExists(*s) {
		return ErrDuplicate
	}
	m.surveys[s.ID] = cloneSurvey(*s)
	return nil
}

func (m *Memory) GetSurvey(_ context.Context, id string) (*models.Survey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.surveys[id]
	if !ok {
		return nil, ErrNotFound
	}
	s = cloneSurvey(s)
	return &s, nil
}

func (m *Memory) UpdateSurvey(_ context.Context, s *models.Survey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.surveys[s.ID]; !ok {
		return ErrNotFound
	}
	delete(m.surveys, s.ID)
	if m.surveyExists(*s) {
		return ErrDuplicate
	}
	m.surveys[s.ID] = cloneSurvey(*s)
	return nil
}

func (m *Memory) DeleteSurvey(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.surveys[id]; !ok {
		return ErrNotFound
	}
	delete(m.surveys, id)
	return nil
}

func (m *Memory) ListSurveys(_ context.Context, filter SurveyFilter) ([]models.Survey, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := []models.Survey{}
	for _, s := range m.surveys {
		if filter.matches(s) {
			matched = append(matched, cloneSurvey(s))
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []models.Survey{}, total, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (m *Memory) CountSurveysByRisk(_ context.Context) (map[models.RiskLevel]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[models.RiskLevel]int{}
	for _, s := range m.surveys {
		counts[s.RiskLevel]++
	}
	return counts, nil
}

func (m *Memory) CountHighRiskSince(_ context.Context, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, s := range m.surveys {
		if s.RiskLevel == models.RiskHigh && !s.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *Memory) InsertAppointment(_ context.Context, a *models.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appointments[a.ID] = *a
	return nil
}

func (m *Memory) GetAppointment(_ context.Context, id string) (*models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *Memory) TransitionAppointment(_ context.Context, id string, from, to models.AppointmentStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return ErrNotFound
	}
	if a.Status != from {
		return ErrStateChanged
	}
	a.Status = to
	a.UpdatedAt = at
	m.appointments[id] = a
	return nil
}

func (m *Memory) SetAppointmentStatus(_ context.Context, id string, status models.AppointmentStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = at
	m.appointments[id] = a
	return nil
}

func (m *Memory) ListAppointments(_ context.Context, filter AppointmentFilter) ([]models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := []models.Appointment{}
	for _, a := range m.appointments {
		if filter.matches(a) {
			items = append(items, a)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ScheduledAt.Before(items[j].ScheduledAt) })
	return items, nil
}

func (m *Memory) CountAppointments(_ context.Context, status models.AppointmentStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, a := range m.appointments {
		if status == "" || a.Status == status {
			count++
		}
	}
	return count, nil
}

func (m *Memory) InsertDashboardSample(_ context.Context, sample *models.DashboardSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, *sample)
	return nil
}

func (m *Memory) LatestDashboardSamples(_ context.Context, limit int) ([]models.DashboardSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := 0
	if limit > 0 && len(m.samples) > limit {
		start = len(m.samples) - limit
	}
	return slices.Clone(m.samples[start:]), nil
}
