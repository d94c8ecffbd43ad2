package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"riskscreen-backend/internal/models"
	"riskscreen-backend/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ProgramInput struct {
	Title       string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	Location    *string
	PreSurvey   *string
	PostSurvey  *string
}

type ProgramPatch struct {
	Title       *string
	Description *string
	StartDate   *time.Time
	EndDate     *time.Time
	Location    *string
	PreSurvey   *string
	PostSurvey  *string
}

type ProgramSurveys struct {
	Pre  []models.Survey `json:"pre"`
	Post []models.Survey `json:"post"`
}

type PhaseStats struct {
	Count        int     `json:"count"`
	AverageScore float64 `json:"averageScore"`
}

type ProgramStats struct {
	Pre  PhaseStats `json:"pre"`
	Post PhaseStats `json:"post"`
}

type ProgramService struct {
	Programs ProgramStore
	Surveys  SurveyStore
	Users    UserReader
	Notifier Notifier
	Alerts   AlertPublisher
	Log      *zap.Logger
	Now      func() time.Time
}

func (s *ProgramService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func parseOptionalInstrument(raw *string) (*models.SurveyType, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	surveyType, ok := models.ParseSurveyType(*raw)
	if !ok {
		return nil, ErrValidation("Invalid survey type")
	}
	return &surveyType, nil
}

func applyProgramPatch(program *models.Program, patch ProgramPatch) error {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return ErrValidation("Title is required")
		}
		program.Title = title
	}
	if patch.Description != nil {
		program.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.StartDate != nil {
		program.StartDate = patch.StartDate.UTC()
	}
	if patch.EndDate != nil {
		program.EndDate = patch.EndDate.UTC()
	}
	if program.StartDate.IsZero() || program.EndDate.IsZero() {
		return ErrValidation("Start and end dates are required")
	}
	if program.EndDate.Before(program.StartDate) {
		return ErrValidation("End date must not be before start date")
	}
	if patch.Location != nil {
		program.Location = trimmedOrNil(patch.Location)
	}
	if patch.PreSurvey != nil {
		instrument, err := parseOptionalInstrument(patch.PreSurvey)
		if err != nil {
			return err
		}
		program.PreSurvey = instrument
	}
	if patch.PostSurvey != nil {
		instrument, err := parseOptionalInstrument(patch.PostSurvey)
		if err != nil {
			return err
		}
		program.PostSurvey = instrument
	}
	return nil
}

func (s *ProgramService) Create(ctx context.Context, actor *Identity, in ProgramInput) (*models.Program, error) {
	if err := Authorize(OpManagePrograms, actor); err != nil {
		return nil, err
	}
	program := &models.Program{ID: uuid.NewString(), CreatedBy: actor.UserID}
	if err := applyProgramPatch(program, ProgramPatch{
		Title:       &in.Title,
		Description: &in.Description,
		StartDate:   &in.StartDate,
		EndDate:     &in.EndDate,
		Location:    in.Location,
		PreSurvey:   in.PreSurvey,
		PostSurvey:  in.PostSurvey,
	}); err != nil {
		return nil, err
	}
	now := s.now()
	program.CreatedAt = now
	program.UpdatedAt = now
	if err := s.Programs.InsertProgram(ctx, program); err != nil {
		return nil, WrapError(err, "insert program")
	}
	return program, nil
}

func (s *ProgramService) List(ctx context.Context) ([]models.Program, error) {
	programs, err := s.Programs.ListPrograms(ctx)
	if err != nil {
		return nil, WrapError(err, "list programs")
	}
	return programs, nil
}

func (s *ProgramService) Get(ctx context.Context, id string) (*models.Program, error) {
	program, err := s.Programs.GetProgram(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound("Program not found")
	}
	if err != nil {
		return nil, WrapError(err, "load program")
	}
	return program, nil
}

func (s *ProgramService) Update(ctx context.Context, actor *Identity, id string, patch ProgramPatch) (*models.Program, error) {
	if err := Authorize(OpManagePrograms, actor); err != nil {
		return nil, err
	}
	program, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyProgramPatch(program, patch); err != nil {
		return nil, err
	}
	program.UpdatedAt = s.now()
	if err := s.Programs.UpdateProgram(ctx, program); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound("Program not found")
		}
		return nil, WrapError(err, "update program")
	}
	return program, nil
}

func (s *ProgramService) Delete(ctx context.Context, actor *Identity, id string) error {
	if err := Authorize(OpManagePrograms, actor); err != nil {
		return err
	}
	err := s.Programs.DeleteProgram(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound("Program not found")
	}
	return WrapError(err, "delete program")
}

func (s *ProgramService) Register(ctx context.Context, actor *Identity, programID string) (*models.ProgramParticipant, error) {
	if err := Authorize(OpEnrollProgram, actor); err != nil {
		return nil, err
	}
	program, err := s.Get(ctx, programID)
	if err != nil {
		return nil, err
	}
	participant := &models.ProgramParticipant{
		ProgramID:    program.ID,
		UserID:       actor.UserID,
		RegisteredAt: s.now(),
	}
	if err := s.Programs.InsertParticipant(ctx, participant); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrConflict("You are already registered for this program")
		}
		return nil, WrapError(err, "insert participant")
	}
	return participant, nil
}

func (s *ProgramService) Participants(ctx context.Context, actor *Identity, programID string) ([]models.ProgramParticipant, error) {
	if err := Authorize(OpViewProgramParticipation, actor); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, programID); err != nil {
		return nil, err
	}
	items, err := s.Programs.ListParticipants(ctx, programID)
	if err != nil {
		return nil, WrapError(err, "list participants")
	}
	return items, nil
}

// SubmitSurvey records one phase of a participant's program screening.
func (s *ProgramService) SubmitSurvey(ctx context.Context, actor *Identity, programID, rawPhase, rawType string, answers []float64) (*SurveyResult, error) {
	if err := Authorize(OpEnrollProgram, actor); err != nil {
		return nil, err
	}
	program, err := s.Get(ctx, programID)
	if err != nil {
		return nil, err
	}
	phase, ok := models.ParsePhase(rawPhase)
	if !ok || (phase != models.PhasePre && phase != models.PhasePost) {
		return nil, ErrValidation("Phase must be pre or post")
	}
	surveyType, ok := models.ParseSurveyType(rawType)
	if !ok {
		return nil, ErrValidation("Invalid survey type")
	}
	member, err := s.Programs.IsParticipant(ctx, program.ID, actor.UserID)
	if err != nil {
		return nil, WrapError(err, "check participation")
	}
	if !member {
		return nil, ErrForbidden("You are not a participant of this program")
	}
	if required := program.RequiredInstrument(phase); required != nil && *required != surveyType {
		return nil, ErrValidation("This program requires the " + string(*required) + " instrument for the " + string(phase) + " survey")
	}
	eval, err := Evaluate(surveyType, answers)
	if err != nil {
		return nil, err
	}

	now := s.now()
	userID := actor.UserID
	survey := models.Survey{
		ID:        uuid.NewString(),
		UserID:    &userID,
		Type:      surveyType,
		Phase:     phase,
		Answers:   models.Answers(answers),
		Score:     eval.Score,
		RiskLevel: eval.RiskLevel,
		ProgramID: &program.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Surveys.InsertSurvey(ctx, &survey); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrConflict("You already submitted the " + string(phase) + " survey for this program")
		}
		return nil, WrapError(err, "insert survey")
	}

	rec := Recommend(eval.RiskLevel, ProgramLinks(program.ID))
	publishIfHigh(s.Alerts, survey)
	log := loggerOrNop(s.Log)
	if s.Users != nil {
		if user, err := s.Users.GetUser(ctx, actor.UserID); err == nil {
			logNotifyFailure(log, "risk_result", notifierOrNop(s.Notifier).RiskResult(ctx, user.Email, RiskNotice{
				Subject:        program.Title,
				RiskLevel:      eval.RiskLevel,
				Score:          eval.Score,
				Recommendation: rec,
			}))
		} else {
			log.Warn("notification recipient lookup failed", zap.String("userId", actor.UserID), zap.Error(err))
		}
	}
	return newSurveyResult(survey, rec), nil
}

func (s *ProgramService) SurveysByPhase(ctx context.Context, actor *Identity, programID string) (*ProgramSurveys, error) {
	if err := Authorize(OpViewProgramParticipation, actor); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, programID); err != nil {
		return nil, err
	}
	items, _, err := s.Surveys.ListSurveys(ctx, store.SurveyFilter{ProgramID: programID})
	if err != nil {
		return nil, WrapError(err, "list program surveys")
	}
	grouped := &ProgramSurveys{Pre: []models.Survey{}, Post: []models.Survey{}}
	for _, survey := range items {
		switch survey.Phase {
		case models.PhasePre:
			grouped.Pre = append(grouped.Pre, survey)
		case models.PhasePost:
			grouped.Post = append(grouped.Post, survey)
		}
	}
	return grouped, nil
}

func (s *ProgramService) Stats(ctx context.Context, actor *Identity, programID string) (*ProgramStats, error) {
	grouped, err := s.SurveysByPhase(ctx, actor, programID)
	if err != nil {
		return nil, err
	}
	return &ProgramStats{Pre: phaseStats(grouped.Pre), Post: phaseStats(grouped.Post)}, nil
}

func phaseStats(items []models.Survey) PhaseStats {
	if len(items) == 0 {
		return PhaseStats{}
	}
	total := 0.0
	for _, survey := range items {
		total += survey.Score
	}
	return PhaseStats{Count: len(items), AverageScore: total / float64(len(items))}
}
