package httpapi

import (
	"context"
	"net/http"
	"time"

	"riskscreen-backend/internal/config"
	"riskscreen-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type Server struct {
	Config       config.Config
	Log          *zap.Logger
	Guard        services.Guard
	Hub          *services.AlertHub
	Users        *services.UserService
	Consultants  *services.ConsultantService
	Enrollment   *services.EnrollmentService
	Programs     *services.ProgramService
	Surveys      *services.SurveyService
	Appointments *services.AppointmentService
	Dashboard    *services.DashboardSampler
}

func NewServer(cfg config.Config, st services.Store, notifier services.Notifier, hub *services.AlertHub, log *zap.Logger) *Server {
	tokens := services.TokenService{
		Secret:     []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  time.Duration(cfg.AccessTTLSeconds) * time.Second,
		RefreshTTL: time.Duration(cfg.RefreshTTLSeconds) * time.Second,
	}
	if hub == nil {
		hub = services.NewAlertHub(log)
	}
	users := &services.UserService{Store: st, Tokens: tokens, Log: log}
	return &Server{
		Config:      cfg,
		Log:         log,
		Guard:       services.Guard{Tokens: tokens, Users: st},
		Hub:         hub,
		Users:       users,
		Consultants: &services.ConsultantService{Users: users},
		Enrollment: &services.EnrollmentService{
			Courses:                        st,
			Users:                          st,
			Notifier:                       notifier,
			Alerts:                         hub,
			Log:                            log,
			BackendURL:                     cfg.BackendURL,
			RequireCompletionForPostSurvey: cfg.PostSurveyRequiresCompletion,
		},
		Programs: &services.ProgramService{
			Programs: st,
			Surveys:  st,
			Users:    st,
			Notifier: notifier,
			Alerts:   hub,
			Log:      log,
		},
		Surveys: &services.SurveyService{Surveys: st, Users: st, Notifier: notifier, Alerts: hub, Log: log},
		Appointments: &services.AppointmentService{
			Appointments: st,
			Users:        st,
			Notifier:     notifier,
			Log:          log,
		},
		Dashboard: &services.DashboardSampler{
			Store:    st,
			Hub:      hub,
			DiskPath: cfg.MetricsDiskPath,
			Log:      log,
		},
	}
}

func (s *Server) Router(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger(s.Log))
	r.Use(SecureHeaders)
	if len(s.Config.CorsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.Config.CorsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	limiter := NewRateLimiter(ctx, s.Config.PublicRateLimitRPS, s.Config.PublicRateLimitBurst)
	authed := WithAuth(s.Guard, s.Log)
	can := RequireCapability

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(auth chi.Router) {
			auth.With(limiter.Limit, OptionalAuth(s.Guard, s.Log)).Post("/register", s.Register)
			auth.With(limiter.Limit).Post("/login", s.Login)
			auth.Post("/refresh", s.Refresh)
			auth.Post("/logout", s.Logout)
			auth.With(authed).Get("/profile", s.Profile)
			auth.With(authed).Patch("/profile", s.UpdateProfile)
			auth.With(authed).Patch("/change-password", s.ChangePassword)
		})

		api.Route("/users", func(users chi.Router) {
			users.Use(authed)
			users.With(can(services.OpListUsers)).Get("/", s.ListUsers)
			users.With(can(services.OpListUsers)).Get("/{userId}", s.GetUser)
			users.With(can(services.OpUpdateUser)).Patch("/{userId}", s.UpdateUser)
			users.With(can(services.OpChangeRole)).Patch("/{userId}/role", s.ChangeUserRole)
			users.With(can(services.OpDeleteUser)).Delete("/{userId}", s.DeleteUser)
		})

		api.Route("/consultants", func(consultants chi.Router) {
			consultants.Get("/", s.ListConsultants)
			consultants.Group(func(me chi.Router) {
				me.Use(authed, can(services.OpEditConsultantProfile))
				me.Get("/me", s.ConsultantMe)
				me.Patch("/me", s.UpdateConsultantMe)
			})
			consultants.Get("/{consultantId}", s.GetConsultant)
		})

		api.Route("/courses", func(courses chi.Router) {
			courses.Get("/", s.ListCourses)
			courses.With(authed).Get("/mine", s.MyCourses)
			courses.Get("/{courseId}", s.GetCourse)
			courses.With(authed, can(services.OpCreateCourse)).Post("/", s.CreateCourse)
			courses.With(authed, can(services.OpUpdateCourse)).Patch("/{courseId}", s.UpdateCourse)
			courses.With(authed, can(services.OpDeleteCourse)).Delete("/{courseId}", s.DeleteCourse)
			courses.With(authed, can(services.OpEnrollCourse)).Post("/{courseId}/register", s.RegisterCourse)
			courses.With(authed, can(services.OpViewRegistrations)).Get("/{courseId}/registrations", s.CourseRegistrations)
			courses.With(authed).Post("/{courseId}/complete", s.CompleteCourse)
			courses.With(authed).Post("/{courseId}/survey/pre", s.SubmitCoursePreSurvey)
			courses.With(authed).Post("/{courseId}/survey/post", s.SubmitCoursePostSurvey)
		})

		api.Route("/programs", func(programs chi.Router) {
			programs.Get("/", s.ListPrograms)
			programs.Get("/{programId}", s.GetProgram)
			programs.With(authed, can(services.OpManagePrograms)).Post("/", s.CreateProgram)
			programs.With(authed, can(services.OpManagePrograms)).Patch("/{programId}", s.UpdateProgram)
			programs.With(authed, can(services.OpManagePrograms)).Delete("/{programId}", s.DeleteProgram)
			programs.With(authed, can(services.OpEnrollProgram)).Post("/{programId}/register", s.RegisterProgram)
			programs.With(authed, can(services.OpViewProgramParticipation)).Get("/{programId}/participants", s.ProgramParticipants)
			programs.With(authed, can(services.OpEnrollProgram)).Post("/{programId}/survey/{phase}", s.SubmitProgramSurvey)
			programs.With(authed, can(services.OpViewProgramParticipation)).Get("/{programId}/surveys", s.ProgramSurveys)
			programs.With(authed, can(services.OpViewProgramParticipation)).Get("/{programId}/surveys/stats", s.ProgramStats)
		})

		api.Route("/surveys", func(surveys chi.Router) {
			surveys.Get("/questions", s.SurveyQuestions)
			surveys.With(limiter.Limit).Post("/public", s.SubmitPublicSurvey)
			surveys.Group(func(member chi.Router) {
				member.Use(authed)
				member.With(can(services.OpSubmitSurvey)).Post("/", s.SubmitSurvey)
				member.Get("/mine", s.MySurveys)
				member.With(can(services.OpManageSurveys)).Get("/", s.ListSurveys)
				member.With(can(services.OpManageSurveys)).Get("/stats/risk", s.SurveyRiskStats)
				member.With(can(services.OpManageSurveys)).Get("/export", s.ExportSurveys)
				member.Get("/{surveyId}", s.GetSurvey)
				member.With(can(services.OpManageSurveys)).Patch("/{surveyId}", s.UpdateSurvey)
				member.With(can(services.OpManageSurveys)).Delete("/{surveyId}", s.DeleteSurvey)
			})
		})

		api.Route("/appointments", func(appointments chi.Router) {
			appointments.Use(authed)
			appointments.With(can(services.OpBookAppointment)).Post("/", s.CreateAppointment)
			appointments.Get("/mine", s.MyAppointments)
			appointments.With(can(services.OpConsultantAppointments)).Get("/consultant", s.ConsultantAppointments)
			appointments.With(can(services.OpListAppointments)).Get("/", s.ListAppointments)
			appointments.Patch("/{appointmentId}/status", s.UpdateAppointmentStatus)
			appointments.Patch("/{appointmentId}/cancel", s.CancelAppointment)
		})

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(authed, can(services.OpViewDashboard))
			admin.Get("/dashboard/history", s.DashboardHistory)
		})
	})

	r.Get("/ws/alerts", s.AlertSocket)
	return r
}
