package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/school-calendar-api/internal/dto"
	"github.com/noah-isme/school-calendar-api/internal/models"
	"github.com/noah-isme/school-calendar-api/internal/repository"
	"github.com/noah-isme/school-calendar-api/internal/service"
	"github.com/noah-isme/school-calendar-api/pkg/config"
	"github.com/noah-isme/school-calendar-api/pkg/database"
	"github.com/noah-isme/school-calendar-api/pkg/logger"
)

type seedUser struct {
	username string
	password string
	role     models.UserRole
	fullName string
	email    string
}

var defaultUsers = []seedUser{
	{"admin", "admin123", models.RoleAdmin, "System Administrator", "admin@school.example"},
	{"teacher", "teacher123", models.RoleTeacher, "Test Teacher", "teacher@school.example"},
	{"student", "student123", models.RoleStudent, "Test Student", "student@school.example"},
}

func sampleEvents() []dto.CreateEventRequest {
	event := func(title, description, start, end, location, responsible string, eventType models.EventType, target models.TargetGroup) dto.CreateEventRequest {
		return dto.CreateEventRequest{
			Title:             title,
			Description:       &description,
			StartDate:         start,
			EndDate:           end,
			Location:          &location,
			ResponsiblePerson: &responsible,
			EventType:         string(eventType),
			TargetGroup:       string(target),
		}
	}
	return []dto.CreateEventRequest{
		event("Midterm examinations, semester 1", "Midterm exams for every grade level",
			"2025-02-10 08:00:00", "2025-02-14 16:00:00", "All classrooms", "Academic affairs",
			models.EventTypeExam, models.TargetGroupAll),
		event("Flag ceremony assembly", "Weekly assembly in front of the flagpole",
			"2025-02-03 07:30:00", "2025-02-03 08:00:00", "Activity court", "Student affairs",
			models.EventTypeStudentActivity, models.TargetGroupAll),
		event("Monthly staff meeting", "February staff meeting",
			"2025-02-05 13:30:00", "2025-02-05 16:00:00", "Main meeting room", "Principal",
			models.EventTypeMeeting, models.TargetGroupTeacher),
		event("Science museum field trip", "Field trip for grades 10 to 12",
			"2025-02-15 08:00:00", "2025-02-15 17:00:00", "National Science Museum", "Science teachers",
			models.EventTypeExternal, models.TargetGroupStudent),
		event("ICT workshop", "Hands-on training on classroom technology",
			"2025-02-20 09:00:00", "2025-02-20 16:00:00", "Computer lab", "ICT department",
			models.EventTypeAcademic, models.TargetGroupTeacher),
		event("Personnel committee meeting", "Review of staff appointments and transfers",
			"2025-02-12 09:00:00", "2025-02-12 12:00:00", "Executive meeting room", "Human resources",
			models.EventTypeHR, models.TargetGroupAdmin),
		event("Monthly budget review", "Audit and report of school budget usage",
			"2025-02-25 13:00:00", "2025-02-25 16:00:00", "Finance office", "General administration",
			models.EventTypeAdmin, models.TargetGroupAdmin),
		event("School strategy planning", "Planning session for school development policy",
			"2025-02-28 08:30:00", "2025-02-28 16:30:00", "Main meeting room", "Policy and planning",
			models.EventTypePolicyPlan, models.TargetGroupAdmin),
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("connect database", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		logr.Fatal("migrate database", zap.Error(err))
	}

	userRepo := repository.NewUserRepository(db)
	var admin models.Identity
	for _, u := range defaultUsers {
		password := u.password
		if cfg.Seed.DefaultPassword != "" {
			password = cfg.Seed.DefaultPassword
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			logr.Fatal("hash password", zap.String("username", u.username), zap.Error(err))
		}
		email := u.email
		user := &models.User{Username: u.username, PasswordHash: string(hash), Role: u.role, FullName: u.fullName, Email: &email}
		created, err := userRepo.CreateIfAbsent(ctx, user)
		if err != nil {
			logr.Fatal("seed user", zap.String("username", u.username), zap.Error(err))
		}
		if !created {
			existing, err := userRepo.FindByUsername(ctx, u.username)
			if err != nil {
				logr.Fatal("load user", zap.String("username", u.username), zap.Error(err))
			}
			user = existing
		}
		logr.Info("user ready", zap.String("username", u.username), zap.Bool("created", created))
		if u.role == models.RoleAdmin {
			admin = models.Identity{UserID: user.ID, Role: user.Role}
		}
	}

	eventRepo := repository.NewEventRepository(db)
	existing, err := eventRepo.List(ctx, models.EventFilter{})
	if err != nil {
		logr.Fatal("list events", zap.Error(err))
	}
	if len(existing) > 0 {
		logr.Info("events already present, skipping samples", zap.Int("count", len(existing)))
		return
	}

	validate := service.NewValidator()
	auditSvc := service.NewAuditService(repository.NewAuditRepository(db), nil, logr)
	workflow := service.NewStatusWorkflow(eventRepo, auditSvc, validate, nil, logr, false)
	eventSvc := service.NewEventService(eventRepo, workflow, auditSvc, validate, logr, service.EventServiceConfig{})

	for _, req := range sampleEvents() {
		event, err := eventSvc.Create(ctx, admin, req)
		if err != nil {
			logr.Fatal("seed event", zap.String("title", req.Title), zap.Error(err))
		}
		logr.Info("event seeded", zap.Int64("id", event.ID), zap.String("title", event.Title))
	}
}
