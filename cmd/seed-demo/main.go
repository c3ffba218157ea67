package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stemsi/prairie-backend/internal/config"
	"github.com/stemsi/prairie-backend/internal/database"
	"github.com/stemsi/prairie-backend/internal/logger"
	"github.com/stemsi/prairie-backend/internal/model"
	"github.com/stemsi/prairie-backend/internal/questiontype"
	"github.com/stemsi/prairie-backend/internal/repository"
	"github.com/stemsi/prairie-backend/internal/service"
)

const demoPassword = "prairie-demo"

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	courseRepo := repository.NewCourseRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	authService := service.NewAuthService(cfg, repository.NewUserRepository(pool))

	fmt.Println("=== Seeding demo course ===")

	course := &model.Course{ShortName: "DEMO 101", Title: "Demo Course", Path: "/courses/demo"}
	if err := courseRepo.Create(ctx, course); err != nil {
		log.Fatal().Err(err).Msg("Failed to create course")
	}
	fmt.Printf("Created course %d (sharing id %s)\n", course.ID, course.SharingID)

	var courseInstanceID int64
	if err := pool.QueryRow(ctx,
		`INSERT INTO course_instances (course_id, short_name) VALUES ($1, $2) RETURNING id`,
		course.ID, "Fall",
	).Scan(&courseInstanceID); err != nil {
		log.Fatal().Err(err).Msg("Failed to create course instance")
	}

	image := "prairielearn/workspace-vscode"
	questions := []*model.Question{
		{
			QID: "static/hello", Type: questiontype.TypeStatic, Title: "Hello", CourseID: course.ID,
			Options: mustJSON(map[string]any{"params": map[string]any{"greeting": "hello"}, "true_answer": map[string]any{"x": 1}}),
		},
		{
			QID: "random/add", Type: questiontype.TypeRandom, Title: "Add two numbers", CourseID: course.ID,
			Options: mustJSON(map[string]any{
				"params": map[string]any{"a": map[string]any{"min": 1, "max": 9}, "b": map[string]any{"min": 1, "max": 9}},
				"answer": map[string]any{"name": "c", "op": "sum", "of": []string{"a", "b"}},
			}),
		},
		{
			QID: "workspace/fib", Type: questiontype.TypeStatic, Title: "Fibonacci workspace", CourseID: course.ID,
			WorkspaceImage: &image, WorkspaceGradedFiles: []string{"fib.py", "tests/*.py"},
		},
	}
	for _, q := range questions {
		if err := questionRepo.Create(ctx, q); err != nil {
			log.Fatal().Err(err).Str("qid", q.QID).Msg("Failed to create question")
		}
		fmt.Printf("Created question %d (%s)\n", q.ID, q.QID)
	}

	instructor := &model.User{UID: "instructor@example.com", Name: "Demo Instructor", Role: model.RoleInstructor}
	student := &model.User{UID: "student@example.com", Name: "Demo Student", Role: model.RoleStudent}
	for _, u := range []*model.User{instructor, student} {
		if err := authService.CreateUser(ctx, u, demoPassword); err != nil {
			log.Fatal().Err(err).Str("uid", u.UID).Msg("Failed to create user")
		}
	}

	err = database.WithTx(ctx, pool, func(tx pgx.Tx) error {
		var assessmentInstanceID int64
		if err := tx.QueryRow(ctx,
			`INSERT INTO assessment_instances (course_instance_id, user_id) VALUES ($1, $2) RETURNING id`,
			courseInstanceID, student.ID,
		).Scan(&assessmentInstanceID); err != nil {
			return err
		}
		for _, q := range questions {
			var iqID int64
			if err := tx.QueryRow(ctx,
				`INSERT INTO instance_questions (assessment_instance_id, question_id) VALUES ($1, $2) RETURNING id`,
				assessmentInstanceID, q.ID,
			).Scan(&iqID); err != nil {
				return err
			}
			fmt.Printf("Instance question %d -> %s\n", iqID, q.QID)
		}
		return nil
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create assessment instance")
	}

	fmt.Printf("\nSeed completed! Log in as %s or %s with password %q.\n", instructor.UID, student.UID, demoPassword)
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
