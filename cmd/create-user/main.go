package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/stemsi/prairie-backend/internal/config"
	"github.com/stemsi/prairie-backend/internal/database"
	"github.com/stemsi/prairie-backend/internal/logger"
	"github.com/stemsi/prairie-backend/internal/model"
	"github.com/stemsi/prairie-backend/internal/repository"
	"github.com/stemsi/prairie-backend/internal/service"
	"golang.org/x/term"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Initialize Service ────────────────────────────────────────────
	authService := service.NewAuthService(cfg, repository.NewUserRepository(pool))

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create New User ===")

	fmt.Print("Enter UID (e.g. email): ")
	uid, _ := reader.ReadString('\n')
	uid = strings.TrimSpace(uid)
	if uid == "" {
		fmt.Println("Error: UID is required")
		return
	}

	fmt.Print("Enter Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		return
	}

	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	password := string(bytePassword)
	fmt.Println() // Newline after password input
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		return
	}

	fmt.Print("Role [student/instructor] (default student): ")
	roleStr, _ := reader.ReadString('\n')
	role := model.Role(strings.ToLower(strings.TrimSpace(roleStr)))
	switch role {
	case "":
		role = model.RoleStudent
	case model.RoleStudent, model.RoleInstructor:
	default:
		fmt.Println("Error: Role must be student or instructor")
		return
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	user := &model.User{UID: uid, Name: name, Role: role}
	if err := authService.CreateUser(ctx, user, password); err != nil {
		log.Fatal().Err(err).Msg("Failed to create user")
	}

	fmt.Printf("\nSuccess! %s '%s' (%s) created with ID: %d\n", user.Role, user.Name, user.UID, user.ID)
}
