package main

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/LeL010/project2-spork-bootcamp/config"
	"github.com/LeL010/project2-spork-bootcamp/pkg/helpers"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := sql.Open("pgx", cfg.PostgresDSN())
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	email := "demo@spork.dev"
	password := "password123"
	name := "Demo User"
	hash, err := helpers.HashPassword(password)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	var id string
	err = db.QueryRow(`
		INSERT INTO profiles (display_name, email, avatar_url, auth_provider)
		VALUES ($1, $2, '', 'Local')
		ON CONFLICT (email) DO UPDATE SET display_name = EXCLUDED.display_name
		RETURNING user_id
	`, name, email).Scan(&id)
	if err != nil {
		log.Fatalf("failed to seed profile: %v", err)
	}

	if _, err := db.Exec(`
		INSERT INTO credentials (user_id, email, password_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET email = EXCLUDED.email, password_hash = EXCLUDED.password_hash, updated_at = now()
	`, id, email, hash); err != nil {
		log.Fatalf("failed to seed credential: %v", err)
	}

	fmt.Printf("seeded account: id=%s email=%s password=%s\n", id, email, password)
}
