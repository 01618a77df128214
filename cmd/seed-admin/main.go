// seed-admin creates or resets an admin console account.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	  ADMIN_PASSWORD=... go run ./cmd/seed-admin -email ops@example.com
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/syamai/exchange-future-backend-unified-sub002/config"
	"github.com/syamai/exchange-future-backend-unified-sub002/models"
)

func main() {
	email := flag.String("email", "", "Required: admin email")
	migrate := flag.Bool("migrate", false, "Run AutoMigrate before seeding")
	flag.Parse()

	// Read from env so the password stays out of shell history.
	password := os.Getenv("ADMIN_PASSWORD")
	if *email == "" || password == "" {
		fmt.Fprintln(os.Stderr, "-email and ADMIN_PASSWORD are required")
		os.Exit(2)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	if *migrate {
		if err := models.MigrateTable(db); err != nil {
			fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
			os.Exit(1)
		}
	}

	user, created, err := models.UpsertAdminUser(ctx, db, *email, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed admin: %v\n", err)
		os.Exit(1)
	}
	if created {
		fmt.Printf("Created admin user: email=%q id=%d\n", user.Email, user.ID)
		return
	}
	fmt.Printf("Updated admin user: email=%q id=%d\n", user.Email, user.ID)
}
