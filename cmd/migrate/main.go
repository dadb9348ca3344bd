package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"huddle-chat/config"
	"huddle-chat/pkg/database"

	"gorm.io/gorm"
)

const usage = `
Huddle Chat - Database CLI Tool

Usage:
  migrate [command]

Commands:
  up          Run GORM auto-migrations for all core tables
  status      Show database connection status and table state

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go status
`

func main() {
	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.LoadConfig()
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}

	switch flag.Arg(0) {
	case "up":
		runMigrationsUp(db)
	case "status":
		showStatus(db)
	default:
		fmt.Printf("Unknown command: %s\n", flag.Arg(0))
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp(db *gorm.DB) {
	log.Println("🚀 Running migrations...")

	if err := database.Migrate(db); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	log.Println("✅ Migrations completed successfully!")
}

func showStatus(db *gorm.DB) {
	log.Println("🔍 Checking database status...")

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("❌ Failed to get database handle: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	log.Println("✅ Database connection: OK")

	tables := []string{
		"conversations", "memberships", "conversation_sequences",
		"messages", "message_reactions", "read_receipts",
		"pinned_messages", "outbox_events",
	}
	for _, table := range tables {
		if !db.Migrator().HasTable(table) {
			log.Printf("❌ Table %-24s does not exist", table)
			continue
		}
		var count int64
		db.Table(table).Count(&count)
		log.Printf("✅ Table %-24s exists (%d rows)", table, count)
	}
}
