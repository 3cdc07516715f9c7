package main

import (
	"fmt"
	"os"

	"github.com/minutebank/internal/config"
	"github.com/minutebank/internal/db"
	"github.com/minutebank/pkg/logger"
)

// 手动引导管理员账号：
//
//	ADMIN_USERNAME=admin ADMIN_PASSWORD=secret go run ./scripts/init_admin
func main() {
	cfg := config.Load()
	log := logger.New()

	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		fmt.Fprintln(os.Stderr, "ADMIN_USERNAME and ADMIN_PASSWORD are required")
		os.Exit(1)
	}

	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}

	if err := db.EnsureAdmin(cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure admin account")
	}

	fmt.Printf("admin account %q is ready\n", cfg.AdminUsername)
}
