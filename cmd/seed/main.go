package main

import (
	"bytes"
	"context"
	_ "embed"
	"flag"
	"io"
	"os"

	"transparencia-backend/shared/config"
	"transparencia-backend/shared/database"
	"transparencia-backend/shared/logger"
)

//go:embed seed.yaml
var defaultSeed []byte

func main() {
	file := flag.String("file", "", "YAML seed file (defaults to the embedded data)")
	flag.Parse()

	config.LoadConfig()
	cfg := config.GetConfig()

	log := logger.Init(cfg.LogMode, "seed")
	defer log.Sync()

	var src io.Reader = bytes.NewReader(defaultSeed)
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			log.Fatal("failed to open seed file", "file", *file, "error", err)
		}
		defer f.Close()
		src = f
	}

	data, err := database.ParseSeedData(src)
	if err != nil {
		log.Fatal("invalid seed data", "error", err)
	}
	// ADMIN_EMAIL and ADMIN_PASSWORD take precedence over the file
	if os.Getenv("ADMIN_EMAIL") != "" {
		data.Admin.Email = cfg.AdminEmail
	}
	if os.Getenv("ADMIN_PASSWORD") != "" {
		data.Admin.Password = cfg.AdminPassword
	}

	if err := database.InitDatabase(); err != nil {
		log.Fatal("failed to initialize database", "error", err)
	}
	defer database.CloseDatabase()

	report, err := database.Seed(context.Background(), database.GetDB(), data)
	if err != nil {
		log.Fatal("failed to seed database", "error", err)
	}
	if report.AdminCreated {
		log.Info("administrator created", "email", data.Admin.Email)
	}
}
