package main

import (
	"context"
	"flag"
	"fmt"

	"transparencia-backend/shared/config"
	"transparencia-backend/shared/database"
	"transparencia-backend/shared/logger"
)

func main() {
	confirm := flag.Bool("yes", false, "confirm that every table will be dropped")
	migrate := flag.Bool("migrate", false, "recreate the schema after dropping it")
	flag.Parse()

	config.LoadConfig()
	cfg := config.GetConfig()

	log := logger.Init(cfg.LogMode, "reset-db")
	defer log.Sync()

	if !*confirm {
		fmt.Println("This drops every table of", cfg.DBName, "- run again with -yes to continue")
		return
	}
	if cfg.IsProduction() {
		log.Fatal("refusing to reset a production database")
	}

	db, err := database.Open(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("database connection failed", "error", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	if err := database.DropAll(db); err != nil {
		log.Fatal("database reset failed", "error", err)
	}
	log.Info("all tables dropped", "db", cfg.DBName)

	if *migrate {
		if err := database.Migrate(db); err != nil {
			log.Fatal("migration failed", "error", err)
		}
	}
}
