package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"toeicbank/internal/app"
	"toeicbank/internal/app/logger"
	"toeicbank/internal/db"
	"toeicbank/internal/importer"
	"toeicbank/internal/media"
)

func main() {
	cfg := app.LoadConfig()

	zl, err := logger.New(cfg.AppEnv)
	if err != nil {
		log.Printf("logger error: %v", err)
		os.Exit(1)
	}
	defer zl.Sync()

	dbConn, err := db.OpenPostgres(context.Background(), cfg.DBDSN, db.Pool{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifeMins) * time.Minute,
	})
	if err != nil {
		zl.Error("database error", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	uploader, err := media.NewCloudinaryUploader(cfg.CloudinaryURL)
	if err != nil {
		zl.Error("media uploader error", "error", err)
		os.Exit(1)
	}

	importSvc := importer.NewService(importer.NewPostgresStore(dbConn), uploader, importer.Config{
		SimilarityThreshold: cfg.SimilarityThreshold,
		DuplicateWindow:     cfg.DuplicateWindow,
		UploadConcurrency:   cfg.UploadConcurrency,
		UploadFolder:        cfg.UploadFolder,
		StagingSweepAfter:   cfg.StagingSweepAfter,
	}, zl)

	// Staged media whose batch never committed is cleaned up on a timer.
	go func() {
		ticker := time.NewTicker(cfg.StagingSweepEvery)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			deleted, err := importSvc.SweepOrphanMedia(ctx)
			cancel()
			if err != nil {
				zl.Warn("orphan media sweep failed", "error", err)
				continue
			}
			if deleted > 0 {
				zl.Info("orphan media sweep", "deleted", deleted)
			}
		}
	}()

	r := app.NewRouter(cfg, dbConn, zl, importSvc)

	zl.Info("toeicbank web listening", "addr", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		zl.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
