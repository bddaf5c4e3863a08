package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/meltforce/repcal/internal/config"
	"github.com/meltforce/repcal/internal/exercises"
	"github.com/meltforce/repcal/internal/routine"
	"github.com/meltforce/repcal/internal/state"
	"github.com/meltforce/repcal/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	filePath := flag.String("file", "", "routine file to import: .csv, .json definition, or .xlsx (required)")
	name := flag.String("name", "", "routine name (defaults to the file name)")
	dryRun := flag.Bool("dry-run", false, "parse and report without writing to the store")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *filePath == "" {
		fmt.Fprintf(os.Stderr, "Usage: repcal-import -config config.yaml -file routine.csv [-name NAME] [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Run migrations
	dsn := cfg.Storage.DSN
	if cfg.Storage.Driver == "sqlite" {
		dsn = storage.SQLiteDSN(cfg.Storage.DataDir)
	}
	if err := storage.RunMigrations(dsn); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Open the bucket store
	var db storage.BucketStore
	switch cfg.Storage.Driver {
	case "postgres":
		db, err = storage.OpenPostgres(ctx, cfg.Storage.DSN)
	default:
		db, err = storage.OpenSQLite(cfg.Storage.DataDir)
	}
	if err != nil {
		log.Error("failed to open bucket store", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	states := state.NewManager(db, cfg.Profiles.Names, log)
	if err := states.Load(ctx); err != nil {
		log.Error("failed to load state", "error", err)
		os.Exit(1)
	}

	rt, err := parseRoutineFile(ctx, cfg, states, *filePath, *name, log)
	if err != nil {
		log.Error("import failed", "file", *filePath, "error", err)
		os.Exit(1)
	}

	weeks := rt.Weeks()
	if *dryRun {
		log.Info("dry run: parsed without writing",
			"name", rt.Name, "rows", len(rt.Rows), "weeks", len(weeks))
		return
	}

	id := states.AddRoutine(rt)
	if err := states.Close(ctx); err != nil {
		log.Error("flush failed", "error", err)
		os.Exit(1)
	}
	log.Info("routine imported", "id", id, "name", rt.Name, "rows", len(rt.Rows), "weeks", len(weeks))
}

// parseRoutineFile dispatches on the file extension, mirroring the server's
// upload endpoint: .json definitions, .csv sheets, .xlsx workbooks.
func parseRoutineFile(ctx context.Context, cfg *config.Config, states *state.Manager, path, name string, log *slog.Logger) (*routine.Routine, error) {
	if name == "" {
		base := filepath.Base(path)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var def routine.Definition
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("invalid definition: %w", err)
		}
		catalog := exercises.New(log)
		if err := catalog.Load(cfg.Library.ExercisesPath); err != nil {
			return nil, err
		}
		routines := routine.NewService(cfg.Library.ManifestURL, catalog, states.UserRoutine, log)
		if err := routines.LoadManifest(ctx); err != nil {
			log.Warn("routine manifest unavailable", "error", err)
		}
		rt, err := routines.ResolveDefinition(ctx, &def)
		if err != nil {
			return nil, err
		}
		if rt.Name == "" {
			rt.Name = name
		}
		return rt, nil
	case ".csv":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		rows := routine.ParseCSV(string(data))
		if len(rows) == 0 {
			return nil, fmt.Errorf("no rows found in CSV")
		}
		return &routine.Routine{Name: name, Rows: rows}, nil
	case ".xlsx":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		rows, err := routine.ParseXLSX(f)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("no rows found in workbook")
		}
		return &routine.Routine{Name: name, Rows: rows}, nil
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}
