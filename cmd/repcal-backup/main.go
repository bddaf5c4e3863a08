package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/meltforce/repcal/internal/backup"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "RepCal server URL (e.g. https://repcal.tail1234.ts.net)")
	out := flag.String("out", "", "export: write the server's snapshot to this file")
	restore := flag.String("restore", "", "restore: upload this snapshot file to the server")
	apiKey := flag.String("api-key", os.Getenv("REPCAL_AUTH_API_KEY"), "API key for restore (env REPCAL_AUTH_API_KEY)")
	force := flag.Bool("force", false, "restore a snapshot even when its schema tag differs")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("repcal-backup", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *serverURL == "" || (*out == "" && *restore == "") {
		fmt.Fprintf(os.Stderr, "Usage: repcal-backup -server <URL> (-out snapshot.json | -restore snapshot.json [-force])\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *out != "" && *restore != "" {
		fmt.Fprintf(os.Stderr, "Error: -out and -restore are mutually exclusive\n")
		os.Exit(1)
	}

	client := backup.NewClient(strings.TrimRight(*serverURL, "/"), *apiKey)

	if *out != "" {
		data, err := client.FetchSnapshot()
		if err != nil {
			log.Error("export failed", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			log.Error("writing snapshot file failed", "path", *out, "error", err)
			os.Exit(1)
		}
		log.Info("snapshot exported", "path", *out, "bytes", len(data))
		return
	}

	data, err := os.ReadFile(*restore)
	if err != nil {
		log.Error("reading snapshot file failed", "path", *restore, "error", err)
		os.Exit(1)
	}
	if err := client.Restore(data, *force); err != nil {
		log.Error("restore failed", "error", err)
		os.Exit(1)
	}
	log.Info("snapshot restored", "path", *restore, "bytes", len(data))
}
