// ABOUTME: Admin CLI for inspecting a token store
// ABOUTME: Opens the store read-only-in-spirit and lists tokens, objects and schema state

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/2389/tokstore/internal/codec"
	"github.com/2389/tokstore/internal/config"
	"github.com/2389/tokstore/internal/secel"
	"github.com/2389/tokstore/internal/store"
)

const banner = `
 _        _         _
| |_ ___ | | _____ | |_ ___  _ __ ___
| __/ _ \| |/ / __|| __/ _ \| '__/ _ \
| || (_) |   <\__ \| || (_) | | |  __/
 \__\___/|_|\_\___/ \__\___/|_|  \___|
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := loadConfig()
	slog.SetDefault(setupLogger(cfg.Logging))

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "info":
		err = cmdInfo(cfg)
	case "tokens":
		err = cmdTokens(cfg)
	case "objects":
		err = cmdObjects(cfg, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads TOKSTORE_CONFIG when set, otherwise falls back to the
// environment-only defaults.
func loadConfig() *config.Config {
	path := os.Getenv("TOKSTORE_CONFIG")
	if path == "" {
		return config.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func openStore(cfg *config.Config) (*store.Store, error) {
	return store.Open(store.Options{
		OverrideDir:    cfg.Store.Dir,
		SystemDir:      cfg.Store.SystemDir,
		SecureElement:  secel.Local{},
		AttributeCodec: codec.YAML{},
		ConfigCodec:    codec.YAML{},
	})
}

func cmdInfo(cfg *config.Config) error {
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	version, err := s.Version()
	if err != nil {
		return err
	}

	tokens, err := s.LoadTokens(context.Background())
	if err != nil {
		return err
	}

	stored := 0
	objects := 0
	for _, t := range tokens {
		if t.Placeholder {
			continue
		}
		stored++
		objects += len(t.Objects)
	}

	cyan := color.New(color.FgCyan)
	cyan.Println("Store")
	fmt.Printf("  path:           %s\n", s.Path())
	fmt.Printf("  schema version: %d\n", version)
	fmt.Printf("  tokens:         %d\n", stored)
	fmt.Printf("  token objects:  %d\n", objects)
	return nil
}

func cmdTokens(cfg *config.Config) error {
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	tokens, err := s.LoadTokens(context.Background())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLABEL\tPID\tINITIALIZED\tOBJECTS")
	for _, t := range tokens {
		label := t.Label
		if t.Placeholder {
			label = "(free slot)"
			fmt.Fprintf(w, "%d\t%s\t-\t-\t-\n", t.ID, label)
			continue
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%v\t%d\n", t.ID, label, t.PID, t.Config.Initialized, len(t.Objects))
	}
	return w.Flush()
}

func cmdObjects(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: tokstore-admin objects <token-id>")
	}

	var tokID uint
	if _, err := fmt.Sscanf(args[0], "%d", &tokID); err != nil {
		return fmt.Errorf("parsing token id %q: %w", args[0], err)
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	tokens, err := s.LoadTokens(context.Background())
	if err != nil {
		return err
	}

	for _, t := range tokens {
		if t.ID != tokID || t.Placeholder {
			continue
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tATTRS\tPUB\tPRIV")
		for _, o := range t.Objects {
			fmt.Fprintf(w, "%d\t%d\t%d bytes\t%d bytes\n", o.ID, len(o.Attrs), len(o.Pub), len(o.Priv))
		}
		return w.Flush()
	}

	return fmt.Errorf("no stored token with id %d", tokID)
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: tokstore-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  info                  Show store path, schema version and row counts")
	fmt.Println("  tokens                List tokens (including the free slot)")
	fmt.Println("  objects <token-id>    List the objects stored under a token")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  TOKSTORE_CONFIG       Path to a YAML config file")
	fmt.Println("  TOKSTORE_DIR          Store override directory (no config file needed)")
	fmt.Println()
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
