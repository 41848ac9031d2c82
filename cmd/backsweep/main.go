package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/backsweep/backsweep/client"
)

// setupLogger configures the global slog logger with the specified level.
func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewTextHandler(os.Stderr, opts)
	logger := slog.New(handler)
	slog.SetDefault(logger)
}

func main() {
	if err := run(); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

// getAuthToken reads the auth token from BACKSWEEP_AUTH_TOKEN_FILE.
// The file should contain the token as a single line (trailing whitespace is trimmed).
func getAuthToken() (string, error) {
	tokenFile := os.Getenv("BACKSWEEP_AUTH_TOKEN_FILE")
	if tokenFile == "" {
		return "", nil
	}

	data, err := os.ReadFile(tokenFile)
	if err != nil {
		return "", fmt.Errorf("reading auth token from file %q: %w", tokenFile, err)
	}

	return strings.TrimSpace(string(data)), nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: backsweep <command> [flags]")
	fmt.Fprintln(os.Stderr, "\nCommands:")
	fmt.Fprintln(os.Stderr, "  cleanup    Apply the retention policies to the backup bucket")
	fmt.Fprintln(os.Stderr, "\nGlobal flags:")
	fmt.Fprintln(os.Stderr, "  -h, --help    Show help")
	fmt.Fprintln(os.Stderr, "\nUse 'backsweep <command> --help' for more information about a command.")
}

func printCleanupHelp() {
	fmt.Fprintln(os.Stderr, "Usage: backsweep cleanup [flags]")
	fmt.Fprintln(os.Stderr, "\nDelete backups that fall outside the configured retention policies.")
	fmt.Fprintln(os.Stderr, "\nFlags:")
	fmt.Fprintln(os.Stderr, "  --server-url string")
	fmt.Fprintln(os.Stderr, "        Server URL (can also use BACKSWEEP_SERVER_URL env var)")
	fmt.Fprintln(os.Stderr, "  --auth-token string")
	fmt.Fprintln(os.Stderr, "        Auth token (can also use BACKSWEEP_AUTH_TOKEN_FILE env var)")
	fmt.Fprintln(os.Stderr, "  --auth-token-path string")
	fmt.Fprintln(os.Stderr, "        Path to auth token file")
	fmt.Fprintln(os.Stderr, "  --dry-run")
	fmt.Fprintln(os.Stderr, "        Report what would be deleted without deleting anything")
	fmt.Fprintln(os.Stderr, "  --debug")
	fmt.Fprintln(os.Stderr, "        Enable debug logging")
	fmt.Fprintln(os.Stderr, "  -h, --help")
	fmt.Fprintln(os.Stderr, "        Show this help message")
}

func run() error {
	if len(os.Args) < 2 {
		printUsage()

		return errors.New("no command provided")
	}

	if os.Args[1] == "--help" || os.Args[1] == "-h" || os.Args[1] == "help" {
		printUsage()
		os.Exit(0)
	}

	// Get default auth token from environment (file or var)
	defaultAuthToken, err := getAuthToken()
	if err != nil {
		return err
	}

	cleanupCmd := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	cleanupCmd.Usage = func() {} // Suppress default usage, we'll handle it
	serverURL := cleanupCmd.String("server-url", os.Getenv("BACKSWEEP_SERVER_URL"), "Server URL (can also use BACKSWEEP_SERVER_URL env var)")
	authToken := cleanupCmd.String("auth-token", defaultAuthToken, "Auth token (can also use BACKSWEEP_AUTH_TOKEN_FILE env var)")
	authTokenPath := cleanupCmd.String("auth-token-path", "", "Path to auth token file")
	dryRun := cleanupCmd.Bool("dry-run", false, "Report what would be deleted without deleting anything")
	debug := cleanupCmd.Bool("debug", false, "Enable debug logging")
	help := cleanupCmd.Bool("help", false, "Show help")
	cleanupCmd.BoolVar(help, "h", false, "Show help")

	switch os.Args[1] {
	case "cleanup":
		if err := cleanupCmd.Parse(os.Args[2:]); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				printCleanupHelp()
				os.Exit(0)
			}

			return fmt.Errorf("parsing flags: %w", err)
		}

		if *help {
			printCleanupHelp()
			os.Exit(0)
		}

		setupLogger(*debug)

		if *serverURL == "" {
			return errors.New("server URL is required (use --server-url or BACKSWEEP_SERVER_URL env var)")
		}

		token := *authToken

		if *authTokenPath != "" {
			tokenData, err := os.ReadFile(*authTokenPath)
			if err != nil {
				return fmt.Errorf("reading auth token file: %w", err)
			}

			token = strings.TrimSpace(string(tokenData))
		}

		if token == "" {
			return errors.New("auth token is required (use --auth-token, --auth-token-path, or BACKSWEEP_AUTH_TOKEN_FILE env var)")
		}

		return cleanupCommand(*serverURL, token, *dryRun)

	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

func cleanupCommand(serverURL, authToken string, dryRun bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.NewClient(serverURL, authToken)
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	slog.Info("Starting backup cleanup", "dry-run", dryRun)

	report, err := c.RunCleanup(ctx, dryRun)
	if err != nil {
		return fmt.Errorf("running cleanup: %w", err)
	}

	for _, result := range report.Results {
		if result.Error != "" {
			slog.Warn("Folder cleanup failed",
				"folder", result.Folder,
				"error", result.Error,
			)

			continue
		}

		slog.Info("Folder cleaned up",
			"folder", result.Folder,
			"total-objects", result.TotalObjects,
			"objects-to-delete", result.ObjectsToDelete,
			"deleted", result.Deleted,
			"failed", result.Failed,
		)
	}

	slog.Info(report.Message,
		"total-deleted", report.TotalDeleted,
		"total-failed", report.TotalFailed,
	)

	if report.TotalFailed > 0 {
		return fmt.Errorf("%d objects could not be deleted", report.TotalFailed)
	}

	return nil
}
