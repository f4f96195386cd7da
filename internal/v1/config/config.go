// Package config resolves and validates server configuration from CLI
// arguments and environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// DefaultPort is used when neither a CLI argument nor the PORT environment
// variable supplies a valid port.
const DefaultPort = "8080"

// ErrHelp is returned by Load when the user asked for usage output. The
// caller prints usage and exits 0.
var ErrHelp = errors.New("help requested")

// Config holds validated server configuration.
type Config struct {
	Port            string
	GoEnv           string
	LogLevel        string
	DevelopmentMode bool
	AllowedOrigins  []string
}

// Load resolves configuration. Port precedence: CLI argument > PORT env >
// DefaultPort. An invalid CLI port is a hard error; an invalid PORT env
// falls back to the default with a warning on stderr.
//
// args is os.Args[1:]; stderr is injectable for tests.
func Load(args []string, stderr io.Writer) (*Config, error) {
	cfg := &Config{Port: DefaultPort}

	if len(args) > 0 {
		switch args[0] {
		case "-h", "--help":
			return nil, ErrHelp
		}
		if !isValidPort(args[0]) {
			return nil, fmt.Errorf("invalid port number: %s", args[0])
		}
		cfg.Port = args[0]
	} else if envPort := os.Getenv("PORT"); envPort != "" {
		if isValidPort(envPort) {
			cfg.Port = envPort
		} else {
			fmt.Fprintf(stderr, "Invalid PORT env: %s, using %s\n", envPort, DefaultPort)
		}
	}

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.DevelopmentMode = os.Getenv("DEVELOPMENT_MODE") == "true" || cfg.GoEnv == "development"
	cfg.AllowedOrigins = splitOrigins(os.Getenv("ALLOWED_ORIGINS"))

	return cfg, nil
}

// Usage returns the CLI usage text.
func Usage(programName string) string {
	return fmt.Sprintf("Usage: %s [port]\n  port: Port number to listen on (default: %s)\n", programName, DefaultPort)
}

func isValidPort(s string) bool {
	port, err := strconv.Atoi(s)
	return err == nil && port >= 1 && port <= 65535
}

func splitOrigins(raw string) []string {
	if raw == "" {
		return []string{"http://localhost:3000"}
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
