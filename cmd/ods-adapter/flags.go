package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// CLIConfig holds command-line configuration.
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	ShowVersion     bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("ODS_ADAPTER_CONFIG", ""),
		"Path to configuration file, empty for defaults (env: ODS_ADAPTER_CONFIG)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("ODS_ADAPTER_LOG_LEVEL", ""),
		"Log level override: debug, info, warn, error (env: ODS_ADAPTER_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("ODS_ADAPTER_LOG_FORMAT", ""),
		"Log format override: json, text (env: ODS_ADAPTER_LOG_FORMAT)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("ODS_ADAPTER_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: ODS_ADAPTER_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "%s - Open Data Service adapter\n\nUsage: %s [options]\n\nOptions:\n",
			appName, os.Args[0])
		flag.PrintDefaults()
	}

	flag.Parse()
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
