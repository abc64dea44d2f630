package config

import (
	"log/slog"
	"os"

	"github.com/subosito/gotenv"
)

// CredentialsFile is the env file the API keys were historically kept in
const CredentialsFile = "apis.env"

// LoadEnv loads config/envs/.env.<env> and then the credentials file.
// Values already present in the OS environment are never overridden.
func LoadEnv(env string) {
	envFile := "config/envs/.env." + env
	if err := gotenv.Load(envFile); err != nil {
		slog.Warn("No .env file found, using OS environment", slog.String("file", envFile))
	}

	if _, err := os.Stat(CredentialsFile); err == nil {
		if err := gotenv.Load(CredentialsFile); err != nil {
			slog.Warn("Failed to load credentials file",
				slog.String("file", CredentialsFile),
				slog.String("error", err.Error()))
		}
	}
}
