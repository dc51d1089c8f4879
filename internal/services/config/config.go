package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/traefik/paerser/env"
	"github.com/traefik/paerser/file"

	"github.com/zekurio/hearth/internal/models"
	"github.com/zekurio/hearth/internal/services/database/dberr"
)

var ErrMissingToken = errors.New("discord token is not set")

// Parse builds the config from the given defaults, the config file at
// cfgFile (if it exists) and environment variables prefixed with
// envPrefix, in that order. A .env file in the working directory is
// loaded into the environment first.
func Parse(cfgFile, envPrefix string, def models.Config) (models.Config, error) {
	cfg := def

	if err := godotenv.Load(); err == nil {
		log.Debug("Loaded .env file")
	}

	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			if err = file.Decode(cfgFile, &cfg); err != nil {
				return models.Config{}, fmt.Errorf("decoding config file: %w", err)
			}
			log.Debug("Loaded config file", "path", cfgFile)
		} else if !os.IsNotExist(err) {
			return models.Config{}, err
		}
	}

	environ := os.Environ()
	if hasPrefixed(environ, envPrefix) {
		if err := env.Decode(environ, envPrefix, &cfg); err != nil {
			return models.Config{}, fmt.Errorf("decoding environment: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return models.Config{}, err
	}

	return cfg, nil
}

// Validate checks the values which can not be defaulted.
func Validate(cfg models.Config) error {
	if cfg.Discord.Token == "" {
		return ErrMissingToken
	}

	if cfg.Discord.OwnerID != "" {
		if _, err := snowflake.ParseString(cfg.Discord.OwnerID); err != nil {
			return fmt.Errorf("invalid owner ID %q: %w", cfg.Discord.OwnerID, err)
		}
	}

	switch strings.ToLower(cfg.Database.Driver) {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("%w: %q", dberr.ErrUnknownDriver, cfg.Database.Driver)
	}

	if cfg.Autovoice.ReconcileWorkers < 1 {
		return errors.New("autovoice reconcile workers must be at least 1")
	}

	return nil
}

func hasPrefixed(environ []string, prefix string) bool {
	for _, e := range environ {
		if strings.HasPrefix(strings.ToUpper(e), prefix) {
			return true
		}
	}
	return false
}
