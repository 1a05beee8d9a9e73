package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	HenrikAPIToken  string
	DiscordBotToken string
	DiscordGuildID  int64
	DBPath          string
	ServerPort      string
	LogLevel        string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		HenrikAPIToken:  getEnv("HENRIK_API_TOKEN", ""),
		DiscordBotToken: getEnv("DISCORD_BOT_TOKEN", ""),
		DBPath:          getEnv("DB_PATH", "valorantsl.db"),
		ServerPort:      getEnv("SERVER_PORT", "8000"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	if cfg.HenrikAPIToken == "" {
		return nil, fmt.Errorf("HENRIK_API_TOKEN is required")
	}
	if cfg.DiscordBotToken == "" {
		return nil, fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}

	guildID := getEnv("DISCORD_GUILD_ID", "")
	if guildID == "" {
		return nil, fmt.Errorf("DISCORD_GUILD_ID is required")
	}
	parsed, err := strconv.ParseInt(guildID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("DISCORD_GUILD_ID must be a snowflake: %w", err)
	}
	cfg.DiscordGuildID = parsed

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Int64("guild_id", cfg.DiscordGuildID).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
