package config

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server       Server
	Database     Database
	Practice     Practice
	GeminiApiKey string
}

type Server struct {
	Port string
}

type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// Practice holds the tunables for session expiry and credit metering.
// Costs and allowances are configuration, not derived invariants.
type Practice struct {
	GraceMinutes       int
	GradingCreditCost  int64
	DefaultCredits     int64
	ChatDailyLimit     int64
	GradingWorkerCount int
	GradingQueueSize   int
}

func NewConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	viper.SetDefault("PRACTICE_GRACE_MINUTES", 2)
	viper.SetDefault("PRACTICE_GRADING_CREDIT_COST", 10)
	viper.SetDefault("PRACTICE_DEFAULT_CREDITS", 100)
	viper.SetDefault("PRACTICE_CHAT_DAILY_LIMIT", 50)
	viper.SetDefault("PRACTICE_GRADING_WORKER_COUNT", 4)
	viper.SetDefault("PRACTICE_GRADING_QUEUE_SIZE", 64)

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config

	config.Server.Port = viper.GetString("SERVER_PORT")
	config.Database.Host = viper.GetString("DATABASE_HOST")
	config.Database.Port = viper.GetString("DATABASE_PORT")
	config.Database.User = viper.GetString("DATABASE_USER")
	config.Database.Password = viper.GetString("DATABASE_PASSWORD")
	config.Database.Name = viper.GetString("DATABASE_NAME")

	config.Practice.GraceMinutes = viper.GetInt("PRACTICE_GRACE_MINUTES")
	config.Practice.GradingCreditCost = viper.GetInt64("PRACTICE_GRADING_CREDIT_COST")
	config.Practice.DefaultCredits = viper.GetInt64("PRACTICE_DEFAULT_CREDITS")
	config.Practice.ChatDailyLimit = viper.GetInt64("PRACTICE_CHAT_DAILY_LIMIT")
	config.Practice.GradingWorkerCount = viper.GetInt("PRACTICE_GRADING_WORKER_COUNT")
	config.Practice.GradingQueueSize = viper.GetInt("PRACTICE_GRADING_QUEUE_SIZE")

	config.GeminiApiKey = viper.GetString("GEMINI_API_KEY")

	log.Info().Str("port", config.Server.Port).Msg("Config loaded")
	return &config, nil
}
