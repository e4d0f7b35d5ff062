package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	CORS      CORSConfig
	Log       LogConfig
	Cache     CacheConfig
	Store     StoreConfig
	Scheduler SchedulerConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// AuthConfig gates bearer token validation on the API routes.
type AuthConfig struct {
	Enabled bool
	Secret  string
	Issuer  string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig controls Redis caching of previews and seeded generations.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// StoreConfig toggles the Postgres-backed input snapshot store.
type StoreConfig struct {
	Enabled bool
}

// SchedulerConfig holds the genetic optimizer defaults. Requests may
// override the search parameters per call.
type SchedulerConfig struct {
	PopulationSize  int
	MaxGenerations  int
	EliteCount      int
	TournamentSize  int
	CrossoverRate   float64
	MutationRate    float64
	StagnationLimit int
	TimeBudget      time.Duration
	Workers         int
	TargetSoft      int
	MaxTeacherLoad  int
	LectureDuration int
	LabBlockSlots   int

	RunTTL     time.Duration
	RunWorkers int
	RunRetries int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Auth = AuthConfig{
		Enabled: v.GetBool("AUTH_ENABLED"),
		Secret:  v.GetString("JWT_SECRET"),
		Issuer:  v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 15*time.Minute),
	}

	cfg.Store = StoreConfig{
		Enabled: v.GetBool("ENABLE_INPUT_STORE"),
	}

	cfg.Scheduler = SchedulerConfig{
		PopulationSize:  v.GetInt("SCHEDULER_POPULATION_SIZE"),
		MaxGenerations:  v.GetInt("SCHEDULER_MAX_GENERATIONS"),
		EliteCount:      v.GetInt("SCHEDULER_ELITE_COUNT"),
		TournamentSize:  v.GetInt("SCHEDULER_TOURNAMENT_SIZE"),
		CrossoverRate:   v.GetFloat64("SCHEDULER_CROSSOVER_RATE"),
		MutationRate:    v.GetFloat64("SCHEDULER_MUTATION_RATE"),
		StagnationLimit: v.GetInt("SCHEDULER_STAGNATION_LIMIT"),
		TimeBudget:      parseDuration(v.GetString("SCHEDULER_TIME_BUDGET"), 20*time.Second),
		Workers:         v.GetInt("SCHEDULER_WORKERS"),
		TargetSoft:      v.GetInt("SCHEDULER_TARGET_SOFT"),
		MaxTeacherLoad:  v.GetInt("SCHEDULER_MAX_TEACHER_LOAD"),
		LectureDuration: v.GetInt("SCHEDULER_LECTURE_DURATION"),
		LabBlockSlots:   v.GetInt("SCHEDULER_LAB_BLOCK_SLOTS"),
		RunTTL:          parseDuration(v.GetString("SCHEDULER_RUN_TTL"), 30*time.Minute),
		RunWorkers:      v.GetInt("SCHEDULER_RUN_WORKERS"),
		RunRetries:      v.GetInt("SCHEDULER_RUN_RETRIES"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8000)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("AUTH_ENABLED", false)
	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_TTL", "15m")
	v.SetDefault("ENABLE_INPUT_STORE", false)

	v.SetDefault("SCHEDULER_POPULATION_SIZE", 80)
	v.SetDefault("SCHEDULER_MAX_GENERATIONS", 400)
	v.SetDefault("SCHEDULER_ELITE_COUNT", 4)
	v.SetDefault("SCHEDULER_TOURNAMENT_SIZE", 3)
	v.SetDefault("SCHEDULER_CROSSOVER_RATE", 0.8)
	v.SetDefault("SCHEDULER_MUTATION_RATE", 0.6)
	v.SetDefault("SCHEDULER_STAGNATION_LIMIT", 80)
	v.SetDefault("SCHEDULER_TIME_BUDGET", "20s")
	v.SetDefault("SCHEDULER_WORKERS", 0)
	v.SetDefault("SCHEDULER_TARGET_SOFT", 0)
	v.SetDefault("SCHEDULER_MAX_TEACHER_LOAD", 0)
	v.SetDefault("SCHEDULER_LECTURE_DURATION", 60)
	v.SetDefault("SCHEDULER_LAB_BLOCK_SLOTS", 2)
	v.SetDefault("SCHEDULER_RUN_TTL", "30m")
	v.SetDefault("SCHEDULER_RUN_WORKERS", 2)
	v.SetDefault("SCHEDULER_RUN_RETRIES", 1)
}

func isMissingFile(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "no such file")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
