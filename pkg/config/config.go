package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
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

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	School   SchoolConfig
	Ingest   IngestConfig
	Analysis AnalysisConfig
	Cache    CacheConfig
	Exports  ExportsConfig
	Auth     AuthConfig
}

type DatabaseConfig struct {
	Enabled      bool
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
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchoolConfig carries assessment metadata reported verbatim in the document.
type SchoolConfig struct {
	Name           string
	Code           string
	AssessmentName string
	AssessmentDate string
}

// IngestConfig locates the raw CSV sources and the skill tag mapping.
type IngestConfig struct {
	ScoresDir    string
	SkillsDir    string
	SkillTagFile string
}

// AnalysisConfig is the full threshold surface of the detectors. Every value
// is a percentage unless noted; out-of-range values abort startup.
type AnalysisConfig struct {
	RiskThreshold        float64 `validate:"gte=0,lte=100"`
	WeaknessThreshold    float64 `validate:"gte=0,lte=100"`
	PersistenceMinGrades int     `validate:"gte=1"`
	BlindSpotOverallMin  float64 `validate:"gte=0,lte=100"`
	BlindSpotSkillMax    float64 `validate:"gte=0,lte=100"`
	SpecialistHighMin    float64 `validate:"gte=0,lte=100"`
	SpecialistLowMax     float64 `validate:"gte=0,lte=100"`
	InvertedGapMin       float64 `validate:"gte=0,lte=100"`
	VarianceHighMin      float64 `validate:"gte=0,lte=100"`
	VarianceLowMax       float64 `validate:"gte=0,lte=100"`
	Workers              int     `validate:"gte=1"`
}

// CacheConfig governs document memoization behaviour.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// ExportsConfig controls rendered export persistence.
type ExportsConfig struct {
	StorageDir string
}

// AuthConfig maps access keys onto role-scoped class visibility.
type AuthConfig struct {
	ManagementKey     string
	ElementaryKey     string
	MiddleKey         string
	ElementaryClasses []string
	MiddleClasses     []string
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Enabled:      v.GetBool("DB_ENABLED"),
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
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.School = SchoolConfig{
		Name:           v.GetString("SCHOOL_NAME"),
		Code:           v.GetString("SCHOOL_CODE"),
		AssessmentName: v.GetString("ASSESSMENT_NAME"),
		AssessmentDate: v.GetString("ASSESSMENT_DATE"),
	}

	cfg.Ingest = IngestConfig{
		ScoresDir:    v.GetString("SCORES_DATA_DIR"),
		SkillsDir:    v.GetString("SKILLS_DATA_DIR"),
		SkillTagFile: v.GetString("SKILL_TAG_FILE"),
	}

	cfg.Analysis = AnalysisConfig{
		RiskThreshold:        v.GetFloat64("RISK_THRESHOLD"),
		WeaknessThreshold:    v.GetFloat64("WEAKNESS_THRESHOLD"),
		PersistenceMinGrades: v.GetInt("PERSISTENCE_MIN_GRADES"),
		BlindSpotOverallMin:  v.GetFloat64("BLIND_SPOT_OVERALL_MIN"),
		BlindSpotSkillMax:    v.GetFloat64("BLIND_SPOT_SKILL_MAX"),
		SpecialistHighMin:    v.GetFloat64("SPECIALIST_HIGH_MIN"),
		SpecialistLowMax:     v.GetFloat64("SPECIALIST_LOW_MAX"),
		InvertedGapMin:       v.GetFloat64("INVERTED_GAP_MIN"),
		VarianceHighMin:      v.GetFloat64("VARIANCE_HIGH_MIN"),
		VarianceLowMax:       v.GetFloat64("VARIANCE_LOW_MAX"),
		Workers:              v.GetInt("ANALYSIS_WORKERS"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_DOCUMENT_CACHE"),
		TTL:     parseDuration(v.GetString("DOCUMENT_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Exports = ExportsConfig{
		StorageDir: v.GetString("EXPORTS_STORAGE_DIR"),
	}

	cfg.Auth = AuthConfig{
		ManagementKey:     v.GetString("ACCESS_KEY_MANAGEMENT"),
		ElementaryKey:     v.GetString("ACCESS_KEY_ELEMENTARY"),
		MiddleKey:         v.GetString("ACCESS_KEY_MIDDLE"),
		ElementaryClasses: splitAndTrim(v.GetString("ELEMENTARY_CLASSES")),
		MiddleClasses:     splitAndTrim(v.GetString("MIDDLE_CLASSES")),
	}

	if err := validateAnalysis(cfg.Analysis); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validateAnalysis(cfg AnalysisConfig) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("analysis thresholds out of range: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_ENABLED", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "asset_insight")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHOOL_NAME", "PEP School V2")
	v.SetDefault("SCHOOL_CODE", "5103484")
	v.SetDefault("ASSESSMENT_NAME", "EI ASSET")
	v.SetDefault("ASSESSMENT_DATE", "January 2026")

	v.SetDefault("SCORES_DATA_DIR", "./data/scores")
	v.SetDefault("SKILLS_DATA_DIR", "./data/skills")
	v.SetDefault("SKILL_TAG_FILE", "./data/skill_tags.yaml")

	v.SetDefault("RISK_THRESHOLD", 60)
	v.SetDefault("WEAKNESS_THRESHOLD", 65)
	v.SetDefault("PERSISTENCE_MIN_GRADES", 3)
	v.SetDefault("BLIND_SPOT_OVERALL_MIN", 75)
	v.SetDefault("BLIND_SPOT_SKILL_MAX", 40)
	v.SetDefault("SPECIALIST_HIGH_MIN", 80)
	v.SetDefault("SPECIALIST_LOW_MAX", 50)
	v.SetDefault("INVERTED_GAP_MIN", 20)
	v.SetDefault("VARIANCE_HIGH_MIN", 80)
	v.SetDefault("VARIANCE_LOW_MAX", 40)
	v.SetDefault("ANALYSIS_WORKERS", 4)

	v.SetDefault("ENABLE_DOCUMENT_CACHE", false)
	v.SetDefault("DOCUMENT_CACHE_TTL", "10m")

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")

	v.SetDefault("ACCESS_KEY_MANAGEMENT", "")
	v.SetDefault("ACCESS_KEY_ELEMENTARY", "")
	v.SetDefault("ACCESS_KEY_MIDDLE", "")
	v.SetDefault("ELEMENTARY_CLASSES", "3-A,4-A,5-A")
	v.SetDefault("MIDDLE_CLASSES", "6-A,7-A,8-A")
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
