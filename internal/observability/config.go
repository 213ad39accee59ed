package observability

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/digistore/internal/config"
	"github.com/smallbiznis/digistore/internal/observability/logger"
	gormlogger "gorm.io/gorm/logger"
)

const (
	defaultSlowQuery     = 200 * time.Millisecond
	defaultSamplingRatio = 0.1
)

// Config holds observability configuration derived from environment variables.
// Development environments sample every trace and keep masked SQL params.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64

	SlowQueryThreshold time.Duration
	LogSQLParams       bool
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "digistore"
	}
	environment := getenv("DEPLOYMENT_ENV", cfg.Environment)
	version := getenv("SERVICE_VERSION", cfg.AppVersion)
	logLevel := strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info")))
	logFormat := strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json")))
	otlpEndpoint := getenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	otlpProtocol := strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")))
	if tracesProtocol := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL")); tracesProtocol != "" {
		otlpProtocol = strings.ToLower(tracesProtocol)
	}

	dev := isDevEnv(environment)
	defaultRatio := defaultSamplingRatio
	if dev {
		defaultRatio = 1
	}
	samplingRatio := getenvFloat("OTEL_SAMPLING_RATIO", defaultRatio)
	enabled := getenvBool("OTEL_ENABLED", true)

	slowQuery := defaultSlowQuery
	if ms := getenvFloat("DB_SLOW_QUERY_MS", 0); ms > 0 {
		slowQuery = time.Duration(ms * float64(time.Millisecond))
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(environment),
		Version:              strings.TrimSpace(version),
		LogLevel:             logLevel,
		LogFormat:            logFormat,
		OtelEnabled:          enabled,
		OtelExporterEndpoint: strings.TrimSpace(otlpEndpoint),
		OtelExporterProtocol: otlpProtocol,
		OtelSamplingRatio:    samplingRatio,
		SlowQueryThreshold:   slowQuery,
		LogSQLParams:         getenvBool("DB_LOG_SQL_PARAMS", dev),
	}
}

// GormLogger logs every statement in debug mode and only slow or failed ones
// otherwise.
func (c Config) GormLogger() logger.GormLoggerConfig {
	level := gormlogger.Warn
	if c.Debug() {
		level = gormlogger.Info
	}
	return logger.GormLoggerConfig{
		Level:                level,
		SlowThreshold:        c.SlowQueryThreshold,
		IgnoreRecordNotFound: true,
		LogParams:            c.LogSQLParams,
	}
}

func (c Config) Debug() bool {
	level := strings.ToLower(strings.TrimSpace(c.LogLevel))
	if level == "debug" {
		return true
	}
	return isDevEnv(c.Environment)
}

func isDevEnv(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	switch env {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func getenv(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
