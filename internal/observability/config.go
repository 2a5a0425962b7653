package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/smallbiznis/sparks/internal/config"
)

// Config is the observability slice of the environment. Every sparks binary
// loads it the same way; SPARKS_COMPONENT tells their telemetry apart.
type Config struct {
	ServiceName string
	Component   string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	out := Config{
		ServiceName: firstNonEmpty(cfg.AppName, "sparks"),
		Component:   strings.ToLower(env("SPARKS_COMPONENT")),
		Environment: firstNonEmpty(env("DEPLOYMENT_ENV"), strings.TrimSpace(cfg.Environment)),
		Version:     firstNonEmpty(env("SERVICE_VERSION"), strings.TrimSpace(cfg.AppVersion)),
		LogLevel:    strings.ToLower(firstNonEmpty(env("LOG_LEVEL"), "info")),

		OtelExporterEndpoint: firstNonEmpty(env("OTEL_EXPORTER_OTLP_ENDPOINT"), strings.TrimSpace(cfg.OTLPEndpoint)),
		OtelExporterProtocol: strings.ToLower(firstNonEmpty(
			env("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL"),
			env("OTEL_EXPORTER_OTLP_PROTOCOL"),
			"grpc",
		)),
	}

	if out.Component != "" && !strings.HasSuffix(out.ServiceName, "-"+out.Component) {
		out.ServiceName += "-" + out.Component
	}

	// Humans read dev logs; collectors read everything else.
	defaultFormat := "json"
	if isDevEnv(out.Environment) {
		defaultFormat = "console"
	}
	out.LogFormat = strings.ToLower(firstNonEmpty(env("LOG_FORMAT"), defaultFormat))

	out.OtelEnabled = envBool("OTEL_ENABLED", out.OtelExporterEndpoint != "")

	ratio := envFloat("OTEL_SAMPLING_RATIO", 0.1)
	out.OtelSamplingRatio = min(max(ratio, 0), 1)

	return out
}

func (c Config) Debug() bool {
	return c.LogLevel == "debug" || isDevEnv(c.Environment)
}

func isDevEnv(environment string) bool {
	switch strings.ToLower(strings.TrimSpace(environment)) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func envBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(env(key)); err == nil {
		return v
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(env(key), 64); err == nil {
		return v
	}
	return def
}
