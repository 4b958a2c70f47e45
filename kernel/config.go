package kernel

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/appleboy/gin-jwt/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"git.sr.ht/~aondrejcak/policy-console/backend"
	"git.sr.ht/~aondrejcak/policy-console/store"
)

var (
	once       sync.Once
	appRuntime *AppRuntime
)

// configKeys are read from the process environment on top of the .env file.
var configKeys = []string{
	"HOST", "API_BASE_URL", "DATABASE_DSN",
	"SERVICE_NAME", "SERVICE_VERSION", "DEPLOY_ENV",
	"JAEGER_ENDPOINT", "METRICS_EXPORTER", "METRICS_ENDPOINT", "INSECURE",
	"LOG_LEVEL", "SESSION_TTL", "CHAT_RATE_PER_MINUTE", "CHAT_RATE_BURST", "CORS_ORIGINS",
	"SEC_JWT_REALM", "SEC_JWT_IDENTITY_KEY", "SEC_JWT_SECRET_KEY",
	"OPERATOR_EMAIL", "OPERATOR_PASSWORD_HASH",
}

type AppRuntime struct {
	Host       string
	ApiBaseUrl string

	ServiceName           string
	ServiceVersion        string
	DeploymentEnvironment string

	DatabaseDSN    string
	DatabaseClient *gorm.DB
	Store          store.Store

	Backend *backend.Client

	JaegerEndpoint  string
	MetricsExporter string
	MetricsEndpoint string
	Insecure        bool
	LogLevel        string

	SessionTTL        time.Duration
	ChatRatePerMinute float64
	ChatRateBurst     int
	CorsOrigins       []string

	Diagnostic *AppDiagnostic

	Context context.Context

	// Operator login, enabled when SecretKey is set
	Realm                string
	IdentityKey          string
	SecretKey            []byte
	JWT                  *jwt.GinJWTMiddleware
	OperatorEmail        string
	OperatorPasswordHash string
}

// LoadConfig reads .env.<API_ENV> once and returns the process-wide runtime.
func LoadConfig() *AppRuntime {
	once.Do(func() {
		appEnv := os.Getenv("API_ENV")
		if appEnv == "" {
			appEnv = "development"
		}

		env, err := godotenv.Read(".env." + appEnv)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.Fatal().Err(err).Str("env", appEnv).Msg("could not read env file")
			}
			env = map[string]string{}
		}
		for _, key := range configKeys {
			if v, ok := os.LookupEnv(key); ok {
				env[key] = v
			}
		}

		appRuntime = NewAppRuntime(env)
	})
	return appRuntime
}

// NewAppRuntime builds a runtime from explicit key/value pairs, applying defaults.
func NewAppRuntime(env map[string]string) *AppRuntime {
	get := func(key, def string) string {
		if v := strings.TrimSpace(env[key]); v != "" {
			return v
		}
		return def
	}

	serviceName := get("SERVICE_NAME", "policy-console")
	art := &AppRuntime{
		Host:       get("HOST", ":8501"),
		ApiBaseUrl: strings.TrimRight(get("API_BASE_URL", "http://127.0.0.1:8000"), "/"),

		ServiceName:           serviceName,
		ServiceVersion:        get("SERVICE_VERSION", "dev"),
		DeploymentEnvironment: get("DEPLOY_ENV", "development"),

		DatabaseDSN: env["DATABASE_DSN"],

		JaegerEndpoint:  env["JAEGER_ENDPOINT"],
		MetricsExporter: get("METRICS_EXPORTER", "prometheus"),
		MetricsEndpoint: env["METRICS_ENDPOINT"],
		Insecure:        env["INSECURE"] == "true",
		LogLevel:        get("LOG_LEVEL", "info"),

		SessionTTL:        parseDuration(get("SESSION_TTL", "24h"), 24*time.Hour),
		ChatRatePerMinute: parseFloat(get("CHAT_RATE_PER_MINUTE", "20"), 20),
		ChatRateBurst:     int(parseFloat(get("CHAT_RATE_BURST", "5"), 5)),
		CorsOrigins:       splitList(env["CORS_ORIGINS"]),

		Diagnostic: &AppDiagnostic{
			Tracer: otel.Tracer(serviceName + "-tracer"),
			Meter:  otel.Meter(serviceName + "-meter"),
		},

		Context: context.Background(),

		Realm:                get("SEC_JWT_REALM", "policy-console"),
		IdentityKey:          get("SEC_JWT_IDENTITY_KEY", "email"),
		SecretKey:            []byte(env["SEC_JWT_SECRET_KEY"]),
		OperatorEmail:        env["OPERATOR_EMAIL"],
		OperatorPasswordHash: env["OPERATOR_PASSWORD_HASH"],
	}

	art.Backend = backend.NewClient(art.ApiBaseUrl)
	art.Store = store.NewMemory()

	return art
}

func (art *AppRuntime) IsProduction() bool {
	return art.DeploymentEnvironment == "production"
}

func (art *AppRuntime) AuthEnabled() bool {
	return len(art.SecretKey) > 0
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		log.Warn().Str("value", s).Msg("invalid duration, using default")
		return def
	}
	return d
}

func parseFloat(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		log.Warn().Str("value", s).Msg("invalid number, using default")
		return def
	}
	return f
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
