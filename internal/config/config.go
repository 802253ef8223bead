package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

type Config struct {
	ConfigPath string
	Profile    string
	ApiGinMode string
	LogLevel   string
	LogFormat  string

	Ip   string
	Port string

	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string

	// auth
	JWTSecret     string
	JWTExpire     time.Duration
	JWTIssuer     string
	CookieSecure  bool
	CookieDomain  string
	SessionSecret string

	// seeded admin
	AdminEmail    string
	AdminPassword string
	AdminName     string

	// storage
	StoreDriver  string
	StoreTimeout time.Duration
	DBAddress    string
	DBUser       string
	DBPassword   string
	DBName       string
	MongoURI     string
	MongoDB      string

	// token revocation
	RedisURL string

	// optional keycloak federation
	KCAddress      string
	KCRealm        string
	KCClientID     string
	KCClientSecret string
	KCAudience     string

	TemplatesPath string
	StaticsPath   string
}

// Load reads the .env file at path (if any) and then the environment.
func Load(path string, log *logrus.Logger) Config {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := godotenv.Load(path); err != nil {
		log.Warnf("failed to load the config file at %s, using default ones...", path)
	}

	s := strings.Split(path, "/")
	cfg := Config{
		ConfigPath: s[len(s)-1],
		Profile:    getEnv("PROFILE", "development"),
		ApiGinMode: getEnv("GIN_MODE", "debug"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "text"),

		Ip:             getEnv("IP", "localhost"),
		Port:           getEnv("PORT", "5000"),
		AllowedOrigins: getEnvFields("ALLOW_ORIGINS", []string{"*"}),
		AllowedMethods: getEnvFields("ALLOW_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		AllowedHeaders: getEnvFields("ALLOW_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization"}),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		JWTExpire:     getDurationEnv("JWT_EXPIRE", 30*24*time.Hour),
		JWTIssuer:     getEnv("JWT_ISSUER", "tasktracker"),
		CookieSecure:  getBoolEnv("COOKIE_SECURE", "false"),
		CookieDomain:  getEnv("COOKIE_DOMAIN", ""),
		SessionSecret: getEnv("SESSION_SECRET", ""),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminName:     getEnv("ADMIN_NAME", "Administrator"),

		StoreDriver:  strings.ToLower(getEnv("STORE_DRIVER", DriverMemory)),
		StoreTimeout: getDurationEnv("STORE_TIMEOUT", 5*time.Second),
		DBAddress:    getEnv("DB_ADDRESS", "localhost:5432"),
		DBUser:       getEnv("DB_USER", "postgres"),
		DBPassword:   getEnv("DB_PASSWORD", "postgres"),
		DBName:       getEnv("DB_NAME", "tasktracker"),
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:      getEnv("MONGO_DB", "tasktracker"),

		RedisURL: getEnv("REDIS_URL", ""),

		KCAddress:      getEnv("KC_ADDRESS", ""),
		KCRealm:        getEnv("KC_REALM", "tasktracker"),
		KCClientID:     getEnv("KC_CLIENT", "tasktracker"),
		KCClientSecret: getEnv("KC_CLIENT_SECRET", ""),
		KCAudience:     getEnv("KC_AUDIENCE", "account"),

		TemplatesPath: getEnv("TEMPLATES_PATH", ""),
		StaticsPath:   getEnv("STATICS_PATH", ""),
	}

	if cfg.SessionSecret == "" {
		cfg.SessionSecret = cfg.JWTSecret
	}

	log.Info(cfg.toString())

	return cfg
}

func (cfg *Config) Validate() error {
	var errs []error
	if len(cfg.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if cfg.JWTExpire <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRE must be positive"))
	}
	switch cfg.StoreDriver {
	case DriverPostgres, DriverMongo, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver))
	}
	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together"))
	}
	return errors.Join(errs...)
}

func (cfg *Config) IsProduction() bool {
	return strings.EqualFold(cfg.Profile, "production")
}

func (cfg *Config) KeycloakEnabled() bool {
	return cfg.KCAddress != ""
}

func (cfg *Config) Addr() string {
	return fmt.Sprintf(":%s", cfg.Port)
}

func getEnv(env, fallback string) string {
	if value, exists := os.LookupEnv(env); exists {
		return value
	}

	return fallback
}

func getEnvFields(env string, fallback []string) []string {
	if value, exists := os.LookupEnv(env); exists {
		fields := strings.Split(strings.TrimSpace(value), ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		return fields
	}

	return fallback
}

func getBoolEnv(env, fallback string) bool {
	if value, exists := os.LookupEnv(env); exists {
		return strings.ToLower(value) == "true"
	}

	return strings.ToLower(fallback) == "true"
}

func getIntEnv(env string, fallback int) int {
	if value, exists := os.LookupEnv(env); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
	}

	return fallback
}

// getDurationEnv accepts Go durations ("12h") and the day form "30d".
// A bare integer is read as seconds.
func getDurationEnv(env string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(env)
	if !exists {
		return fallback
	}
	value = strings.TrimSpace(value)
	if days, ok := strings.CutSuffix(value, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil {
			return time.Duration(n) * 24 * time.Hour
		}
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs := getIntEnv(env, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}

	return fallback
}

var secretFields = map[string]bool{
	"JWTSecret":      true,
	"SessionSecret":  true,
	"AdminPassword":  true,
	"DBPassword":     true,
	"KCClientSecret": true,
}

func (cfg *Config) toString() string {
	var strBuilder strings.Builder

	reflectedValues := reflect.ValueOf(cfg).Elem()
	reflectedTypes := reflect.TypeOf(cfg).Elem()

	strBuilder.WriteString(fmt.Sprintf("[CFG]CONFIGURATION: %s\n", cfg.ConfigPath))

	for i := range reflectedValues.NumField() {
		fieldName := reflectedTypes.Field(i).Name
		fieldValue := reflectedValues.Field(i).Interface()

		if secretFields[fieldName] {
			if s, _ := fieldValue.(string); s != "" {
				fieldValue = "********"
			}
		}

		strBuilder.WriteString("[CFG]")
		if i < 9 {
			strBuilder.WriteString(fmt.Sprintf("%d.  ", i+1))
		} else {
			strBuilder.WriteString(fmt.Sprintf("%d. ", i+1))
		}
		if len(fieldName) <= 6 {
			strBuilder.WriteString(fmt.Sprintf("%v\t\t\t\t\t-> %v\n", fieldName, fieldValue))
		} else if len(fieldName) <= 14 {
			strBuilder.WriteString(fmt.Sprintf("%v\t\t\t\t-> %v\n", fieldName, fieldValue))
		} else {
			strBuilder.WriteString(fmt.Sprintf("%v\t\t\t-> %v\n", fieldName, fieldValue))
		}
	}

	return strBuilder.String()
}
