package environment_variables

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
)

// EnvironmentVariable mirrors the process environment. Each field is read
// from the variable of the same name; the `default` tag applies when the
// variable is unset or cannot be parsed.
type EnvironmentVariable struct {
	LOG_LEVEL string `default:"info"`
	HTTP_PORT int    `default:"8080"`
	// ALLOWED_CORS_HOSTS is a comma separated list of origins.
	ALLOWED_CORS_HOSTS string
	// ADMIN_API_KEY guards /v1/admin. Admin routes are closed when unset.
	ADMIN_API_KEY string

	CACHE_TYPE     string `default:"redis"`
	CACHE_URL      string
	CACHE_PASSWORD string
	CACHE_DB       string
	REDIS_URL      string
	REDIS_PASSWORD string
	REDIS_DB       string

	DB_DRIVER               string `default:"postgres"`
	DB_POSTGRESQL_WRITE_DSN string
	DB_POSTGRESQL_READ1_DSN string
	DB_SQLITE_PATH          string `default:"insights.db"`

	INFERENCE_PROVIDER        string `default:"openai"`
	INFERENCE_BASE_URL        string
	INFERENCE_API_KEY         string
	INFERENCE_MODEL           string `default:"gpt-4o-mini"`
	INFERENCE_TIMEOUT_SECONDS int    `default:"45"`
	INFERENCE_MAX_TOKENS      int    `default:"1200"`

	LOCK_LEASE_SECONDS             int `default:"60"`
	LOCK_WAIT_ATTEMPTS             int `default:"3"`
	LOCK_WAIT_DELAY_MS             int `default:"2000"`
	STILL_GENERATING_RETRY_SECONDS int `default:"5"`

	RATE_BURST_LIMIT          int `default:"30"`
	RATE_BURST_WINDOW_SECONDS int `default:"10"`
	RATE_COOLDOWN_SECONDS     int `default:"5"`
	RATE_SUSTAINED_PER_HOUR   int `default:"60"`

	BUDGET_DAILY_LIMIT_USD float64 `default:"25"`
	BUDGET_FAIL_MODE       string  `default:"closed"`
	PRICING_TABLE_PATH     string

	STRICT_TIMEZONE bool `default:"false"`
}

func (ev *EnvironmentVariable) LoadFromEnv() {
	v := reflect.ValueOf(ev).Elem()
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		envKey := field.Name
		envValue := strings.TrimSpace(os.Getenv(envKey))
		if envValue == "" {
			envValue = field.Tag.Get("default")
			if envValue == "" {
				fmt.Printf("Missing SYSENV: %s\n", envKey)
				continue
			}
		}
		if err := setField(v.Field(i), envValue); err != nil {
			fmt.Printf("Invalid SYSENV: %s: %v\n", envKey, err)
			if def := field.Tag.Get("default"); def != "" {
				_ = setField(v.Field(i), def)
			}
		}
	}
}

func setField(f reflect.Value, raw string) error {
	switch f.Kind() {
	case reflect.String:
		f.SetString(raw)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		f.SetInt(n)
	case reflect.Float64:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		f.SetFloat(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		f.SetBool(b)
	default:
		return fmt.Errorf("unsupported kind %s", f.Kind())
	}
	return nil
}

// CORSHosts splits ALLOWED_CORS_HOSTS.
func (ev *EnvironmentVariable) CORSHosts() []string {
	var hosts []string
	for _, h := range strings.Split(ev.ALLOWED_CORS_HOSTS, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

// Singleton. Written once at startup; services copy what they need when
// they are constructed.
var EnvironmentVariables = EnvironmentVariable{}

var reloaded atomic.Pointer[EnvironmentVariable]

// Reload reads the environment into a fresh value and publishes it to
// Current. It never writes EnvironmentVariables, so only fields read
// through Current (admin key, CORS hosts) change at runtime.
func Reload() {
	ev := EnvironmentVariable{}
	ev.LoadFromEnv()
	reloaded.Store(&ev)
}

// Current returns the latest Reload snapshot, or the startup values when
// no reload has happened. The result must be treated as read-only.
func Current() *EnvironmentVariable {
	if ev := reloaded.Load(); ev != nil {
		return ev
	}
	return &EnvironmentVariables
}
