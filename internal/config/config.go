package config // package config loads application configuration from environment variables

import (
    "errors"
    "io/fs"
    "log"
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/joho/godotenv"

    "github.com/iliyamo/token-url-service/internal/reputation"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; TokenURLs groups the issuance pipeline settings.
type Config struct {
    Env         string // application environment (e.g. "dev", "prod")
    Port        string // HTTP port to listen on
    DBUser      string // database username
    DBPass      string // database password (optional)
    DBHost      string // database host address
    DBPort      string // database port number
    DBName      string // database name
    JWTSecret   string // secret used to verify session JWTs
    RabbitMQURL string // broker for confirmation mails
    MailDir     string // where the log mailer writes confirmations
    TokenURLs   TokenURLConfig

    // CIDR ranges of reverse proxies whose X-Forwarded-For is believed;
    // empty means the socket peer is the client.
    TrustedProxies []string
}

// TokenURLConfig configures issuance: how long temporary tokens live, which
// email domains are refused outright and how the captcha and reputation
// services are reached.
type TokenURLConfig struct {
    ActivePeriod       time.Duration
    BlockedDomains     []string
    ReputationBaseURL  string
    ReputationTimeout  time.Duration
    ReputationCacheTTL time.Duration
    RecaptchaSecret    string // empty disables captcha verification
    RecaptchaVerifyURL string
}

// Load reads an optional .env file, then the environment.  Required
// variables are enforced by must() and missing values cause the program to
// exit with a fatal log message.
func Load() Config {
    if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
        log.Fatalf("read .env: %v", err)
    }
    return Config{
        Env:         envStr("APP_ENV", "dev"),
        Port:        envStr("APP_PORT", "8080"),
        DBUser:      must("DB_USER"),
        DBPass:      os.Getenv("DB_PASS"),
        DBHost:      must("DB_HOST"),
        DBPort:      must("DB_PORT"),
        DBName:      must("DB_NAME"),
        JWTSecret:   must("JWT_SECRET"),
        RabbitMQURL: os.Getenv("RABBITMQ_URL"),
        MailDir:     envStr("MAIL_DIR", "logs"),
        TokenURLs:   LoadTokenURLConfig(),

        TrustedProxies: envList("TRUSTED_PROXIES"),
    }
}

// LoadTokenURLConfig reads the TOKEN_URLS_*, REPUTATION_* and RECAPTCHA_*
// variables.  TOKEN_URLS_ACTIVE_PERIOD is in seconds.
func LoadTokenURLConfig() TokenURLConfig {
    period := envInt("TOKEN_URLS_ACTIVE_PERIOD", 86400)
    if period < 1 {
        log.Fatalf("invalid TOKEN_URLS_ACTIVE_PERIOD: %d", period)
    }
    return TokenURLConfig{
        ActivePeriod:       time.Duration(period) * time.Second,
        BlockedDomains:     reputation.ParseBlocklist(os.Getenv("TOKEN_URLS_BLOCKED_DOMAINS")),
        ReputationBaseURL:  envStr("REPUTATION_BASE_URL", reputation.DefaultBaseURL),
        ReputationTimeout:  envDur("REPUTATION_TIMEOUT", 3*time.Second),
        ReputationCacheTTL: envDur("REPUTATION_CACHE_TTL", time.Hour),
        RecaptchaSecret:    os.Getenv("RECAPTCHA_SECRET"),
        RecaptchaVerifyURL: os.Getenv("RECAPTCHA_VERIFY_URL"),
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// envList splits a comma separated variable, dropping blank entries.
func envList(k string) []string {
    var out []string
    for _, p := range strings.Split(os.Getenv(k), ",") {
        if p = strings.TrimSpace(p); p != "" {
            out = append(out, p)
        }
    }
    return out
}

func envStr(k, d string) string { if v := os.Getenv(k); v != "" { return v }; return d }
func envBool(k string, d bool) bool {
    v := os.Getenv(k)
    if v == "" { return d }
    if b, err := strconv.ParseBool(v); err == nil { return b }
    switch v {
    case "yes", "YES", "on", "ON": return true
    case "no", "NO", "off", "OFF": return false
    }
    return d
}
func envInt(k string, d int) int {
    v := os.Getenv(k); if v == "" { return d }
    if n, err := strconv.Atoi(v); err == nil { return n }
    return d
}
func envDur(k string, d time.Duration) time.Duration {
    v := os.Getenv(k); if v == "" { return d }
    if dur, err := time.ParseDuration(v); err == nil { return dur }
    return d
}
