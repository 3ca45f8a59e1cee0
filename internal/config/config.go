package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenAddr      string        // ex: "127.0.0.1:7337"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Download service (initial settings, overridden by the settings store)
	ServiceHost     string // ex: "localhost"
	ServicePort     int    // ex: 1337
	FallbackPorts   []int  // ports swept when the service was never reached
	DownloadQuality string // ex: "flac"
	Notifications   bool   // log user-facing notifications
	SettingsFile    string // optional YAML settings file (empty = in memory unless Redis is set)

	HealthInterval time.Duration // periodic status check (0 = disabled)
	RequestTimeout time.Duration // per request timeout against the service
	ProbeOrigin    string        // Origin header sent with status probes
	ServiceCancel  bool          // the service implements DELETE /queue/{id}

	// Redis (optional job mirror and settings store)
	RedisAddr             string        // ex: "localhost:6379", empty disables Redis
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 2s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	// History archive (optional)
	HistoryBucket     string        // gocloud blob URL, ex: "file:///var/lib/dlbridge", empty disables history
	HistoryMaxAge     time.Duration // records older than this are pruned (default: 30 days)
	HistoryGCInterval time.Duration // interval to prune history (default: 24h)

	// Access restrictions
	AllowedHosts   []string // Host headers accepted by the API (DNS rebinding guard)
	AllowedCIDRS   []string // optional, restrict access to specific IP ranges
	AllowedOrigins []string // CORS origins allowed to call the API (ex: "https://www.qobuz.com")
	TrustProxy     bool     // true => trust X-Forwarded-For headers
	SubmitRate     int      // download submissions allowed per minute and client (0 = unlimited)
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenAddr:      getenv("DLBRIDGE_LISTEN_ADDR", "127.0.0.1:7337"),
		ShutdownTimeout: mustDuration("DLBRIDGE_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("DLBRIDGE_LOG_LEVEL", "info"),
		PrettyLog: mustBool("DLBRIDGE_PRETTY_LOG", true),

		// Download service
		ServiceHost:     getenv("DLBRIDGE_SERVICE_HOST", "localhost"),
		ServicePort:     getenvPort("DLBRIDGE_SERVICE_PORT", 1337),
		FallbackPorts:   getenvPorts("DLBRIDGE_FALLBACK_PORTS", "8337,1338,1339,7777"),
		DownloadQuality: getenv("DLBRIDGE_DOWNLOAD_QUALITY", "flac"),
		Notifications:   mustBool("DLBRIDGE_NOTIFICATIONS", true),
		SettingsFile:    getenv("DLBRIDGE_SETTINGS_FILE", ""),
		HealthInterval:  mustDuration("DLBRIDGE_HEALTH_INTERVAL", 30*time.Second),
		RequestTimeout:  mustDuration("DLBRIDGE_REQUEST_TIMEOUT", 10*time.Second),
		ProbeOrigin:     getenv("DLBRIDGE_PROBE_ORIGIN", ""),
		ServiceCancel:   mustBool("DLBRIDGE_SERVICE_CANCEL", false),

		// Redis settings
		RedisAddr:             getenv("DLBRIDGE_REDIS_ADDR", ""),
		RedisUser:             getenv("DLBRIDGE_REDIS_USERNAME", ""),
		RedisPasswordRequired: mustBool("DLBRIDGE_REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         getenv("DLBRIDGE_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("DLBRIDGE_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 2*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// History
		HistoryBucket:     getenv("DLBRIDGE_HISTORY_BUCKET", ""),
		HistoryMaxAge:     mustDuration("DLBRIDGE_HISTORY_MAX_AGE", 30*24*time.Hour),
		HistoryGCInterval: mustDuration("DLBRIDGE_HISTORY_GC_INTERVAL", 24*time.Hour),

		// Access restrictions
		AllowedHosts:   splitAndTrim(getenv("DLBRIDGE_ALLOWED_HOSTS", "localhost,127.0.0.1,::1")),
		AllowedCIDRS:   parseAllowedIPs(getenv("DLBRIDGE_ALLOWED_CIDRS", "")),
		AllowedOrigins: splitAndTrim(getenv("DLBRIDGE_ALLOWED_ORIGINS", "")),
		TrustProxy:     mustBool("DLBRIDGE_TRUST_PROXY", false),
		SubmitRate:     getenvInt("DLBRIDGE_SUBMIT_RATE", 60),
	}

	if strings.TrimSpace(cfg.DownloadQuality) == "" {
		cfg.DownloadQuality = "flac"
	}

	// Validate Redis password configuration
	if cfg.RedisAddr != "" && cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: DLBRIDGE_REDIS_PASSWORD is required when DLBRIDGE_REDIS_PASSWORD_REQUIRED=true")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// RedisEnabled reports whether a Redis address was configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// HistoryEnabled reports whether a history bucket was configured.
func (c *Config) HistoryEnabled() bool {
	return c.HistoryBucket != ""
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// getenvPort reads a TCP port; out of range values use the default.
func getenvPort(key string, def int) int {
	p := getenvInt(key, def)
	if !validPort(p) {
		return def
	}
	return p
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}

// getenvPorts keeps the valid entries of a port list; a bad entry does not
// discard the rest.
func getenvPorts(key, def string) []int {
	ports, _ := ParsePorts(getenv(key, def))
	return ports
}

// ParsePorts parses a comma separated port list, skipping duplicates. Invalid
// entries are left out of the result and named in the error.
func ParsePorts(s string) ([]int, error) {
	parts := splitAndTrim(s)
	if len(parts) == 0 {
		return nil, nil
	}
	ports := make([]int, 0, len(parts))
	seen := make(map[int]bool, len(parts))
	var bad []string
	for _, part := range parts {
		p, err := strconv.Atoi(part)
		if err != nil || !validPort(p) {
			bad = append(bad, strconv.Quote(part))
			continue
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		ports = append(ports, p)
	}
	if len(bad) > 0 {
		return ports, fmt.Errorf("invalid port %s", strings.Join(bad, ", "))
	}
	return ports, nil
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
