package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Email providers
const (
	EmailProviderGraph = "graph"
	EmailProviderGmail = "gmail"
	EmailProviderIMAP  = "imap"
)

// SLATarget is a per-relationship response target parsed from SLA_TARGETS
type SLATarget struct {
	Relationship string
	MaxHours     int
}

type Config struct {
	Port        string
	JWTSecret   string
	JWTExpiry   time.Duration
	DatabaseURL string

	GraphBaseURL      string
	GraphAccessToken  string
	GraphRefreshToken string
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string

	EmailProvider      string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleAccessToken  string
	GoogleRefreshToken string
	IMAPServer         string
	IMAPPort           int
	IMAPUsername       string
	IMAPPassword       string

	GoogleProjectID          string
	GooglePubSubTopic        string
	GooglePubSubSubscription string
	GoogleCredentials        string
	FirebaseCredentials      string

	AutoRefreshInterval  time.Duration
	RelationshipCacheTTL time.Duration
	AvatarBatchDelay     time.Duration
	SLATargets           []SLATarget
	MinStaleHours        int
	MaxResults           int
	TrendDays            int
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		JWTSecret:   getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTExpiry:   getDuration("JWT_EXPIRY", 24*time.Hour),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		GraphBaseURL:      getEnv("GRAPH_BASE_URL", "https://graph.microsoft.com/v1.0"),
		GraphAccessToken:  getEnv("GRAPH_ACCESS_TOKEN", ""),
		GraphRefreshToken: getEnv("GRAPH_REFRESH_TOKEN", ""),
		AzureTenantID:     getEnv("AZURE_TENANT_ID", "common"),
		AzureClientID:     getEnv("AZURE_CLIENT_ID", ""),
		AzureClientSecret: getEnv("AZURE_CLIENT_SECRET", ""),

		EmailProvider:      strings.ToLower(getEnv("EMAIL_PROVIDER", EmailProviderGraph)),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleAccessToken:  getEnv("GOOGLE_ACCESS_TOKEN", ""),
		GoogleRefreshToken: getEnv("GOOGLE_REFRESH_TOKEN", ""),
		IMAPServer:         getEnv("IMAP_SERVER", ""),
		IMAPPort:           getInt("IMAP_PORT", 993),
		IMAPUsername:       getEnv("IMAP_USERNAME", ""),
		IMAPPassword:       getEnv("IMAP_PASSWORD", ""),

		GoogleProjectID:          getEnv("GOOGLE_PROJECT_ID", ""),
		GooglePubSubTopic:        getEnv("GOOGLE_PUBSUB_TOPIC", ""),
		GooglePubSubSubscription: getEnv("GOOGLE_PUBSUB_SUBSCRIPTION", ""),
		GoogleCredentials:        getEnv("GOOGLE_CREDENTIALS", ""),
		FirebaseCredentials:      getEnv("FIREBASE_CREDENTIALS", ""),

		AutoRefreshInterval:  time.Duration(getInt("AUTO_REFRESH_INTERVAL_MS", 300000)) * time.Millisecond,
		RelationshipCacheTTL: getDuration("RELATIONSHIP_CACHE_TTL", 5*time.Minute),
		AvatarBatchDelay:     getDuration("AVATAR_BATCH_DELAY", 50*time.Millisecond),
		SLATargets:           ParseSLATargets(os.Getenv("SLA_TARGETS")),
		MinStaleHours:        getInt("MIN_STALE_HOURS", 24),
		MaxResults:           getInt("MAX_RESULTS", 50),
		TrendDays:            getInt("TREND_DAYS", 14),
	}
}

// ParseSLATargets parses "manager=24,direct-report=48". Malformed pairs are skipped.
func ParseSLATargets(raw string) []SLATarget {
	var targets []SLATarget
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, hours, ok := strings.Cut(pair, "=")
		if !ok {
			log.Printf("[Config] Ignoring SLA target %q: expected relationship=hours", pair)
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(hours))
		if err != nil || n <= 0 {
			log.Printf("[Config] Ignoring SLA target %q: invalid hours", pair)
			continue
		}
		targets = append(targets, SLATarget{Relationship: strings.TrimSpace(name), MaxHours: n})
	}
	return targets
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 {
			return parsed
		}
		log.Printf("[Config] Invalid %s=%q, using %d", key, value, defaultValue)
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		log.Printf("[Config] Invalid %s=%q, using %v", key, value, defaultValue)
	}
	return defaultValue
}
