// Package config builds the service configuration from the environment so
// main stays lean. A .env file, when present, is loaded by the autoload
// import in main.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full service configuration.
type Config struct {
	Addr     string
	LogLevel string

	Regon RegonConfig
	MF    MFConfig
	IBAN  IBANConfig

	// Per-source cache TTLs; enrichment results change rarely and keep a
	// longer one.
	RegonTTL      time.Duration
	MFTTL         time.Duration
	EnrichmentTTL time.Duration

	// Inbound request throttle, requests per second per instance.
	InboundRPS float64

	PostgresURL string
	Redis       RedisConfig
	Kafka       KafkaConfig
}

// RegonConfig carries the BIR endpoint settings.
type RegonConfig struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

// MFConfig carries the VAT whitelist endpoint settings.
type MFConfig struct {
	APIURL  string
	Timeout time.Duration
}

// IBANConfig carries the enrichment chain settings. Keyless services stay in
// the chain; keyed ones report themselves unavailable without a key.
type IBANConfig struct {
	IBANAPIURL  string
	IBANAPIKey  string
	OpenIBANURL string
	APILayerURL string
	APILayerKey string
	CallTimeout time.Duration
}

// RedisConfig carries connection settings for the Redis cache store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig carries the change-event producer settings. Empty brokers
// disable publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables with development
// defaults.
func FromEnv() Config {
	return Config{
		Addr:     envStr("COMPANYHUB_ADDR", ":8080"),
		LogLevel: envStr("LOG_LEVEL", "info"),

		Regon: RegonConfig{
			APIURL:  envStr("REGON_API_URL", "https://wyszukiwarkaregon.stat.gov.pl/wsBIR/UslugaBIRzewnPubl.svc"),
			APIKey:  os.Getenv("REGON_API_KEY"),
			Timeout: envSeconds("REGON_TIMEOUT_SECONDS", 30*time.Second),
		},
		MF: MFConfig{
			APIURL:  envStr("MF_API_URL", "https://wl-api.mf.gov.pl"),
			Timeout: envSeconds("MF_TIMEOUT_SECONDS", 10*time.Second),
		},
		IBAN: IBANConfig{
			IBANAPIURL:  envStr("IBANAPI_COM_URL", "https://api.ibanapi.com/v1"),
			IBANAPIKey:  os.Getenv("IBANAPI_COM_KEY"),
			OpenIBANURL: envStr("OPENIBAN_URL", "https://openiban.com"),
			APILayerURL: envStr("APILAYER_API_URL", "https://api.apilayer.com/bank_data"),
			APILayerKey: os.Getenv("APILAYER_API_KEY"),
			CallTimeout: envSeconds("IBAN_TIMEOUT_SECONDS", 10*time.Second),
		},

		RegonTTL:      envSeconds("REGON_CACHE_TTL_SECONDS", 86400*time.Second),
		MFTTL:         envSeconds("MF_CACHE_TTL_SECONDS", 86400*time.Second),
		EnrichmentTTL: envSeconds("ENRICHMENT_CACHE_TTL_SECONDS", 604800*time.Second),

		InboundRPS: envFloat("INBOUND_RPS", 50),

		PostgresURL: os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envSeconds("REDIS_DIAL_TIMEOUT_SECONDS", 5*time.Second),
			ReadTimeout:  envSeconds("REDIS_READ_TIMEOUT_SECONDS", 3*time.Second),
			WriteTimeout: envSeconds("REDIS_WRITE_TIMEOUT_SECONDS", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: envList("KAFKA_BROKERS"),
			Topic:   envStr("KAFKA_CHANGES_TOPIC", "companyhub.data-changes"),
		},
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envSeconds(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
