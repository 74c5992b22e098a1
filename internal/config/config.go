package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                   string
	AllowedOrigin          string
	DatabaseURL            string
	RedisAddr              string
	RedisPassword          string
	RedisDB                int
	SellerID               string
	SellerStateCode        string
	GSTRate                float64
	GSTRatesByHSN          map[string]float64
	RoundOffEnabled        bool
	InvoiceNumberPrefix    string
	InvoiceCacheTTLSeconds int
	AuthSecret             string
	AccessTokenTTLMinutes  int
	ManagerPIN             string
	LogLevel               string
	LogFormat              string
	LogOutput              string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, err := strconv.Atoi(getEnv("INVOICE_CACHE_TTL_SECONDS", "300"))
	if err != nil || ttl < 1 {
		ttl = 300
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	rate, err := strconv.ParseFloat(getEnv("GST_RATE", "0.18"), 64)
	if err != nil || rate < 0 || rate > 1 {
		rate = 0.18
	}
	roundOff, err := strconv.ParseBool(getEnv("ROUND_OFF_ENABLED", "true"))
	if err != nil {
		roundOff = true
	}

	cfg := Config{
		Port:                   getEnv("PORT", "8080"),
		AllowedOrigin:          getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                redisDB,
		SellerID:               getEnv("SELLER_ID", "main-seller"),
		SellerStateCode:        strings.TrimSpace(os.Getenv("SELLER_STATE_CODE")),
		GSTRate:                rate,
		GSTRatesByHSN:          parseRates(os.Getenv("GST_RATES_BY_HSN")),
		RoundOffEnabled:        roundOff,
		InvoiceNumberPrefix:    os.Getenv("INVOICE_NUMBER_PREFIX"),
		InvoiceCacheTTLSeconds: ttl,
		AuthSecret:             strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:  tokenTTL,
		ManagerPIN:             strings.TrimSpace(os.Getenv("MANAGER_PIN")),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogFormat:              getEnv("LOG_FORMAT", "console"),
		LogOutput:              getEnv("LOG_OUTPUT", "stdout"),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// parseRates reads "hsn:rate" pairs separated by commas, e.g.
// "1006:0.05,8471:0.18". Malformed pairs are skipped.
func parseRates(raw string) map[string]float64 {
	rates := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		hsn, value, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			continue
		}
		hsn = strings.TrimSpace(hsn)
		rate, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if hsn == "" || err != nil || rate < 0 || rate > 1 {
			continue
		}
		rates[hsn] = rate
	}
	return rates
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
