// Package config loads ticketbot's environment configuration, following
// the teacher's flat getEnv/getEnvAsInt/getEnvAsDuration idiom rather than
// reaching for a config framework like viper.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	Environment string

	RedisURL      string
	RedisPassword string
	RedisDB       int

	SessionTTL time.Duration
	MaxQuantity int

	STKPublishableKey string
	STKSecretKey      string
	STKIsTest         bool

	HostedBaseURL        string
	HostedConsumerKey    string
	HostedConsumerSecret string
	HostedCallbackURL    string

	MessagingToken     string
	MessagingPhoneID   string
	MessagingVerifyTok string
	BotOwnPhone        string

	PubNubPublishKey   string
	PubNubSubscribeKey string

	DatabaseURL string
}

func LoadConfig() *Config {
	return &Config{
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		SessionTTL:  getEnvAsDuration("SESSION_TTL", "600s"),
		MaxQuantity: getEnvAsInt("MAX_QUANTITY", 5),

		STKPublishableKey: getEnv("STK_PUBLISHABLE_KEY", ""),
		STKSecretKey:      getEnv("STK_SECRET_KEY", ""),
		STKIsTest:         getEnvAsBool("STK_IS_TEST", true),

		HostedBaseURL:        getEnv("HOSTED_BASE_URL", ""),
		HostedConsumerKey:    getEnv("HOSTED_CONSUMER_KEY", ""),
		HostedConsumerSecret: getEnv("HOSTED_CONSUMER_SECRET", ""),
		HostedCallbackURL:    getEnv("HOSTED_CALLBACK_URL", ""),

		MessagingToken:     getEnv("MESSAGING_TOKEN", ""),
		MessagingPhoneID:   getEnv("MESSAGING_PHONE_ID", ""),
		MessagingVerifyTok: getEnv("MESSAGING_VERIFY_TOKEN", ""),
		BotOwnPhone:        getEnv("BOT_OWN_PHONE", ""),

		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),

		DatabaseURL: getEnv("DATABASE_URL", "pb_data"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
