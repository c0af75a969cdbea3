package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnv pulls in a local .env file if one exists. Real deployments set
// the environment directly, so a missing file is not an error.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using process environment")
	}
}

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	RedisAddr string
	RedisPwd  string

	WebOrigin  string
	Port       string
	SessionTTL time.Duration

	// Default rental period applied when the kiosk does not pick a date.
	CheckoutDuration time.Duration
	// How long gear stays Missing before the sweep declares it Dormant.
	DormantAfter time.Duration

	BootstrapAdminEmail string
	BootstrapAdminRFID  string
}

func Load() Config {
	get := func(k, def string) string {
		v := os.Getenv(k)
		if v == "" {
			return def
		}
		return v
	}
	getInt := func(k string, def int) int {
		if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
			return n
		}
		return def
	}

	ttl := time.Duration(getInt("KIOSK_SESSION_TTL_SECONDS", 600)) * time.Second

	return Config{
		DBHost:     get("DB_HOST", "127.0.0.1"),
		DBUser:     get("DB_USER", "postgres"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     get("DB_NAME", "excsystem"),
		DBPort:     get("DB_PORT", "5432"),

		RedisAddr: get("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPwd:  os.Getenv("REDIS_PASSWORD"),

		WebOrigin:  get("WEB_ORIGIN", "http://localhost:3000"),
		Port:       get("PORT", "3001"),
		SessionTTL: ttl,

		CheckoutDuration: time.Duration(getInt("CHECKOUT_DAYS", 7)) * 24 * time.Hour,
		DormantAfter:     time.Duration(getInt("DORMANT_AFTER_DAYS", 30)) * 24 * time.Hour,

		BootstrapAdminEmail: strings.ToLower(strings.TrimSpace(os.Getenv("BOOTSTRAP_ADMIN_EMAIL"))),
		BootstrapAdminRFID:  strings.TrimSpace(os.Getenv("BOOTSTRAP_ADMIN_RFID")),
	}
}
