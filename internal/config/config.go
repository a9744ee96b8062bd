package config // package config loads application configuration from environment variables

import (
	"log" // log is used to report configuration errors and halt execution
	"os"  // os provides access to environment variables
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. The types reflect how the values are used in the
// application: strings for identifiers and secrets, ints for durations.
type Config struct {
	Env              string // application environment (e.g. "dev", "prod")
	Port             string // HTTP port to listen on
	DBUser           string // database username
	DBPass           string // database password (optional)
	DBHost           string // database host address
	DBPort           string // database port number
	DBName           string // database name
	JWTSecret        string // secret shared with the identity provider for verifying tokens
	StripeSecretKey  string // API key for creating checkout sessions
	PublicAppURL     string // public base URL used for payment redirects
	Currency         string // ISO currency code for checkout sessions
	PendingTTLMin    int    // minutes a pending booking without a session may live
	SweepIntervalMin int    // minutes between reconciliation sweeps
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:              must("APP_ENV"),           // environment (dev/test/prod)
		Port:             must("APP_PORT"),          // port to bind the HTTP server
		DBUser:           must("DB_USER"),           // database user
		DBPass:           os.Getenv("DB_PASS"),      // database password (empty allowed)
		DBHost:           must("DB_HOST"),           // database host
		DBPort:           must("DB_PORT"),           // database port
		DBName:           must("DB_NAME"),           // database name
		JWTSecret:        must("JWT_SECRET"),        // secret used to verify identity-provider tokens
		StripeSecretKey:  must("STRIPE_SECRET_KEY"), // payment provider secret
		PublicAppURL:     must("PUBLIC_APP_URL"),    // base URL for success/cancel redirects
		Currency:         getenv("CURRENCY", "brl"),
		PendingTTLMin:    envInt("BOOKING_PENDING_TTL_MIN", 30),
		SweepIntervalMin: envInt("RECONCILE_INTERVAL_MIN", 5),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
