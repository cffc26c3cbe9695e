package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time parses policy durations
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for TTLs and
// costs, durations for the custody time policies.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign session JWTs
	IdentitySecret string // secret used to sign identity tokens for the staff-mediated flow
	AccessTTLMin   int    // session access token time-to-live in minutes
	RefreshTTLDays int    // session refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing

	// Custody time policies.  These were fixed constants in earlier
	// iterations of the system; they are knobs now so that individual
	// deployments can tune the pickup window and cancellation lead time.
	ReservationTZ   string        // IANA timezone in which slots and day buckets are interpreted
	LatePickupGrace time.Duration // how long after start_at a pickup is still accepted
	CancelLeadTime  time.Duration // minimum lead time before start_at for a cancellation
	MaxAdvanceDays  int           // how far into the future a reservation may be created
	IdentityTTL     time.Duration // lifetime of issued identity tokens
	PickupTokenTTL  time.Duration // lifetime of kiosk PICKUP tokens
	ReturnTokenTTL  time.Duration // lifetime of kiosk RETURN tokens
	SweepInterval   time.Duration // how often the in-process no-show sweeper runs
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Policy knobs fall
// back to the documented defaults when unset.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),      // environment (dev/test/prod)
		Port:           must("APP_PORT"),     // port to bind the HTTP server
		DBUser:         must("DB_USER"),      // database user
		DBPass:         os.Getenv("DB_PASS"), // database password (empty allowed)
		DBHost:         must("DB_HOST"),      // database host
		DBPort:         must("DB_PORT"),      // database port
		DBName:         must("DB_NAME"),      // database name
		JWTSecret:      must("JWT_SECRET"),   // secret for signing session JWTs
		IdentitySecret: must("IDENTITY_TOKEN_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),   // TTL for access tokens in minutes
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"), // TTL for refresh tokens in days
		BcryptCost:     mustInt("BCRYPT_COST"),            // bcrypt cost factor

		ReservationTZ:   getenv("RESERVATION_TZ", "Asia/Seoul"),
		LatePickupGrace: envDuration("LATE_PICKUP_GRACE", 30*time.Minute),
		CancelLeadTime:  envDuration("CANCEL_LEAD_TIME", 60*time.Minute),
		MaxAdvanceDays:  envIntDefault("MAX_ADVANCE_DAYS", 30),
		IdentityTTL:     envDuration("IDENTITY_TOKEN_TTL", 5*time.Minute),
		PickupTokenTTL:  envDuration("PICKUP_TOKEN_TTL", 24*time.Hour),
		ReturnTokenTTL:  envDuration("RETURN_TOKEN_TTL", 24*time.Hour),
		SweepInterval:   envDuration("SWEEP_INTERVAL", 5*time.Minute),
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

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// envIntDefault reads an optional integer variable, falling back to def when
// the variable is unset or malformed.
func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, v)
	}
	return n
}

// envDuration reads an optional duration variable ("30m", "24h"), falling
// back to def when the variable is unset.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("invalid duration for %s: %q", key, v)
	}
	return d
}
