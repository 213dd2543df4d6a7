// Package config loads typed configuration structs from environment variables.
//
// Structs describe their variables with caarlos0/env tags; Load parses a type
// once and caches it for the life of the process:
//
//	type Config struct {
//	    Env      string        `env:"APP_ENV" envDefault:"development"`
//	    Interval time.Duration `env:"CATALOG_REFRESH_INTERVAL" envDefault:"5m"`
//	}
//
//	cfg := config.MustLoad[Config]()
//
// A .env file in the working directory is loaded once before the first parse,
// via joho/godotenv. Values already present in the environment take precedence.
package config
