package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// cache holds one parsed value per config type.
	cache sync.Map // reflect.Type -> any

	dotenvOnce sync.Once
)

// Load parses T from environment variables and caches the result, so every
// later call for the same type returns the same value without re-reading the
// environment. A .env file in the working directory is loaded first if present;
// variables already set in the process win over it.
//
//	type ServerConfig struct {
//	    Addr string `env:"HTTP_ADDR" envDefault:":8080"`
//	}
//
//	cfg, err := config.Load[ServerConfig]()
//
// Failed parses are not cached.
func Load[T any]() (T, error) {
	dotenvOnce.Do(func() {
		// a missing .env is the normal case outside development
		_ = godotenv.Load()
	})

	key := typeKey[T]()
	if v, ok := cache.Load(key); ok {
		return v.(T), nil
	}

	v, err := Parse[T]()
	if err != nil {
		return v, err
	}

	actual, _ := cache.LoadOrStore(key, v)
	return actual.(T), nil
}

// MustLoad is Load that panics on error. Use it for configuration the service
// cannot start without.
func MustLoad[T any]() T {
	v, err := Load[T]()
	if err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
	return v
}

// Parse reads T from the environment without touching the cache or .env files.
func Parse[T any]() (T, error) {
	var v T
	if err := env.Parse(&v); err != nil {
		return v, errors.Join(ErrParsingConfig, err)
	}
	return v, nil
}

// LoadEnvFiles loads additional dotenv files. Existing variables are not overridden.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return errors.Join(ErrLoadingEnvFile, err)
	}
	return nil
}

// Reset drops every cached config. Intended for tests.
func Reset() {
	cache.Clear()
}

func typeKey[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}
