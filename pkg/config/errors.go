package config

import "errors"

var (
	ErrParsingConfig  = errors.New("config.errors.parse_env")
	ErrLoadingEnvFile = errors.New("config.errors.load_env_file")
)
