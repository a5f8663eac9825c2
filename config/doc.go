// Package config loads extkit configuration with Viper.
//
// LoadConfig looks for <name>.yml (or .yaml) in the working directory and
// in ./config, falling back to ./config.yml. A .env file found next to it
// is loaded with godotenv before environment overrides are applied.
// Variables prefixed with the upper-cased service name override file
// values:
//
//	EXTKIT_SERVER_PORT=9090      -> server.port
//	EXTKIT_LOGGING_LEVEL=debug   -> logging.level
//	EXTKIT_MANIFEST=plugins.yml  -> manifest
package config
