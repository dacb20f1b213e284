// Package config loads service configuration with Viper.
//
// A YAML file is discovered in the usual locations (./cmd/<service>/config.yml,
// ./config/config.yml, ./config.yml), a .env file is loaded with godotenv,
// and every environment variable is bound under several nested key spellings
// so SERVER_PORT reaches server.port.
//
// # Usage
//
//	var cfg app.Config
//	err := config.LoadConfig("qprofile", &cfg, config.WithConfigFile(path))
package config
