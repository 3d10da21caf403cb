// Package config handles application configuration loading and validation.
//
// Configuration is loaded from a JSON or YAML file, completed with defaults and
// validated using struct tags. The database password and host can be supplied through
// TAXI_DB_PASSWORD and TAXI_DB_HOST instead of the file, or the whole connection string
// through TAXI_DB_URL.
package config
