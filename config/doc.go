// Package config loads the static YAML configuration into a closed, typed
// tree. The document is parsed exactly once at startup and never string-keyed
// afterwards; every consumer receives the immutable *Config.
//
// Resolution order for the file path:
//  1. explicit path argument
//  2. ELDERSENTRY_CONFIG_PATH environment variable
//  3. config.yml in the working directory
//  4. config.yml.example fallback
//
// Environment overrides (applied after parsing, intended for container
// secrets): ELDERSENTRY_TELEGRAM_BOT_TOKEN, ELDERSENTRY_DASHBOARD_USERNAME,
// ELDERSENTRY_DASHBOARD_PASSWORD, ELDERSENTRY_DB_PATH.
package config
