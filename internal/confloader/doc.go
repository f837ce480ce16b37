// Package confloader loads the redis-rdb-server binary settings.
//
// Sources are merged with koanf. Priority (highest to lowest):
//
//  1. Command-line flags (LoadMap)
//  2. Environment variables with the RDBSERVER_ prefix, optionally read
//     from a .env file first
//  3. YAML configuration file
//  4. Default values
//
// The resulting Settings are loaded once at startup and never changed.
package confloader
