package server

import "strings"

// ConfigProvider answers CONFIG GET lookups
type ConfigProvider interface {
	// Get returns the value for key and whether it is known
	Get(key string) (string, bool)
}

// StaticConfig exposes the snapshot location parameters
type StaticConfig struct {
	Dir        string
	DBFilename string
}

// Get implements ConfigProvider. Keys are matched case-insensitively and an
// unset parameter is reported as unknown.
func (c StaticConfig) Get(key string) (string, bool) {
	switch strings.ToLower(key) {
	case "dir":
		return c.Dir, c.Dir != ""
	case "dbfilename":
		return c.DBFilename, c.DBFilename != ""
	default:
		return "", false
	}
}
