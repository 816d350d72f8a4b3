// Package config holds the typed configuration record for the filer
// core. The on-disk form is JSON with ad-hoc keys; this package is the
// single boundary that parses that JSON into a typed struct so the
// rest of the code never touches raw maps.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// ServerConfig configures the HTTP/HTTPS listener and static file handler.
type ServerConfig struct {
	ServerName             string `json:"server_name"`
	HTTPActive             bool   `json:"http_active"`
	HTTPPort               int    `json:"http_port"`
	HTTPSActive            bool   `json:"https_active"`
	HTTPSPort              int    `json:"https_port"`
	StaticPath             string `json:"static_path"`
	StaticCacheAgeInMinute int    `json:"static_cache_age_in_minute"`
	HTTPSCert              string `json:"https_cert"`
	HTTPSKey               string `json:"https_key"`
}

// ClientConfig configures the Downloader's connection to a server.
type ClientConfig struct {
	Server         string `json:"server"`
	Port           int    `json:"port"`
	IsHTTPS        bool   `json:"is_https"`
	Path           string `json:"path"`
	MaxTasks       int    `json:"max_tasks"`
	KillRunningExe bool   `json:"kill_running_exe"`
}

// XCopyConfig configures the default tuning for the xcopy command.
type XCopyConfig struct {
	PartSize       uint64 `json:"part_size"`
	MaxTasks       int    `json:"max_tasks"`
	KillRunningExe bool   `json:"kill_running_exe"`
}

// Catalog is one named root directory and its transfer tuning.
type Catalog struct {
	Path     string `json:"path"`
	PartSize uint64 `json:"part_size"`
	MaxTasks int    `json:"max_tasks"`
}

// Config is the full parsed configuration file. Unknown top-level and
// nested keys are ignored by encoding/json, matching the source's
// behavior of tolerating extra fields.
type Config struct {
	Server   ServerConfig       `json:"server"`
	Client   ClientConfig       `json:"client"`
	XCopy    XCopyConfig        `json:"xcopy"`
	Catalogs map[string]Catalog `json:"catalogs"`
}

// DefaultCatalogPath is substituted when a catalog entry omits "path".
const DefaultCatalogPath = "download"

// Load reads and parses a configuration file from disk.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes raw JSON bytes into a Config and fills in catalog path
// defaults.
func Parse(raw []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	for name, cat := range cfg.Catalogs {
		if cat.Path == "" {
			cat.Path = DefaultCatalogPath
			cfg.Catalogs[name] = cat
		}
	}
	return cfg, nil
}

// Catalog looks up a named catalog, falling back to defaultName when
// name is empty. An unconfigured name is not an error: it silently
// resolves to DefaultCatalogPath, matching the original's dynamic
// config lookup (an unknown catalog reads as a null value whose
// ".str(\"download\")" access falls back to the same default).
func (c Config) Catalog(name, defaultName string) Catalog {
	if name == "" {
		name = defaultName
	}
	cat, ok := c.Catalogs[name]
	if !ok {
		return Catalog{Path: DefaultCatalogPath}
	}
	return cat
}
