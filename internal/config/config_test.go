package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFillsDefaultCatalogPath(t *testing.T) {
	raw := []byte(`{
		"catalogs": {
			"default": {"part_size": 65536, "max_tasks": 32},
			"named": {"path": "custom", "part_size": 1024, "max_tasks": 4}
		}
	}`)
	cfg, err := Parse(raw)
	require.NoError(t, err)
	require.Equal(t, DefaultCatalogPath, cfg.Catalogs["default"].Path)
	require.Equal(t, "custom", cfg.Catalogs["named"].Path)
}

func TestParseIgnoresUnknownKeys(t *testing.T) {
	raw := []byte(`{"server": {"server_name": "x"}, "unexpected_top_level": 1}`)
	cfg, err := Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "x", cfg.Server.ServerName)
}

func TestCatalogDefaultName(t *testing.T) {
	raw := []byte(`{"catalogs": {"default": {"part_size": 1, "max_tasks": 1}}}`)
	cfg, err := Parse(raw)
	require.NoError(t, err)

	cat := cfg.Catalog("", "default")
	require.Equal(t, DefaultCatalogPath, cat.Path)

	missing := cfg.Catalog("missing", "default")
	require.Equal(t, DefaultCatalogPath, missing.Path)
}

func TestParseRejectsInvalidJSON(t *testing.T) {
	_, err := Parse([]byte("not json"))
	require.Error(t, err)
}
