package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type pacing struct {
	LinkMs     int `json:"link_ms"`
	DocumentMs int `json:"document_ms"`
}

type testConfig struct {
	PortalBase string   `json:"portal_base"`
	PageSize   int      `json:"page_size"`
	Labels     []string `json:"labels"`
	Sandbox    bool     `json:"sandbox"`
	Pacing     pacing   `json:"pacing"`
}

func defaults() testConfig {
	return testConfig{
		PortalBase: "https://default",
		PageSize:   20,
		Labels:     []string{"a"},
		Sandbox:    true,
		Pacing:     pacing{LinkMs: 500, DocumentMs: 2000},
	}
}

func TestReadConfigMergesLocalOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.json5"), []byte(`{
		// comments are allowed
		portal_base: "https://portal.example",
		page_size: 20,
	}`), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.local.json5"), []byte(`{page_size: 50}`), 0600))

	cfg, err := ReadConfig(filepath.Join(dir, "app.json5"), testConfig{})
	require.NoError(t, err)
	require.Equal(t, "https://portal.example", cfg.PortalBase)
	require.Equal(t, 50, cfg.PageSize)
}

func TestReadConfigMissing(t *testing.T) {
	cfg, err := ReadConfig(filepath.Join(t.TempDir(), "absent.json5"), defaults())
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Equal(t, defaults(), cfg)
}

func TestReadConfigKeepsUnmentionedDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.json5"), []byte(`{page_size: 5, pacing: {link_ms: 100}}`), 0600))

	cfg, err := ReadConfig(filepath.Join(dir, "app.json5"), defaults())
	require.NoError(t, err)
	require.Equal(t, "https://default", cfg.PortalBase)
	require.Equal(t, 5, cfg.PageSize)
	require.Equal(t, []string{"a"}, cfg.Labels)
	require.Equal(t, pacing{LinkMs: 100, DocumentMs: 2000}, cfg.Pacing)
}

func TestReadConfigExplicitZeroOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.json5"), []byte(`{pacing: {link_ms: 0}}`), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.local.json5"), []byte(`{sandbox: false, pacing: {document_ms: 0}}`), 0600))

	cfg, err := ReadConfig(filepath.Join(dir, "app.json5"), defaults())
	require.NoError(t, err)
	require.Equal(t, pacing{}, cfg.Pacing)
	require.False(t, cfg.Sandbox)
	require.Equal(t, 20, cfg.PageSize)
}
