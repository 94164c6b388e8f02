package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsOnly(t *testing.T) {
	c, err := Load("", false)
	require.NoError(t, err)
	assert.Equal(t, "public", c.Prefer)
	assert.True(t, c.ClasspathResources)
}

func TestLoadPropertyFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xmlresolver.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
prefer = "system"
uri_for_system = true
catalog_files = ["file:///a.xml", "file:///b.xml"]
`), 0o644))

	c, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, "system", c.Prefer)
	assert.True(t, c.UriForSystem)
	assert.Equal(t, []string{"file:///a.xml", "file:///b.xml"}, c.CatalogFiles)
}

func TestLoadEnvOverridesPropertyFileByDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xmlresolver.toml")
	require.NoError(t, os.WriteFile(path, []byte(`prefer = "system"`), 0o644))

	t.Setenv("XMLRESOLVER_PREFER", "public")
	c, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, "public", c.Prefer, "env applies after the property file by default, so it wins")
}

func TestLoadPreferPropertyFileFlipsPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xmlresolver.toml")
	require.NoError(t, os.WriteFile(path, []byte(`prefer = "system"`), 0o644))

	t.Setenv("XMLRESOLVER_PREFER", "public")
	c, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, "system", c.Prefer, "PreferPropertyFile applies the property file after env, so it wins")
}

func TestLoadOptionsWinOverEverything(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xmlresolver.toml")
	require.NoError(t, os.WriteFile(path, []byte(`prefer = "system"`), 0o644))
	t.Setenv("XMLRESOLVER_PREFER", "system")

	c, err := Load(path, false, WithPrefer("public"))
	require.NoError(t, err)
	assert.Equal(t, "public", c.Prefer)
}

func TestManifestOptions(t *testing.T) {
	m := Manifest{CatalogFiles: []string{"file:///x.xml"}, AlwaysResolve: true}
	c, err := Load("", false, m.Options()...)
	require.NoError(t, err)
	assert.Equal(t, []string{"file:///x.xml"}, c.CatalogFiles)
	assert.True(t, c.AlwaysResolve)
}
