package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLookupBySystemID(t *testing.T) {
	dir := t.TempDir()
	catPath := filepath.Join(dir, "catalog.xml")
	require.NoError(t, os.WriteFile(catPath, []byte(`<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog">
  <system systemId="http://example.com/a.dtd" uri="a.dtd"/>
</catalog>`), 0o644))

	var stdout, stderr bytes.Buffer
	code := run([]string{"-c", "file://" + catPath, "--system", "http://example.com/a.dtd"}, &stdout, &stderr)
	assert.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "a.dtd")
}

func TestRunLookupMissReturnsNonZero(t *testing.T) {
	dir := t.TempDir()
	catPath := filepath.Join(dir, "catalog.xml")
	require.NoError(t, os.WriteFile(catPath, []byte(`<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog"/>`), 0o644))

	var stdout, stderr bytes.Buffer
	code := run([]string{"-c", "file://" + catPath, "--system", "http://example.com/missing.dtd"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "not found")
}

func TestRunRequiresCatalog(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"--system", "http://example.com/a.dtd"}, &stdout, &stderr)
	assert.Equal(t, 2, code)
}
