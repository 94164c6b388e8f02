package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/ndw/xmlresolver/api/v1"
)

const simpleCatalog = `<?xml version="1.0"?>
<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog" prefer="public">
  <public publicId="-//OASIS//DTD DocBook XML V4.5//EN" uri="docbook.dtd"/>
  <system systemId="http://example.com/a.dtd" uri="a.dtd"/>
  <uri name="http://example.com/ns" uri="ns.xsd" nature="http://www.w3.org/2001/XMLSchema"/>
  <group xml:base="sub/">
    <system systemId="http://example.com/b.dtd" uri="b.dtd"/>
  </group>
</catalog>`

func TestLoaderBasic(t *testing.T) {
	l := NewLoader()
	cat, err := l.Load("file:///cat/catalog.xml", mapFetch(map[string]string{
		"file:///cat/catalog.xml": simpleCatalog,
	}))
	require.NoError(t, err)
	require.NotNil(t, cat.Root)

	require.Len(t, cat.Publics, 1)
	assert.Equal(t, "file:///cat/docbook.dtd", cat.Publics[0].URI)

	require.Len(t, cat.Systems, 2)
	assert.Equal(t, "file:///cat/a.dtd", cat.Systems[0].URI)
	assert.Equal(t, "file:///cat/sub/b.dtd", cat.Systems[1].URI, "nested group's xml:base should resolve relative to enclosing base")

	require.Len(t, cat.URIs, 1)
	assert.Equal(t, "file:///cat/ns.xsd", cat.URIs[0].URI)
	assert.Equal(t, "http://www.w3.org/2001/XMLSchema", cat.URIs[0].Nature)

	assert.Equal(t, v1.PreferPublic, cat.Root.Prefer)
}

func TestLoaderClasspathNormalization(t *testing.T) {
	src := `<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog">
  <system systemId="s" uri="classpath:/a/b.dtd"/>
</catalog>`
	l := NewLoader()
	cat, err := l.Load("classpath:/cats/root.xml", mapFetch(map[string]string{
		"classpath:/cats/root.xml": src,
	}))
	require.NoError(t, err)
	require.Len(t, cat.Systems, 1)
	assert.Equal(t, "classpath:a/b.dtd", cat.Systems[0].URI, "classpath: URIs are normalized to the no-leading-slash form at load time")
}

func TestLoaderDropsMalformedEntryButKeepsOthers(t *testing.T) {
	src := `<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog">
  <system uri="missing-system-id.dtd"/>
  <system systemId="ok" uri="ok.dtd"/>
</catalog>`
	l := NewLoader()
	cat, err := l.Load("file:///root.xml", mapFetch(map[string]string{
		"file:///root.xml": src,
	}))
	require.NoError(t, err)
	require.Len(t, cat.Systems, 1)
	assert.Equal(t, "ok", cat.Systems[0].SystemID)
}

func TestLoaderStrictModeAbortsOnMalformedEntry(t *testing.T) {
	src := `<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog">
  <system uri="missing-system-id.dtd"/>
</catalog>`
	l := &Loader{Strict: true}
	_, err := l.Load("file:///root.xml", mapFetch(map[string]string{
		"file:///root.xml": src,
	}))
	require.Error(t, err)
}

func TestLoaderUnknownElementsIgnored(t *testing.T) {
	src := `<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog">
  <unknown-vendor-extension foo="bar">
    <system systemId="nested-inside-unknown-ignored" uri="x.dtd"/>
  </unknown-vendor-extension>
  <system systemId="top" uri="top.dtd"/>
</catalog>`
	l := NewLoader()
	cat, err := l.Load("file:///root.xml", mapFetch(map[string]string{
		"file:///root.xml": src,
	}))
	require.NoError(t, err)
	require.Len(t, cat.Systems, 1)
	assert.Equal(t, "top", cat.Systems[0].SystemID)
}

func TestLoaderIdempotence(t *testing.T) {
	l := NewLoader()
	fetch := mapFetch(map[string]string{"file:///root.xml": simpleCatalog})
	a, err := l.Load("file:///root.xml", fetch)
	require.NoError(t, err)
	b, err := l.Load("file:///root.xml", fetch)
	require.NoError(t, err)
	assert.Equal(t, len(a.Systems), len(b.Systems))
	assert.Equal(t, a.Systems[0].URI, b.Systems[0].URI)
}
