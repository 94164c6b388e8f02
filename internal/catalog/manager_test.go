package catalog

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(sources map[string]string, roots []string) *Manager {
	return NewManager(ManagerConfig{
		PrimaryCatalogs: roots,
		Fetch:           mapFetch(sources),
	})
}

func TestManagerSystemExactMatchBeatsPublic(t *testing.T) {
	src := `<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog">
  <public publicId="-//Example//DTD Foo//EN" uri="public.dtd"/>
  <system systemId="http://example.com/foo.dtd" uri="system.dtd"/>
</catalog>`
	m := newTestManager(map[string]string{"file:///cat.xml": src}, []string{"file:///cat.xml"})

	res, err := m.LookupEntity("", "http://example.com/foo.dtd", "-//Example//DTD Foo//EN")
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, "file:///system.dtd", res.ResolvedURI)
}

func TestManagerRewriteURILongestPrefix(t *testing.T) {
	src := `<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog">
  <rewriteURI uriStartString="http://example.com/" rewritePrefix="file:///short/"/>
  <rewriteURI uriStartString="http://example.com/ns/" rewritePrefix="file:///long/"/>
</catalog>`
	m := newTestManager(map[string]string{"file:///cat.xml": src}, []string{"file:///cat.xml"})

	res, err := m.LookupURI("http://example.com/ns/thing.xsd", "", "")
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, "file:///long/thing.xsd", res.ResolvedURI, "the longer matching prefix wins even though both match")
}

func TestManagerNextCatalogChainWithCycleTerminates(t *testing.T) {
	a := `<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog">
  <nextCatalog catalog="file:///b.xml"/>
</catalog>`
	b := `<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog">
  <nextCatalog catalog="file:///a.xml"/>
  <system systemId="http://example.com/only-in-b.dtd" uri="b.dtd"/>
</catalog>`
	m := newTestManager(map[string]string{
		"file:///a.xml": a,
		"file:///b.xml": b,
	}, []string{"file:///a.xml"})

	res, err := m.LookupEntity("", "http://example.com/only-in-b.dtd", "")
	require.NoError(t, err)
	require.True(t, res.Found, "a -> b -> a cycle must not prevent reaching the entry in b")
	assert.Equal(t, "file:///b.dtd", res.ResolvedURI)
}

func TestManagerDelegateURIIsolation(t *testing.T) {
	root := `<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog">
  <delegateURI uriStartString="http://example.com/ns/" catalog="file:///delegate.xml"/>
  <uri name="http://example.com/ns/fallback" uri="root-fallback.xsd"/>
</catalog>`
	delegate := `<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog">
  <uri name="http://example.com/ns/thing" uri="delegate-thing.xsd"/>
</catalog>`
	m := newTestManager(map[string]string{
		"file:///root.xml":     root,
		"file:///delegate.xml": delegate,
	}, []string{"file:///root.xml"})

	res, err := m.LookupURI("http://example.com/ns/thing", "", "")
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, "file:///delegate-thing.xsd", res.ResolvedURI)

	// An entry present only in the root catalog, under a name the
	// delegate's own start string also matches, resolves through the
	// root's exact <uri> entry: uri entries are checked before any
	// delegateURI sub-search is started.
	res, err = m.LookupURI("http://example.com/ns/fallback", "", "")
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, "file:///root-fallback.xsd", res.ResolvedURI, "root catalog's own uri entry must match before delegation is consulted")
}

func TestManagerUriForSystemFallback(t *testing.T) {
	src := `<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog">
  <uri name="http://example.com/foo.dtd" uri="as-uri.dtd"/>
</catalog>`
	m := NewManager(ManagerConfig{
		PrimaryCatalogs: []string{"file:///cat.xml"},
		Fetch:           mapFetch(map[string]string{"file:///cat.xml": src}),
		UriForSystem:    true,
	})

	res, err := m.LookupEntity("", "http://example.com/foo.dtd", "")
	require.NoError(t, err)
	require.True(t, res.Found, "a system-id miss should retry as a uri lookup when UriForSystem is set")
	assert.Equal(t, "file:///as-uri.dtd", res.ResolvedURI)
}

func TestManagerUriForSystemDisabledStaysNotFound(t *testing.T) {
	src := `<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog">
  <uri name="http://example.com/foo.dtd" uri="as-uri.dtd"/>
</catalog>`
	m := newTestManager(map[string]string{"file:///cat.xml": src}, []string{"file:///cat.xml"})

	res, err := m.LookupEntity("", "http://example.com/foo.dtd", "")
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestManagerReloadProducesFreshGeneration(t *testing.T) {
	src := `<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog">
  <system systemId="http://example.com/a.dtd" uri="a.dtd"/>
</catalog>`
	calls := 0
	sources := map[string]string{"file:///cat.xml": src}
	m := NewManager(ManagerConfig{
		PrimaryCatalogs: []string{"file:///cat.xml"},
		Fetch: func(uri string) (io.ReadCloser, error) {
			calls++
			return mapFetch(sources)(uri)
		},
	})

	_, err := m.LookupEntity("", "http://example.com/a.dtd", "")
	require.NoError(t, err)
	_, err = m.LookupEntity("", "http://example.com/a.dtd", "")
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "a second lookup within the same generation must hit the memoized catalog, not refetch")

	m.Reload()
	_, err = m.LookupEntity("", "http://example.com/a.dtd", "")
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "Reload starts a fresh generation so the next lookup re-fetches")
}

func TestManagerPreferSystemSuppressesPublicWhenSystemPresent(t *testing.T) {
	src := `<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog" prefer="system">
  <public publicId="-//Example//DTD Foo//EN" uri="public.dtd"/>
</catalog>`
	m := newTestManager(map[string]string{"file:///cat.xml": src}, []string{"file:///cat.xml"})

	res, err := m.LookupEntity("", "http://example.com/unregistered.dtd", "-//Example//DTD Foo//EN")
	require.NoError(t, err)
	assert.False(t, res.Found, "prefer=system must suppress the public match when a system id was supplied but not registered")
}

func TestManagerPreferPublicAllowsPublicWhenSystemPresent(t *testing.T) {
	src := `<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog" prefer="public">
  <public publicId="-//Example//DTD Foo//EN" uri="public.dtd"/>
</catalog>`
	m := newTestManager(map[string]string{"file:///cat.xml": src}, []string{"file:///cat.xml"})

	res, err := m.LookupEntity("", "http://example.com/unregistered.dtd", "-//Example//DTD Foo//EN")
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, "file:///public.dtd", res.ResolvedURI)
}
