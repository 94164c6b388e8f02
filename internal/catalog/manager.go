package catalog

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"golang.org/x/sync/singleflight"

	v1 "github.com/ndw/xmlresolver/api/v1"
	"github.com/ndw/xmlresolver/internal/uriutil"
)

// FetchFunc opens a byte stream for an absolute catalog source URI.
// It is supplied by the embedder (typically internal/fetch) so the
// manager never hardcodes a transport.
type FetchFunc func(uri string) (io.ReadCloser, error)

// catalogState is either a successfully loaded catalog or a cached
// "Failed" marker: failed loads cache an explicit Failed marker so
// the load is not retried repeatedly within one resolution session.
type catalogState struct {
	cat *v1.Catalog
	err error
}

// generationState is one "epoch" of the manager's cache. Reload swaps
// the Manager's pointer to a fresh generationState; a lookup in
// flight keeps using the generationState it read at the start of the
// call, so it observes either the whole old generation or the whole
// new one, never a mixture.
type generationState struct {
	mu    sync.Mutex
	cache map[string]*catalogState
	sf    singleflight.Group
}

func newGeneration() *generationState {
	return &generationState{cache: make(map[string]*catalogState)}
}

// getOrLoad loads uri at most once per generation: concurrent callers
// racing to load the same uri collapse onto a single loadFn call via
// singleflight, and the result — success or failure — is memoized for
// the life of the generation.
func (g *generationState) getOrLoad(uri string, loadFn func() (*v1.Catalog, error)) (*v1.Catalog, error) {
	g.mu.Lock()
	if st, ok := g.cache[uri]; ok {
		g.mu.Unlock()
		return st.cat, st.err
	}
	g.mu.Unlock()

	v, _, _ := g.sf.Do(uri, func() (interface{}, error) {
		g.mu.Lock()
		if st, ok := g.cache[uri]; ok {
			g.mu.Unlock()
			return st, nil
		}
		g.mu.Unlock()

		cat, err := loadFn()
		st := &catalogState{cat: cat, err: err}

		g.mu.Lock()
		g.cache[uri] = st
		g.mu.Unlock()
		return st, nil
	})
	st := v.(*catalogState)
	return st.cat, st.err
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// PrimaryCatalogs and Additions together form the root catalog
	// list, queried in the order PrimaryCatalogs ++ Additions.
	PrimaryCatalogs []string
	Additions       []string

	Loader *Loader
	Fetch  FetchFunc

	Normalizer uriutil.Normalizer

	// UriForSystem retries a system-id miss as a URI lookup.
	UriForSystem bool

	Logger logr.Logger
}

// Manager is the ordered list of root catalogs plus the lazily
// loaded, memoized entry-tree cache.
type Manager struct {
	cfg ManagerConfig
	gen atomic.Pointer[generationState]
}

// NewManager constructs a Manager ready for lookups.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Loader == nil {
		cfg.Loader = NewLoader()
	}
	if cfg.Logger.GetSink() == nil {
		cfg.Logger = logr.Discard()
	}
	m := &Manager{cfg: cfg}
	m.gen.Store(newGeneration())
	return m
}

// Reload invalidates every cached catalog atomically: in-flight
// lookups keep using the generation they already started with.
func (m *Manager) Reload() {
	m.gen.Store(newGeneration())
}

// RootCatalogs returns the concatenated PrimaryCatalogs ++ Additions list.
func (m *Manager) RootCatalogs() []string {
	out := make([]string, 0, len(m.cfg.PrimaryCatalogs)+len(m.cfg.Additions))
	out = append(out, m.cfg.PrimaryCatalogs...)
	out = append(out, m.cfg.Additions...)
	return out
}

func (m *Manager) newQueryCtx() *queryCtx {
	return &queryCtx{
		gen:     m.gen.Load(),
		loader:  m.cfg.Loader,
		fetch:   m.cfg.Fetch,
		norm:    m.cfg.Normalizer,
		visited: make(map[string]bool),
		log:     m.cfg.Logger,
	}
}

// LookupEntity implements lookup_entity(name?, system?, public?),
// including the uri_for_system fallback.
func (m *Manager) LookupEntity(name, system, public string) (v1.LookupResult, error) {
	qc := m.newQueryCtx()
	res, err := qc.lookupExternalID(m.RootCatalogs(), name, system, public)
	if err != nil {
		return v1.NotFound, err
	}
	if res.Found || !m.cfg.UriForSystem || system == "" {
		return res, nil
	}
	// Retry as a URI lookup with a fresh visited set (it's a distinct query).
	return m.LookupURI(system, "", "")
}

// LookupURI implements lookup_uri(uri), including the namespace
// nature/purpose carry-through used by namespace lookups.
func (m *Manager) LookupURI(uri, nature, purpose string) (v1.LookupResult, error) {
	qc := m.newQueryCtx()
	return qc.lookupURI(m.RootCatalogs(), uri, nature, purpose)
}

// LookupDoctype implements lookup_doctype(name).
func (m *Manager) LookupDoctype(name string) (v1.LookupResult, error) {
	qc := m.newQueryCtx()
	return qc.lookupDoctype(m.RootCatalogs(), name)
}

// LookupNamespace implements lookup_namespace(uri, nature?, purpose?):
// the URI track with nature/purpose carried into entry matching.
// RDDL post-processing happens one layer up, in internal/resolve,
// because it may itself need to fetch and re-query the catalog.
func (m *Manager) LookupNamespace(uri, nature, purpose string) (v1.LookupResult, error) {
	return m.LookupURI(uri, nature, purpose)
}
