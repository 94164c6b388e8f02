package catalog

import (
	"sort"
	"strings"

	"github.com/go-logr/logr"

	v1 "github.com/ndw/xmlresolver/api/v1"
	"github.com/ndw/xmlresolver/internal/uriutil"
)

// queryCtx is the per-lookup-call state: the generation whose cache
// this call reads (never swapped mid-call, so a lookup observes one
// generation start to finish), the comparison normalizer, and the
// visited set that prevents revisiting a catalog URI within this one
// call.
type queryCtx struct {
	gen     *generationState
	loader  *Loader
	fetch   FetchFunc
	norm    uriutil.Normalizer
	visited map[string]bool
	log     logr.Logger
}

func (qc *queryCtx) loadCatalog(uri string) (*v1.Catalog, error) {
	return qc.gen.getOrLoad(uri, func() (*v1.Catalog, error) {
		return qc.loader.Load(uri, qc.fetch)
	})
}

// visit marks catURI visited and reports whether it was already
// visited (in which case the caller must skip it: a lookup touches
// each catalog URI at most once).
func (qc *queryCtx) visit(catURI string) bool {
	if qc.visited[catURI] {
		return true
	}
	qc.visited[catURI] = true
	return false
}

func longestPrefixIndex[T any](xs []T, keyFn func(T) string, s string, norm uriutil.Normalizer) int {
	ns := norm.N(s)
	best, bestLen := -1, -1
	for i, x := range xs {
		k := norm.N(keyFn(x))
		if k == "" {
			continue
		}
		if strings.HasPrefix(ns, k) && len(k) > bestLen {
			bestLen, best = len(k), i
		}
	}
	return best
}

func longestSuffixIndex[T any](xs []T, keyFn func(T) string, s string, norm uriutil.Normalizer) int {
	ns := norm.N(s)
	best, bestLen := -1, -1
	for i, x := range xs {
		k := norm.N(keyFn(x))
		if k == "" {
			continue
		}
		if strings.HasSuffix(ns, k) && len(k) > bestLen {
			bestLen, best = len(k), i
		}
	}
	return best
}

// collectDelegatesSorted returns the entries whose keyFn value is a
// prefix of s, longest-prefix first, ties broken by document order.
func collectDelegatesSorted[T any](xs []T, keyFn func(T) string, s string, norm uriutil.Normalizer) []T {
	ns := norm.N(s)
	var matched []T
	for _, x := range xs {
		k := norm.N(keyFn(x))
		if k != "" && strings.HasPrefix(ns, k) {
			matched = append(matched, x)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return len(norm.N(keyFn(matched[i]))) > len(norm.N(keyFn(matched[j])))
	})
	return matched
}

// rewriteResult applies the longest-prefix rewrite rule: result is
// rewritePrefix concatenated with whatever of the normalized request
// string follows the matched (normalized) start string.
func rewriteResult(start, rewritePrefix, s string, norm uriutil.Normalizer) string {
	ns := norm.N(s)
	nk := norm.N(start)
	return rewritePrefix + ns[len(nk):]
}

// --- External identifier track ---

func (qc *queryCtx) lookupExternalID(roots []string, name, system, public string) (v1.LookupResult, error) {
	for _, root := range roots {
		res, err := qc.externalIDInCatalog(root, name, system, public)
		if err != nil {
			return v1.NotFound, err
		}
		if res.Found {
			return res, nil
		}
	}
	return v1.NotFound, nil
}

func (qc *queryCtx) externalIDInCatalog(catURI, name, system, public string) (v1.LookupResult, error) {
	if qc.visit(catURI) {
		return v1.NotFound, nil
	}
	cat, err := qc.loadCatalog(catURI)
	if err != nil {
		qc.log.Info("catalog load failed, treating as miss", "catalog", catURI, "error", err.Error())
		return v1.NotFound, nil
	}

	if system != "" {
		// Step 1: exact system match.
		if i := firstIndex(cat.Systems, func(e *v1.SystemEntry) bool {
			return qc.norm.N(e.SystemID) == qc.norm.N(system)
		}); i >= 0 {
			return v1.Found(cat.Systems[i].URI), nil
		}

		// Step 2: systemSuffix longest suffix.
		if i := longestSuffixIndex(cat.SystemSuffixes, func(e *v1.SystemSuffixEntry) string { return e.SystemIDSuffix }, system, qc.norm); i >= 0 {
			return v1.Found(cat.SystemSuffixes[i].URI), nil
		}

		// Step 3: rewriteSystem longest prefix.
		if i := longestPrefixIndex(cat.RewriteSystems, func(e *v1.RewriteSystemEntry) string { return e.SystemIDStart }, system, qc.norm); i >= 0 {
			e := cat.RewriteSystems[i]
			return v1.Found(rewriteResult(e.SystemIDStart, e.RewritePrefix, system, qc.norm)), nil
		}

		// Step 4: delegateSystem.
		delegates := collectDelegatesSorted(cat.DelegateSystems, func(e *v1.DelegateSystemEntry) string { return e.SystemIDStart }, system, qc.norm)
		for _, d := range delegates {
			res, err := qc.externalIDInCatalog(d.CatalogURI, name, system, public)
			if err != nil {
				return v1.NotFound, err
			}
			if res.Found {
				return res, nil
			}
		}
	}

	// Step 5: public, gated by prefer.
	if public != "" {
		if e := qc.findPublic(cat, public, system != ""); e != nil {
			return v1.Found(e.URI), nil
		}
		if eligiblePreferPublic(cat, system != "") {
			delegates := collectDelegatesSorted(cat.DelegatePublics, func(e *v1.DelegatePublicEntry) string { return e.PublicIDStart }, public, qc.norm)
			for _, d := range delegates {
				res, err := qc.externalIDInCatalog(d.CatalogURI, name, system, public)
				if err != nil {
					return v1.NotFound, err
				}
				if res.Found {
					return res, nil
				}
			}
		}
	}

	// Step 6: doctype (TR9401), only meaningful for DTD-nature name lookups.
	if name != "" {
		if i := firstIndex(cat.Doctypes, func(e *v1.DoctypeEntry) bool { return e.Name == name }); i >= 0 {
			return v1.Found(cat.Doctypes[i].URI), nil
		}
	}

	// Step 7: nextCatalog, within this root, before the caller moves to the next root.
	for _, nc := range cat.NextCatalogs {
		res, err := qc.externalIDInCatalog(nc.CatalogURI, name, system, public)
		if err != nil {
			return v1.NotFound, err
		}
		if res.Found {
			return res, nil
		}
	}
	return v1.NotFound, nil
}

// eligiblePreferPublic decides, with no specific candidate entry yet
// in hand, whether public entries should be consulted at all: prefer
// resolves to public at the catalog root scope, or there is no system
// identifier in play at all.
func eligiblePreferPublic(cat *v1.Catalog, systemPresent bool) bool {
	if !systemPresent {
		return true
	}
	if cat.Root == nil {
		return true
	}
	return cat.Root.EffectivePrefer() == v1.PreferPublic
}

// findPublic scans public entries in document order for an exact
// match, accepting the first one whose own innermost enclosing scope
// makes it eligible (prefer=public, or no system id was supplied) —
// the Open Question (a) resolution: follow the innermost group.
func (qc *queryCtx) findPublic(cat *v1.Catalog, public string, systemPresent bool) *v1.PublicEntry {
	for _, e := range cat.Publics {
		if qc.norm.N(e.PublicID) != qc.norm.N(public) {
			continue
		}
		if !systemPresent {
			return e
		}
		if e.Enclosing != nil && e.Enclosing.EffectivePrefer() == v1.PreferPublic {
			return e
		}
	}
	return nil
}

func firstIndex[T any](xs []T, pred func(T) bool) int {
	for i, x := range xs {
		if pred(x) {
			return i
		}
	}
	return -1
}

// --- URI track ---

func (qc *queryCtx) lookupURI(roots []string, uri string, nature, purpose string) (v1.LookupResult, error) {
	for _, root := range roots {
		res, err := qc.uriInCatalog(root, uri, nature, purpose)
		if err != nil {
			return v1.NotFound, err
		}
		if res.Found {
			return res, nil
		}
	}
	return v1.NotFound, nil
}

func (qc *queryCtx) uriInCatalog(catURI, uri, nature, purpose string) (v1.LookupResult, error) {
	if qc.visit(catURI) {
		return v1.NotFound, nil
	}
	cat, err := qc.loadCatalog(catURI)
	if err != nil {
		qc.log.Info("catalog load failed, treating as miss", "catalog", catURI, "error", err.Error())
		return v1.NotFound, nil
	}

	// Step 1: exact name match, entry-side nature/purpose constrain
	// only when the entry itself sets them.
	if i := firstIndex(cat.URIs, func(e *v1.URIEntry) bool {
		if qc.norm.N(e.Name) != qc.norm.N(uri) {
			return false
		}
		if e.Nature != "" && qc.norm.N(e.Nature) != qc.norm.N(nature) {
			return false
		}
		if e.Purpose != "" && qc.norm.N(e.Purpose) != qc.norm.N(purpose) {
			return false
		}
		return true
	}); i >= 0 {
		return v1.Found(cat.URIs[i].URI), nil
	}

	// Step 2: uriSuffix longest suffix.
	if i := longestSuffixIndex(cat.URISuffixes, func(e *v1.URISuffixEntry) string { return e.URISuffix }, uri, qc.norm); i >= 0 {
		return v1.Found(cat.URISuffixes[i].URI), nil
	}

	// Step 3: rewriteURI longest prefix.
	if i := longestPrefixIndex(cat.RewriteURIs, func(e *v1.RewriteURIEntry) string { return e.URIStart }, uri, qc.norm); i >= 0 {
		e := cat.RewriteURIs[i]
		return v1.Found(rewriteResult(e.URIStart, e.RewritePrefix, uri, qc.norm)), nil
	}

	// Step 4: delegateURI.
	delegates := collectDelegatesSorted(cat.DelegateURIs, func(e *v1.DelegateURIEntry) string { return e.URIStart }, uri, qc.norm)
	for _, d := range delegates {
		res, err := qc.uriInCatalog(d.CatalogURI, uri, nature, purpose)
		if err != nil {
			return v1.NotFound, err
		}
		if res.Found {
			return res, nil
		}
	}

	// Step 5: nextCatalog, within this root.
	for _, nc := range cat.NextCatalogs {
		res, err := qc.uriInCatalog(nc.CatalogURI, uri, nature, purpose)
		if err != nil {
			return v1.NotFound, err
		}
		if res.Found {
			return res, nil
		}
	}
	return v1.NotFound, nil
}

// --- Doctype track ---

func (qc *queryCtx) lookupDoctype(roots []string, name string) (v1.LookupResult, error) {
	for _, root := range roots {
		res, err := qc.doctypeInCatalog(root, name)
		if err != nil {
			return v1.NotFound, err
		}
		if res.Found {
			return res, nil
		}
	}
	return v1.NotFound, nil
}

func (qc *queryCtx) doctypeInCatalog(catURI, name string) (v1.LookupResult, error) {
	if qc.visit(catURI) {
		return v1.NotFound, nil
	}
	cat, err := qc.loadCatalog(catURI)
	if err != nil {
		qc.log.Info("catalog load failed, treating as miss", "catalog", catURI, "error", err.Error())
		return v1.NotFound, nil
	}

	if i := firstIndex(cat.Doctypes, func(e *v1.DoctypeEntry) bool { return e.Name == name }); i >= 0 {
		return v1.Found(cat.Doctypes[i].URI), nil
	}

	for _, nc := range cat.NextCatalogs {
		res, err := qc.doctypeInCatalog(nc.CatalogURI, name)
		if err != nil {
			return v1.NotFound, err
		}
		if res.Found {
			return res, nil
		}
	}
	return v1.NotFound, nil
}
