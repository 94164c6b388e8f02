// Package v1 holds the public, language-neutral data model: catalog
// entries, lookup requests and results, and resolved resource
// responses. Types here are plain data — all resolution behavior
// lives in internal/catalog, internal/resolve, and internal/fetch.
package v1

// EntryKind discriminates the catalog element vocabulary. Grouping
// entries by kind (rather than dispatching on an interface) lets the
// query engine iterate exactly the entries each algorithm step needs,
// in document order, without a type switch per entry.
type EntryKind string

const (
	KindPublic         EntryKind = "public"
	KindSystem         EntryKind = "system"
	KindURI            EntryKind = "uri"
	KindRewriteSystem  EntryKind = "rewriteSystem"
	KindRewriteURI     EntryKind = "rewriteURI"
	KindSystemSuffix   EntryKind = "systemSuffix"
	KindURISuffix      EntryKind = "uriSuffix"
	KindDelegatePublic EntryKind = "delegatePublic"
	KindDelegateSystem EntryKind = "delegateSystem"
	KindDelegateURI    EntryKind = "delegateURI"
	KindNextCatalog    EntryKind = "nextCatalog"

	// TR9401 extension entries (urn:oasis:names:tc:entity:xmlns:tr9401:catalog).
	KindDoctype  EntryKind = "doctype"
	KindDocument EntryKind = "document"
	KindDTDDecl  EntryKind = "dtddecl"
	KindEntity   EntryKind = "entity"
	KindLinktype EntryKind = "linktype"
	KindNotation EntryKind = "notation"
	KindSGMLDecl EntryKind = "sgmldecl"

	KindGroup   EntryKind = "group"
	KindCatalog EntryKind = "catalog"
)

// Prefer is the system/public preference an entry's enclosing group
// or catalog element carries. The zero value Prefer("") means
// "inherit from the enclosing scope"; PreferPublic is the OASIS
// default at the catalog root.
type Prefer string

const (
	PreferPublic Prefer = "public"
	PreferSystem Prefer = "system"
)

// Group is a <group> or <catalog> element: it carries a prefer
// attribute and base URI, and contains nested entries and groups.
// The loader both keeps this tree (for fidelity and introspection)
// and flattens it into the owning Catalog's per-kind slices (for the
// query engine).
type Group struct {
	Kind    EntryKind // KindGroup or KindCatalog
	ID      string
	BaseURI string
	Prefer  Prefer
	Parent  *Group

	Publics         []*PublicEntry
	Systems         []*SystemEntry
	URIs            []*URIEntry
	RewriteSystems  []*RewriteSystemEntry
	RewriteURIs     []*RewriteURIEntry
	SystemSuffixes  []*SystemSuffixEntry
	URISuffixes     []*URISuffixEntry
	DelegatePublics []*DelegatePublicEntry
	DelegateSystems []*DelegateSystemEntry
	DelegateURIs    []*DelegateURIEntry
	NextCatalogs    []*NextCatalogEntry
	Doctypes        []*DoctypeEntry
	Documents       []*DocumentEntry
	DTDDecls        []*DTDDeclEntry
	Entities        []*EntityEntry
	Linktypes       []*LinktypeEntry
	Notations       []*NotationEntry
	SGMLDecls       []*SGMLDeclEntry
	Groups          []*Group
}

// EffectivePrefer walks outward from g through enclosing groups/catalog
// elements to find the nearest explicit prefer, defaulting to
// PreferPublic if none is set anywhere in the chain.
func (g *Group) EffectivePrefer() Prefer {
	for cur := g; cur != nil; cur = cur.Parent {
		if cur.Prefer != "" {
			return cur.Prefer
		}
	}
	return PreferPublic
}

// Common fields shared by every leaf entry kind.
type Common struct {
	ID       string
	BaseURI  string
	Enclosing *Group // nearest enclosing group/catalog, for Prefer resolution
	Seq      int     // document order across the whole catalog tree; breaks ties
}

type PublicEntry struct {
	Common
	PublicID string
	URI      string
}

type SystemEntry struct {
	Common
	SystemID string
	URI      string
}

type URIEntry struct {
	Common
	Name    string
	URI     string
	Nature  string
	Purpose string
}

type RewriteSystemEntry struct {
	Common
	SystemIDStart string
	RewritePrefix string
}

type RewriteURIEntry struct {
	Common
	URIStart      string
	RewritePrefix string
}

type SystemSuffixEntry struct {
	Common
	SystemIDSuffix string
	URI            string
}

type URISuffixEntry struct {
	Common
	URISuffix string
	URI       string
}

type DelegatePublicEntry struct {
	Common
	PublicIDStart string
	CatalogURI    string
}

type DelegateSystemEntry struct {
	Common
	SystemIDStart string
	CatalogURI    string
}

type DelegateURIEntry struct {
	Common
	URIStart   string
	CatalogURI string
}

type NextCatalogEntry struct {
	Common
	CatalogURI string
}

// TR9401 extension entries. Only Doctype participates in the query
// engine; the rest are retained for callers building SGML-flavored
// tooling on this engine.
type DoctypeEntry struct {
	Common
	Name string
	URI  string
}

type DocumentEntry struct {
	Common
	URI string
}

type DTDDeclEntry struct {
	Common
	PublicID string
	URI      string
}

type EntityEntry struct {
	Common
	Name string
	URI  string
}

type LinktypeEntry struct {
	Common
	Name string
	URI  string
}

type NotationEntry struct {
	Common
	Name string
	URI  string
}

type SGMLDeclEntry struct {
	Common
	URI string
}

// Catalog is a fully loaded catalog source: the nested Root group
// tree plus a flattened, document-order view per entry kind used by
// the query engine (internal/catalog).
type Catalog struct {
	// SourceURI is the absolute URI this catalog was loaded from.
	// It is the cache key in the manager's loaded-catalog map.
	SourceURI string
	Root      *Group

	Publics         []*PublicEntry
	Systems         []*SystemEntry
	URIs            []*URIEntry
	RewriteSystems  []*RewriteSystemEntry
	RewriteURIs     []*RewriteURIEntry
	SystemSuffixes  []*SystemSuffixEntry
	URISuffixes     []*URISuffixEntry
	DelegatePublics []*DelegatePublicEntry
	DelegateSystems []*DelegateSystemEntry
	DelegateURIs    []*DelegateURIEntry
	NextCatalogs    []*NextCatalogEntry
	Doctypes        []*DoctypeEntry
	Documents       []*DocumentEntry
	DTDDecls        []*DTDDeclEntry
	Entities        []*EntityEntry
	Linktypes       []*LinktypeEntry
	Notations       []*NotationEntry
	SGMLDecls       []*SGMLDeclEntry
}
