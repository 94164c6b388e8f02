// Package catalog implements the catalog loader, manager, and query
// engine.
package catalog

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/go-logr/logr"

	v1 "github.com/ndw/xmlresolver/api/v1"
	"github.com/ndw/xmlresolver/internal/uriutil"
	"github.com/ndw/xmlresolver/internal/xmlresolvererr"
)

// Namespaces recognized by the loader.
const (
	CatalogNS = "urn:oasis:names:tc:entity:xmlns:xml:catalog"
	TR9401NS  = "urn:oasis:names:tc:entity:xmlns:tr9401:catalog"
	xmlNS     = "http://www.w3.org/XML/1998/namespace"
)

// TokenSource is satisfied by *encoding/xml.Decoder; it is also the
// seam for a caller-supplied event producer: any XML pull-parser
// that emits encoding/xml tokens can be handed to LoadFromTokens
// instead of a byte stream.
type TokenSource interface {
	Token() (xml.Token, error)
}

// Loader parses catalog sources into Entry trees.
// Loaders are stateless and safe for concurrent use; the Catalog
// values they produce are immutable after Load returns.
type Loader struct {
	// Strict aborts the load on any malformed entry (a CatalogParse
	// error for a missing attribute, a MalformedURI error for a bad
	// URI) instead of tolerating and dropping it.
	Strict bool
	Logger logr.Logger
}

// NewLoader returns a tolerant (non-strict) Loader with a discard logger.
func NewLoader() *Loader {
	return &Loader{Logger: logr.Discard()}
}

// frame tracks one open XML element for xml:base scoping and group
// nesting while walking the token stream.
type frame struct {
	base    string
	group   *v1.Group // non-nil only for <group>/<catalog> elements
	ignored bool      // descendants of this element are skipped
}

// loadState accumulates the flattened, document-order view alongside
// the nested tree as entries are discovered.
type loadState struct {
	cat   *v1.Catalog
	stack []frame
	seq   int
}

func (ls *loadState) currentBase() string {
	if len(ls.stack) == 0 {
		return ""
	}
	return ls.stack[len(ls.stack)-1].base
}

func (ls *loadState) currentGroup() *v1.Group {
	for i := len(ls.stack) - 1; i >= 0; i-- {
		if ls.stack[i].group != nil {
			return ls.stack[i].group
		}
	}
	return nil
}

// LoadFromTokens parses a catalog from an arbitrary token source.
// sourceURI is used as the initial xml:base and as the identity under
// which the resulting Catalog is cached.
func (l *Loader) LoadFromTokens(src TokenSource, sourceURI string) (*v1.Catalog, error) {
	cat := &v1.Catalog{SourceURI: sourceURI}
	ls := &loadState{cat: cat, stack: []frame{{base: sourceURI}}}

	for {
		tok, err := src.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, xmlresolvererr.Wrap(xmlresolvererr.KindCatalogParse, sourceURI, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if err := l.handleStart(ls, t, sourceURI); err != nil {
				if l.Strict {
					return nil, err
				}
				l.Logger.Info("dropping malformed catalog entry", "error", err.Error())
				// handleStart has already pushed a frame for this
				// element, so the matching EndElement still balances
				// the stack.
			}
		case xml.EndElement:
			if len(ls.stack) > 1 {
				ls.stack = ls.stack[:len(ls.stack)-1]
			}
		}
	}

	if cat.Root == nil {
		return nil, xmlresolvererr.New(xmlresolvererr.KindCatalogParse, sourceURI, "no catalog element found")
	}
	return cat, nil
}

// Load fetches sourceURI via fetchFn and parses it as XML.
func (l *Loader) Load(sourceURI string, fetchFn func(uri string) (io.ReadCloser, error)) (*v1.Catalog, error) {
	rc, err := fetchFn(sourceURI)
	if err != nil {
		return nil, xmlresolvererr.Wrap(xmlresolvererr.KindIO, sourceURI, err)
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	return l.LoadFromTokens(dec, sourceURI)
}

func attr(t xml.StartElement, local string) (string, bool) {
	for _, a := range t.Attr {
		if a.Name.Space == "" && a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

func attrNS(t xml.StartElement, space, local string) (string, bool) {
	for _, a := range t.Attr {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// effectiveBase computes this element's base URI: its own xml:base
// resolved against the enclosing base, or the enclosing base
// unchanged.
func effectiveBase(parentBase string, t xml.StartElement) (string, error) {
	if xb, ok := attrNS(t, xmlNS, "base"); ok {
		return uriutil.Resolve(parentBase, xb)
	}
	return parentBase, nil
}

func (l *Loader) handleStart(ls *loadState, t xml.StartElement, sourceURI string) error {
	if n := len(ls.stack); n > 0 && ls.stack[n-1].ignored {
		ls.stack = append(ls.stack, frame{base: ls.currentBase(), ignored: true})
		return nil
	}

	base, err := effectiveBase(ls.currentBase(), t)
	if err != nil {
		ls.stack = append(ls.stack, frame{base: ls.currentBase()})
		return xmlresolvererr.Wrap(xmlresolvererr.KindMalformedURI, sourceURI, err)
	}

	ns := t.Name.Space
	local := t.Name.Local

	if ns != CatalogNS && ns != TR9401NS {
		// Unrecognized namespace: ignore this element (and, by virtue
		// of pushing an ignored frame, its descendants) without failing.
		ls.stack = append(ls.stack, frame{base: base, ignored: true})
		return nil
	}

	if ns == CatalogNS && (local == "group" || local == "catalog") {
		kind := v1.KindGroup
		if local == "catalog" {
			kind = v1.KindCatalog
		}
		g := &v1.Group{
			Kind:    kind,
			BaseURI: base,
			Parent:  ls.currentGroup(),
		}
		if id, ok := attr(t, "id"); ok {
			g.ID = id
		}
		if pv, ok := attr(t, "prefer"); ok {
			switch pv {
			case string(v1.PreferSystem):
				g.Prefer = v1.PreferSystem
			case string(v1.PreferPublic):
				g.Prefer = v1.PreferPublic
			}
		}
		if g.Parent != nil {
			g.Parent.Groups = append(g.Parent.Groups, g)
		} else if local == "catalog" {
			ls.cat.Root = g
		}
		ls.stack = append(ls.stack, frame{base: base, group: g})
		return nil
	}

	common := v1.Common{BaseURI: base, Enclosing: ls.currentGroup(), Seq: ls.seq}
	if id, ok := attr(t, "id"); ok {
		common.ID = id
	}
	ls.seq++

	// Leaf entries have no catalog content of their own, so anything
	// nested inside a leaf (or inside an unknown element) is ignored.
	if err := l.addLeaf(ls, ns, local, t, common, base, sourceURI); err != nil {
		ls.stack = append(ls.stack, frame{base: base, ignored: true})
		return err
	}
	ls.stack = append(ls.stack, frame{base: base, ignored: true})
	return nil
}

func missingAttr(sourceURI, elem, name string) error {
	return xmlresolvererr.New(xmlresolvererr.KindCatalogParse, sourceURI,
		fmt.Sprintf("<%s> missing required attribute %q", elem, name))
}

// addLeaf builds one leaf entry and appends it to both its enclosing
// group and the catalog's flattened per-kind list.
func (l *Loader) addLeaf(ls *loadState, ns, local string, t xml.StartElement, common v1.Common, base, sourceURI string) error {
	g := ls.currentGroup()
	if g == nil {
		return xmlresolvererr.New(xmlresolvererr.KindCatalogParse, sourceURI, local+" outside any catalog element")
	}

	resolve := func(raw string) (string, error) {
		u, err := uriutil.Resolve(base, raw)
		if err != nil {
			return "", err
		}
		return uriutil.NormalizeClasspath(u), nil
	}

	if ns == CatalogNS {
		switch local {
		case "public":
			pid, ok := attr(t, "publicId")
			if !ok {
				return missingAttr(sourceURI, local, "publicId")
			}
			uriRaw, ok := attr(t, "uri")
			if !ok {
				return missingAttr(sourceURI, local, "uri")
			}
			uri, err := resolve(uriRaw)
			if err != nil {
				return xmlresolvererr.Wrap(xmlresolvererr.KindMalformedURI, sourceURI, err)
			}
			e := &v1.PublicEntry{Common: common, PublicID: pid, URI: uri}
			g.Publics = append(g.Publics, e)
			ls.cat.Publics = append(ls.cat.Publics, e)

		case "system":
			sid, ok := attr(t, "systemId")
			if !ok {
				return missingAttr(sourceURI, local, "systemId")
			}
			uriRaw, ok := attr(t, "uri")
			if !ok {
				return missingAttr(sourceURI, local, "uri")
			}
			uri, err := resolve(uriRaw)
			if err != nil {
				return xmlresolvererr.Wrap(xmlresolvererr.KindMalformedURI, sourceURI, err)
			}
			e := &v1.SystemEntry{Common: common, SystemID: sid, URI: uri}
			g.Systems = append(g.Systems, e)
			ls.cat.Systems = append(ls.cat.Systems, e)

		case "uri":
			name, ok := attr(t, "name")
			if !ok {
				return missingAttr(sourceURI, local, "name")
			}
			uriRaw, ok := attr(t, "uri")
			if !ok {
				return missingAttr(sourceURI, local, "uri")
			}
			uri, err := resolve(uriRaw)
			if err != nil {
				return xmlresolvererr.Wrap(xmlresolvererr.KindMalformedURI, sourceURI, err)
			}
			nature, _ := attr(t, "nature")
			purpose, _ := attr(t, "purpose")
			e := &v1.URIEntry{Common: common, Name: name, URI: uri, Nature: nature, Purpose: purpose}
			g.URIs = append(g.URIs, e)
			ls.cat.URIs = append(ls.cat.URIs, e)

		case "rewriteSystem":
			start, ok := attr(t, "systemIdStartString")
			if !ok {
				return missingAttr(sourceURI, local, "systemIdStartString")
			}
			prefixRaw, ok := attr(t, "rewritePrefix")
			if !ok {
				return missingAttr(sourceURI, local, "rewritePrefix")
			}
			prefix, err := resolve(prefixRaw)
			if err != nil {
				return xmlresolvererr.Wrap(xmlresolvererr.KindMalformedURI, sourceURI, err)
			}
			e := &v1.RewriteSystemEntry{Common: common, SystemIDStart: start, RewritePrefix: prefix}
			g.RewriteSystems = append(g.RewriteSystems, e)
			ls.cat.RewriteSystems = append(ls.cat.RewriteSystems, e)

		case "rewriteURI":
			start, ok := attr(t, "uriStartString")
			if !ok {
				return missingAttr(sourceURI, local, "uriStartString")
			}
			prefixRaw, ok := attr(t, "rewritePrefix")
			if !ok {
				return missingAttr(sourceURI, local, "rewritePrefix")
			}
			prefix, err := resolve(prefixRaw)
			if err != nil {
				return xmlresolvererr.Wrap(xmlresolvererr.KindMalformedURI, sourceURI, err)
			}
			e := &v1.RewriteURIEntry{Common: common, URIStart: start, RewritePrefix: prefix}
			g.RewriteURIs = append(g.RewriteURIs, e)
			ls.cat.RewriteURIs = append(ls.cat.RewriteURIs, e)

		case "systemSuffix":
			suffix, ok := attr(t, "systemIdSuffix")
			if !ok {
				return missingAttr(sourceURI, local, "systemIdSuffix")
			}
			uriRaw, ok := attr(t, "uri")
			if !ok {
				return missingAttr(sourceURI, local, "uri")
			}
			uri, err := resolve(uriRaw)
			if err != nil {
				return xmlresolvererr.Wrap(xmlresolvererr.KindMalformedURI, sourceURI, err)
			}
			e := &v1.SystemSuffixEntry{Common: common, SystemIDSuffix: suffix, URI: uri}
			g.SystemSuffixes = append(g.SystemSuffixes, e)
			ls.cat.SystemSuffixes = append(ls.cat.SystemSuffixes, e)

		case "uriSuffix":
			suffix, ok := attr(t, "uriSuffix")
			if !ok {
				return missingAttr(sourceURI, local, "uriSuffix")
			}
			uriRaw, ok := attr(t, "uri")
			if !ok {
				return missingAttr(sourceURI, local, "uri")
			}
			uri, err := resolve(uriRaw)
			if err != nil {
				return xmlresolvererr.Wrap(xmlresolvererr.KindMalformedURI, sourceURI, err)
			}
			e := &v1.URISuffixEntry{Common: common, URISuffix: suffix, URI: uri}
			g.URISuffixes = append(g.URISuffixes, e)
			ls.cat.URISuffixes = append(ls.cat.URISuffixes, e)

		case "delegatePublic":
			start, ok := attr(t, "publicIdStartString")
			if !ok {
				return missingAttr(sourceURI, local, "publicIdStartString")
			}
			catRaw, ok := attr(t, "catalog")
			if !ok {
				return missingAttr(sourceURI, local, "catalog")
			}
			catURI, err := resolve(catRaw)
			if err != nil {
				return xmlresolvererr.Wrap(xmlresolvererr.KindMalformedURI, sourceURI, err)
			}
			e := &v1.DelegatePublicEntry{Common: common, PublicIDStart: start, CatalogURI: catURI}
			g.DelegatePublics = append(g.DelegatePublics, e)
			ls.cat.DelegatePublics = append(ls.cat.DelegatePublics, e)

		case "delegateSystem":
			start, ok := attr(t, "systemIdStartString")
			if !ok {
				return missingAttr(sourceURI, local, "systemIdStartString")
			}
			catRaw, ok := attr(t, "catalog")
			if !ok {
				return missingAttr(sourceURI, local, "catalog")
			}
			catURI, err := resolve(catRaw)
			if err != nil {
				return xmlresolvererr.Wrap(xmlresolvererr.KindMalformedURI, sourceURI, err)
			}
			e := &v1.DelegateSystemEntry{Common: common, SystemIDStart: start, CatalogURI: catURI}
			g.DelegateSystems = append(g.DelegateSystems, e)
			ls.cat.DelegateSystems = append(ls.cat.DelegateSystems, e)

		case "delegateURI":
			start, ok := attr(t, "uriStartString")
			if !ok {
				return missingAttr(sourceURI, local, "uriStartString")
			}
			catRaw, ok := attr(t, "catalog")
			if !ok {
				return missingAttr(sourceURI, local, "catalog")
			}
			catURI, err := resolve(catRaw)
			if err != nil {
				return xmlresolvererr.Wrap(xmlresolvererr.KindMalformedURI, sourceURI, err)
			}
			e := &v1.DelegateURIEntry{Common: common, URIStart: start, CatalogURI: catURI}
			g.DelegateURIs = append(g.DelegateURIs, e)
			ls.cat.DelegateURIs = append(ls.cat.DelegateURIs, e)

		case "nextCatalog":
			catRaw, ok := attr(t, "catalog")
			if !ok {
				return missingAttr(sourceURI, local, "catalog")
			}
			catURI, err := resolve(catRaw)
			if err != nil {
				return xmlresolvererr.Wrap(xmlresolvererr.KindMalformedURI, sourceURI, err)
			}
			e := &v1.NextCatalogEntry{Common: common, CatalogURI: catURI}
			g.NextCatalogs = append(g.NextCatalogs, e)
			ls.cat.NextCatalogs = append(ls.cat.NextCatalogs, e)

		default:
			// Unknown element in the catalog namespace: ignore.
		}
		return nil
	}

	// TR9401 extension namespace.
	switch local {
	case "doctype":
		name, ok := attr(t, "name")
		if !ok {
			return missingAttr(sourceURI, local, "name")
		}
		uriRaw, ok := attr(t, "uri")
		if !ok {
			return missingAttr(sourceURI, local, "uri")
		}
		uri, err := resolve(uriRaw)
		if err != nil {
			return xmlresolvererr.Wrap(xmlresolvererr.KindMalformedURI, sourceURI, err)
		}
		e := &v1.DoctypeEntry{Common: common, Name: name, URI: uri}
		g.Doctypes = append(g.Doctypes, e)
		ls.cat.Doctypes = append(ls.cat.Doctypes, e)

	case "document":
		uriRaw, ok := attr(t, "uri")
		if !ok {
			return missingAttr(sourceURI, local, "uri")
		}
		uri, err := resolve(uriRaw)
		if err != nil {
			return xmlresolvererr.Wrap(xmlresolvererr.KindMalformedURI, sourceURI, err)
		}
		e := &v1.DocumentEntry{Common: common, URI: uri}
		g.Documents = append(g.Documents, e)
		ls.cat.Documents = append(ls.cat.Documents, e)

	case "dtddecl":
		pid, _ := attr(t, "publicId")
		uriRaw, ok := attr(t, "uri")
		if !ok {
			return missingAttr(sourceURI, local, "uri")
		}
		uri, err := resolve(uriRaw)
		if err != nil {
			return xmlresolvererr.Wrap(xmlresolvererr.KindMalformedURI, sourceURI, err)
		}
		e := &v1.DTDDeclEntry{Common: common, PublicID: pid, URI: uri}
		g.DTDDecls = append(g.DTDDecls, e)
		ls.cat.DTDDecls = append(ls.cat.DTDDecls, e)

	case "entity":
		name, ok := attr(t, "name")
		if !ok {
			return missingAttr(sourceURI, local, "name")
		}
		uriRaw, ok := attr(t, "uri")
		if !ok {
			return missingAttr(sourceURI, local, "uri")
		}
		uri, err := resolve(uriRaw)
		if err != nil {
			return xmlresolvererr.Wrap(xmlresolvererr.KindMalformedURI, sourceURI, err)
		}
		e := &v1.EntityEntry{Common: common, Name: name, URI: uri}
		g.Entities = append(g.Entities, e)
		ls.cat.Entities = append(ls.cat.Entities, e)

	case "linktype":
		name, ok := attr(t, "name")
		if !ok {
			return missingAttr(sourceURI, local, "name")
		}
		uriRaw, ok := attr(t, "uri")
		if !ok {
			return missingAttr(sourceURI, local, "uri")
		}
		uri, err := resolve(uriRaw)
		if err != nil {
			return xmlresolvererr.Wrap(xmlresolvererr.KindMalformedURI, sourceURI, err)
		}
		e := &v1.LinktypeEntry{Common: common, Name: name, URI: uri}
		g.Linktypes = append(g.Linktypes, e)
		ls.cat.Linktypes = append(ls.cat.Linktypes, e)

	case "notation":
		name, ok := attr(t, "name")
		if !ok {
			return missingAttr(sourceURI, local, "name")
		}
		uriRaw, ok := attr(t, "uri")
		if !ok {
			return missingAttr(sourceURI, local, "uri")
		}
		uri, err := resolve(uriRaw)
		if err != nil {
			return xmlresolvererr.Wrap(xmlresolvererr.KindMalformedURI, sourceURI, err)
		}
		e := &v1.NotationEntry{Common: common, Name: name, URI: uri}
		g.Notations = append(g.Notations, e)
		ls.cat.Notations = append(ls.cat.Notations, e)

	case "sgmldecl":
		uriRaw, ok := attr(t, "uri")
		if !ok {
			return missingAttr(sourceURI, local, "uri")
		}
		uri, err := resolve(uriRaw)
		if err != nil {
			return xmlresolvererr.Wrap(xmlresolvererr.KindMalformedURI, sourceURI, err)
		}
		e := &v1.SGMLDeclEntry{Common: common, URI: uri}
		g.SGMLDecls = append(g.SGMLDecls, e)
		ls.cat.SGMLDecls = append(ls.cat.SGMLDecls, e)

	default:
		// Unknown TR9401 element: ignore.
	}
	return nil
}
