// Package resolve orchestrates a full resolution request: catalog
// lookup, fetch, and — for namespace/URI requests whose catalog entry
// points at a RDDL directory page — the RDDL post-lookup pass that
// finds the nature/purpose-specific resource and re-queries the
// catalog for it.
package resolve

import (
	"bytes"
	"io"

	"github.com/go-logr/logr"

	v1 "github.com/ndw/xmlresolver/api/v1"
	"github.com/ndw/xmlresolver/internal/catalog"
	"github.com/ndw/xmlresolver/internal/fetch"
	"github.com/ndw/xmlresolver/internal/rddl"
	"github.com/ndw/xmlresolver/internal/uriutil"
	"github.com/ndw/xmlresolver/internal/xmlresolvererr"
)

// Resolver wires a catalog.Manager (lookup) to a fetch.Fetcher (open)
// and adds the RDDL post-lookup pass and the always_resolve fallback.
type Resolver struct {
	Manager *catalog.Manager
	Fetcher *fetch.Fetcher

	// AlwaysResolve treats a catalog miss as "resolve the request's own
	// URI/system id directly" instead of failing, matching the
	// always_resolve configuration option.
	AlwaysResolve bool

	// FixWindowsSystemIdentifiers applies uriutil.FixWindowsSystemIdentifier
	// to incoming system-id/uri request fields before lookup.
	FixWindowsSystemIdentifiers bool

	Logger logr.Logger
}

func (r *Resolver) logger() logr.Logger {
	if r.Logger.GetSink() == nil {
		return logr.Discard()
	}
	return r.Logger
}

func (r *Resolver) fixup(s string) string {
	if !r.FixWindowsSystemIdentifiers || s == "" {
		return s
	}
	return uriutil.FixWindowsSystemIdentifier(s)
}

// Lookup runs the catalog-only half of resolution: no fetch, no RDDL
// pass. It picks the entity track (system+public+name) when the
// request carries an entity-track Nature, an EntityName, or a
// PublicID; otherwise the URI track.
func (r *Resolver) Lookup(req v1.Request) (v1.LookupResult, error) {
	if req.IsEmpty() {
		return v1.NotFound, nil
	}
	system := r.fixup(req.URI)

	if req.Nature.IsEntityTrack() || req.EntityName != "" || req.PublicID != "" {
		return r.Manager.LookupEntity(req.EntityName, system, req.PublicID)
	}
	return r.Manager.LookupURI(system, string(req.Nature), string(req.Purpose))
}

// Resolve runs lookup-then-fetch for req. If req.OpenStream is false,
// the returned response carries ResolvedURI only, with no open
// stream.
func (r *Resolver) Resolve(req v1.Request) (*v1.ResourceResponse, error) {
	res, err := r.Lookup(req)
	if err != nil {
		return nil, err
	}

	resolvedURI := res.ResolvedURI
	if !res.Found {
		if !r.AlwaysResolve || req.URI == "" {
			return nil, xmlresolvererr.New(xmlresolvererr.KindNotFound, req.URI, "no catalog entry matched the request")
		}
		resolvedURI = r.fixup(req.URI)
	}

	if !req.OpenStream {
		return &v1.ResourceResponse{Request: req, ResolvedURI: resolvedURI, StatusCode: 0}, nil
	}

	resp, err := r.Fetcher.Open(resolvedURI)
	if err != nil {
		return nil, err
	}
	resp.Request = req
	return resp, nil
}

// ResolveNamespace resolves a namespace URI with an associated
// nature/purpose, following RDDL indirection when the catalog's
// uri-track entry points at a RDDL-described directory page rather
// than the resource itself: the page is fetched, scanned for the
// first rddl:resource matching nature/purpose, and the discovered
// href is re-looked-up through the catalog before the final fetch.
func (r *Resolver) ResolveNamespace(uri string, nature v1.Nature, purpose v1.Purpose) (*v1.ResourceResponse, error) {
	res, err := r.Manager.LookupNamespace(uri, string(nature), string(purpose))
	if err != nil {
		return nil, err
	}
	if !res.Found {
		if !r.AlwaysResolve {
			return nil, xmlresolvererr.New(xmlresolvererr.KindNotFound, uri, "no catalog entry matched the namespace")
		}
		res = v1.Found(uri)
	}

	page, err := r.Fetcher.Open(res.ResolvedURI)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(page.Stream)
	page.Close()
	if err != nil {
		return nil, xmlresolvererr.Wrap(xmlresolvererr.KindIO, res.ResolvedURI, err)
	}

	resource, found, rerr := rddl.FindResource(bytes.NewReader(body), res.ResolvedURI, nature, purpose)
	if rerr != nil {
		return nil, xmlresolvererr.Wrap(xmlresolvererr.KindRDDLParse, res.ResolvedURI, rerr)
	}
	if !found {
		return &v1.ResourceResponse{
			ResolvedURI: res.ResolvedURI,
			LocalURI:    res.ResolvedURI,
			Stream:      io.NopCloser(bytes.NewReader(body)),
			ContentType: page.ContentType,
			StatusCode:  page.StatusCode,
		}, nil
	}

	r.logger().Info("rddl resource discovered", "namespace", uri, "href", resource.Href)

	followUp, ferr := r.Manager.LookupURI(resource.Href, string(nature), string(purpose))
	if ferr != nil {
		return nil, ferr
	}
	target := resource.Href
	if followUp.Found {
		target = followUp.ResolvedURI
	}

	finalResp, err := r.Fetcher.Open(target)
	if err != nil {
		return nil, err
	}
	return finalResp, nil
}
