// Package uriutil implements shared URI handling: absolute/relative
// resolution, scheme handling for data:, classpath:, jar:,
// normalization for comparison, access-list enforcement, and the
// Windows system-identifier fixups.
package uriutil

import (
	"net/url"
	"regexp"
	"strings"
)

// Resolve resolves ref against base, the same way a catalog entry's
// URI is resolved against its effective base at load time: if ref is
// already absolute (or base is empty) it is returned unchanged,
// otherwise it is resolved as a relative reference against base.
func Resolve(base, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	if refURL.IsAbs() {
		return ref, nil
	}
	if base == "" {
		return ref, nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

// NormalizeClasspath normalizes classpath:/x to classpath:x at load
// time: a single leading slash after the scheme is stripped.
func NormalizeClasspath(uri string) string {
	const scheme = "classpath:"
	if !strings.HasPrefix(uri, scheme) {
		return uri
	}
	rest := uri[len(scheme):]
	rest = strings.TrimPrefix(rest, "/")
	return scheme + rest
}

var windowsDriveLetter = regexp.MustCompile(`^[A-Za-z]:[\\/]`)

// FixWindowsSystemIdentifier implements the fix_windows_system_identifiers
// option: backslash to slash, and drive-letter path synthesis into a
// file: URI. Left alone (returned unchanged) if the input doesn't
// look like a Windows path.
func FixWindowsSystemIdentifier(s string) string {
	if s == "" {
		return s
	}
	converted := strings.ReplaceAll(s, `\`, "/")
	if windowsDriveLetter.MatchString(s) {
		return "file:///" + converted
	}
	return converted
}

// Normalizer implements the comparison normalization function N(s):
// lowercase scheme and host, optionally merge http/https, leave path
// case intact. Applied symmetrically to request strings and catalog
// entry match strings before comparison.
type Normalizer struct {
	FoldCase   bool // lowercase scheme+host (always applied per spec wording; kept as an option for callers that want raw comparison)
	MergeHTTPS bool
}

// DefaultNormalizer performs scheme/host case folding and no
// http/https merging, matching the spec's baseline behavior.
var DefaultNormalizer = Normalizer{FoldCase: true}

// N normalizes s for comparison purposes only; it never mutates a
// stored entry or request value, it only changes what gets compared.
func (n Normalizer) N(s string) string {
	if s == "" {
		return s
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		// Not a parseable absolute URI (e.g. a bare public identifier or
		// an opaque FPI); compare as-is.
		return s
	}

	scheme := u.Scheme
	host := u.Host
	if n.FoldCase {
		scheme = strings.ToLower(scheme)
		host = strings.ToLower(host)
	}
	if n.MergeHTTPS && (scheme == "http" || scheme == "https") {
		scheme = "http"
	}

	u2 := *u
	u2.Scheme = scheme
	u2.Host = host
	return u2.String()
}

// AccessList is a scheme allow-list (access_external_entity /
// access_external_document).
type AccessList struct {
	Schemes    map[string]bool
	MergeHTTPS bool
}

// NewAccessList builds an AccessList from a comma/space-agnostic slice
// of scheme names. An empty list denies everything; use AllowAll for
// the "no restriction" case.
func NewAccessList(schemes []string, mergeHTTPS bool) AccessList {
	m := make(map[string]bool, len(schemes))
	for _, s := range schemes {
		m[strings.ToLower(s)] = true
	}
	return AccessList{Schemes: m, MergeHTTPS: mergeHTTPS}
}

// AllowAll is an AccessList that permits every scheme.
var AllowAll = AccessList{Schemes: nil}

// Allowed reports whether scheme is permitted. A nil Schemes map means
// "no restriction configured" and allows everything; this matches
// treating an absent access_external_* option as unrestricted, which
// is the safer default for a library embedded by a trusted caller.
func (a AccessList) Allowed(scheme string) bool {
	if a.Schemes == nil {
		return true
	}
	s := strings.ToLower(scheme)
	if a.MergeHTTPS && (s == "http" || s == "https") {
		return a.Schemes["http"] || a.Schemes["https"]
	}
	return a.Schemes[s]
}

// SchemeOf returns the scheme component of uri, or "" if uri has none.
func SchemeOf(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return u.Scheme
}
