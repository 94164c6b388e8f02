// Package rddl extracts resource references from RDDL (Resource
// Directory Description Language) documents: HTML pages that embed
// rddl:resource elements describing a namespace's related resources
// by nature (xlink:role) and purpose (xlink:arcrole).
package rddl

import (
	"io"
	"strings"

	"golang.org/x/net/html"

	v1 "github.com/ndw/xmlresolver/api/v1"
	"github.com/ndw/xmlresolver/internal/uriutil"
)

const (
	rddlResourceLocal = "resource"
	xlinkHref         = "href"
	xlinkRole         = "role"
	xlinkArcrole      = "arcrole"
)

// Resource is one rddl:resource element's role/arcrole/href, resolved
// against the document's xml:base stack at the point it was found.
type Resource struct {
	Nature  string
	Purpose string
	Href    string
}

// FindResource streams r as HTML looking for the first rddl:resource
// element whose role matches nature and whose arcrole matches purpose
// (either comparison is skipped when the caller leaves the field
// empty), returning its href resolved against the accumulated
// xml:base chain starting at baseURI.
func FindResource(r io.Reader, baseURI string, nature v1.Nature, purpose v1.Purpose) (Resource, bool, error) {
	tok := html.NewTokenizer(r)
	baseStack := []string{baseURI}

	for {
		tt := tok.Next()
		if tt == html.ErrorToken {
			if tok.Err() == io.EOF {
				return Resource{}, false, nil
			}
			return Resource{}, false, tok.Err()
		}

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tok.TagName()
			local := localName(string(name))
			var attrs []attrPair
			if hasAttr {
				attrs = collectAttrs(tok)
			}

			if xb, ok := attrValue(attrs, "base"); ok && isXMLBaseAttr(attrs) {
				resolved, err := uriutil.Resolve(baseStack[len(baseStack)-1], xb)
				if err == nil {
					baseStack = append(baseStack, resolved)
				}
			} else if tt == html.StartTagToken {
				baseStack = append(baseStack, baseStack[len(baseStack)-1])
			}

			if local == rddlResourceLocal {
				role, _ := attrValue(attrs, xlinkRole)
				arcrole, _ := attrValue(attrs, xlinkArcrole)
				href, hasHref := attrValue(attrs, xlinkHref)
				if hasHref && natureMatches(role, nature) && purposeMatches(arcrole, purpose) {
					resolved, err := uriutil.Resolve(baseStack[len(baseStack)-1], href)
					if err != nil {
						resolved = href
					}
					return Resource{Nature: role, Purpose: arcrole, Href: resolved}, true, nil
				}
			}

			if tt == html.SelfClosingTagToken && len(baseStack) > 1 {
				baseStack = baseStack[:len(baseStack)-1]
			}

		case html.EndTagToken:
			if len(baseStack) > 1 {
				baseStack = baseStack[:len(baseStack)-1]
			}
		}
	}
}

func natureMatches(role string, nature v1.Nature) bool {
	if nature == "" {
		return true
	}
	return strings.EqualFold(role, string(nature))
}

func purposeMatches(arcrole string, purpose v1.Purpose) bool {
	if purpose == "" {
		return true
	}
	return strings.EqualFold(arcrole, string(purpose))
}

func localName(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

type attrPair struct{ key, val string }

func collectAttrs(tok *html.Tokenizer) []attrPair {
	var out []attrPair
	for {
		k, v, more := tok.TagAttr()
		out = append(out, attrPair{key: string(k), val: string(v)})
		if !more {
			break
		}
	}
	return out
}

func attrValue(attrs []attrPair, localKey string) (string, bool) {
	for _, a := range attrs {
		if localName(a.key) == localKey {
			return a.val, true
		}
	}
	return "", false
}

func isXMLBaseAttr(attrs []attrPair) bool {
	for _, a := range attrs {
		if a.key == "xml:base" || a.key == "base" {
			return true
		}
	}
	return false
}
