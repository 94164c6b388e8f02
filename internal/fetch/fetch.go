// Package fetch implements the resource-opening layer: given an
// absolute URI, open its bytes over whichever scheme-specific
// transport applies (data:, classpath:, jar:, file:, http(s):, oci:).
package fetch

import (
	"archive/tar"
	"encoding/base64"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-logr/logr"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"

	v1 "github.com/ndw/xmlresolver/api/v1"
	"github.com/ndw/xmlresolver/internal/uriutil"
	"github.com/ndw/xmlresolver/internal/xmlresolvererr"
)

// MaxRedirects bounds the http(s): redirect chain; exceeding it is a
// TooManyRedirects error rather than an unbounded loop.
const MaxRedirects = 64

// Fetcher opens resources across every scheme this engine supports.
// A zero-value Fetcher is usable: it allows every scheme and uses
// http.DefaultClient.
type Fetcher struct {
	AccessList uriutil.AccessList
	Classpath  fs.FS // resource root for classpath: URIs
	HTTPClient *http.Client
	Logger     logr.Logger
}

// New returns a Fetcher with no access restrictions and the default
// HTTP client.
func New(classpath fs.FS) *Fetcher {
	return &Fetcher{AccessList: uriutil.AllowAll, Classpath: classpath, HTTPClient: http.DefaultClient, Logger: logr.Discard()}
}

func (f *Fetcher) httpClient() *http.Client {
	if f.HTTPClient != nil {
		return f.HTTPClient
	}
	return http.DefaultClient
}

// Open opens absoluteURI and returns a fully populated ResourceResponse
// (the caller fills in Request). The redirect chain starts empty and
// accumulates visited URIs to detect loops.
func (f *Fetcher) Open(absoluteURI string) (*v1.ResourceResponse, error) {
	return f.open(absoluteURI, nil)
}

func (f *Fetcher) open(absoluteURI string, chain []string) (*v1.ResourceResponse, error) {
	scheme := uriutil.SchemeOf(absoluteURI)
	if !f.AccessList.Allowed(scheme) {
		return nil, xmlresolvererr.New(xmlresolvererr.KindAccessDenied, absoluteURI, "scheme "+scheme+" is not in the access list")
	}

	switch scheme {
	case "data":
		return f.openData(absoluteURI)
	case "classpath":
		return f.openClasspath(absoluteURI)
	case "jar":
		return f.openJar(absoluteURI)
	case "http", "https":
		return f.openHTTP(absoluteURI, chain)
	case "oci":
		return f.openOCI(absoluteURI)
	case "file", "":
		return f.openFile(absoluteURI)
	default:
		return f.openFile(absoluteURI)
	}
}

// --- data: (RFC 2397) ---

func (f *Fetcher) openData(uri string) (*v1.ResourceResponse, error) {
	rest := strings.TrimPrefix(uri, "data:")
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return nil, xmlresolvererr.New(xmlresolvererr.KindMalformedURI, uri, "data: URI missing comma separator")
	}
	meta, payload := rest[:comma], rest[comma+1:]

	isBase64 := false
	mediaType := "text/plain;charset=US-ASCII"
	if meta != "" {
		parts := strings.Split(meta, ";")
		if parts[len(parts)-1] == "base64" {
			isBase64 = true
			parts = parts[:len(parts)-1]
		}
		if joined := strings.Join(parts, ";"); joined != "" {
			mediaType = joined
		}
	}

	var raw []byte
	var err error
	if isBase64 {
		raw, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, xmlresolvererr.Wrap(xmlresolvererr.KindMalformedURI, uri, err)
		}
	} else {
		unescaped, uerr := url.QueryUnescape(payload)
		if uerr != nil {
			return nil, xmlresolvererr.Wrap(xmlresolvererr.KindMalformedURI, uri, uerr)
		}
		raw = []byte(unescaped)
	}

	contentType, _, _ := mime.ParseMediaType(mediaType)
	if contentType == "" {
		contentType = mediaType
	}

	return &v1.ResourceResponse{
		ResolvedURI: uri,
		LocalURI:    uri,
		Stream:      io.NopCloser(strings.NewReader(string(raw))),
		ContentType: contentType,
		StatusCode:  200,
	}, nil
}

// --- classpath: ---

func (f *Fetcher) openClasspath(uri string) (*v1.ResourceResponse, error) {
	if f.Classpath == nil {
		return nil, xmlresolvererr.New(xmlresolvererr.KindIO, uri, "no classpath resource root configured")
	}
	path := uriutil.NormalizeClasspath(uri)
	path = strings.TrimPrefix(path, "classpath:")
	path = strings.TrimPrefix(path, "/")
	rc, err := f.Classpath.Open(path)
	if err != nil {
		return nil, xmlresolvererr.Wrap(xmlresolvererr.KindIO, uri, err)
	}
	return &v1.ResourceResponse{
		ResolvedURI: uri,
		LocalURI:    uri,
		Stream:      rc,
		StatusCode:  200,
	}, nil
}

// --- jar: (jar:<file-or-http-uri>!/entry-path) ---

func (f *Fetcher) openJar(uri string) (*v1.ResourceResponse, error) {
	rest := strings.TrimPrefix(uri, "jar:")
	bang := strings.Index(rest, "!/")
	if bang < 0 {
		return nil, xmlresolvererr.New(xmlresolvererr.KindMalformedURI, uri, "jar: URI missing !/ separator")
	}
	archiveURI, entryPath := rest[:bang], rest[bang+2:]

	archiveResp, err := f.open(archiveURI, nil)
	if err != nil {
		return nil, err
	}
	defer archiveResp.Close()

	zr, err := zipReaderFrom(archiveResp.Stream)
	if err != nil {
		return nil, xmlresolvererr.Wrap(xmlresolvererr.KindIO, uri, err)
	}
	for _, zf := range zr.entries {
		if zf.name == entryPath {
			return &v1.ResourceResponse{
				ResolvedURI: uri,
				LocalURI:    uri,
				Stream:      io.NopCloser(strings.NewReader(zf.content)),
				StatusCode:  200,
			}, nil
		}
	}
	return nil, xmlresolvererr.New(xmlresolvererr.KindNotFound, uri, "entry "+entryPath+" not found in jar")
}

// --- file:, scheme-less URIs, and any other scheme: the URI's path is opened on the local filesystem ---

func (f *Fetcher) openFile(uri string) (*v1.ResourceResponse, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, xmlresolvererr.Wrap(xmlresolvererr.KindMalformedURI, uri, err)
	}
	path := u.Path
	if path == "" {
		path = u.Opaque
	}
	rc, ferr := openLocalPath(path)
	if ferr != nil {
		return nil, xmlresolvererr.Wrap(xmlresolvererr.KindIO, uri, ferr)
	}
	return &v1.ResourceResponse{
		ResolvedURI: uri,
		LocalURI:    uri,
		Stream:      rc,
		StatusCode:  200,
	}, nil
}

// --- http(s): with bounded redirect-loop detection ---

func (f *Fetcher) openHTTP(uri string, chain []string) (*v1.ResourceResponse, error) {
	for _, seen := range chain {
		if seen == uri {
			return nil, xmlresolvererr.New(xmlresolvererr.KindRedirectLoop, uri, "redirect loop detected")
		}
	}
	if len(chain) > MaxRedirects {
		return nil, xmlresolvererr.New(xmlresolvererr.KindTooManyRedirects, uri, fmt.Sprintf("exceeded %d redirects", MaxRedirects))
	}

	req, err := http.NewRequest(http.MethodGet, uri, nil)
	if err != nil {
		return nil, xmlresolvererr.Wrap(xmlresolvererr.KindMalformedURI, uri, err)
	}

	httpClient := *f.httpClient()
	httpClient.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, xmlresolvererr.Wrap(xmlresolvererr.KindIO, uri, err)
	}

	if loc := resp.Header.Get("Location"); resp.StatusCode >= 300 && resp.StatusCode < 400 && loc != "" {
		resp.Body.Close()
		next, rerr := url.Parse(loc)
		if rerr != nil {
			return nil, xmlresolvererr.Wrap(xmlresolvererr.KindMalformedURI, uri, rerr)
		}
		base, _ := url.Parse(uri)
		resolved := base.ResolveReference(next).String()
		f.Logger.Info("following redirect", "from", uri, "to", resolved, "status", resp.StatusCode)
		return f.openHTTP(resolved, append(chain, uri))
	}

	return &v1.ResourceResponse{
		ResolvedURI: uri,
		LocalURI:    uri,
		Stream:      resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
		Encoding:    resp.Header.Get("Content-Encoding"),
		StatusCode:  resp.StatusCode,
		Headers:     resp.Header,
	}, nil
}

// --- oci: (oci://<image-ref>!<path-within-layers>) ---

func (f *Fetcher) openOCI(uri string) (*v1.ResourceResponse, error) {
	rest := strings.TrimPrefix(uri, "oci://")
	bang := strings.IndexByte(rest, '!')
	if bang < 0 {
		return nil, xmlresolvererr.New(xmlresolvererr.KindMalformedURI, uri, "oci: URI missing ! path separator")
	}
	imageRef, wantPath := rest[:bang], strings.TrimPrefix(rest[bang+1:], "/")

	ref, err := name.ParseReference(imageRef)
	if err != nil {
		return nil, xmlresolvererr.Wrap(xmlresolvererr.KindMalformedURI, uri, err)
	}
	img, err := remote.Image(ref)
	if err != nil {
		return nil, xmlresolvererr.Wrap(xmlresolvererr.KindIO, uri, err)
	}
	layers, err := img.Layers()
	if err != nil {
		return nil, xmlresolvererr.Wrap(xmlresolvererr.KindIO, uri, err)
	}

	for i := len(layers) - 1; i >= 0; i-- {
		rc, err := layers[i].Uncompressed()
		if err != nil {
			continue
		}
		tr := tar.NewReader(rc)
		for {
			hdr, terr := tr.Next()
			if terr == io.EOF {
				break
			}
			if terr != nil {
				break
			}
			if hdr.Typeflag != tar.TypeReg {
				continue
			}
			if strings.TrimPrefix(hdr.Name, "./") != wantPath {
				continue
			}
			data, rerr := io.ReadAll(tr)
			rc.Close()
			if rerr != nil {
				return nil, xmlresolvererr.Wrap(xmlresolvererr.KindIO, uri, rerr)
			}
			mt, _ := layers[i].MediaType()
			return &v1.ResourceResponse{
				ResolvedURI: uri,
				LocalURI:    uri,
				Stream:      io.NopCloser(strings.NewReader(string(data))),
				ContentType: string(mt),
				StatusCode:  200,
			}, nil
		}
		rc.Close()
	}
	return nil, xmlresolvererr.New(xmlresolvererr.KindNotFound, uri, "path "+wantPath+" not found in any layer of "+imageRef)
}
