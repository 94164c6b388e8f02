package catalog

import (
	"fmt"
	"io"
	"strings"
)

// mapFetch returns a FetchFunc backed by an in-memory map of absolute
// catalog URI to XML content, for tests that don't need real I/O.
func mapFetch(sources map[string]string) FetchFunc {
	return func(uri string) (io.ReadCloser, error) {
		src, ok := sources[uri]
		if !ok {
			return nil, fmt.Errorf("no such test catalog: %s", uri)
		}
		return io.NopCloser(strings.NewReader(src)), nil
	}
}
