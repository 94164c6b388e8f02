package fetch

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
)

// openLocalPath opens a plain filesystem path for the file: scheme
// (and the file-path fallback used when a URI carries no scheme).
func openLocalPath(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// zipEntry is one decompressed member of a jar: archive.
type zipEntry struct {
	name    string
	content string
}

// zipArchive holds every entry of a jar read fully into memory; jar:
// archives referenced by this engine are small schema/DTD bundles, so
// reading the whole central directory up front is simpler than
// streaming and lets openJar do a single name lookup.
type zipArchive struct {
	entries []zipEntry
}

// zipReaderFrom reads rc (already-open archive bytes) into a zipArchive.
func zipReaderFrom(rc io.ReadCloser) (*zipArchive, error) {
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	var entries []zipEntry
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		frc, err := f.Open()
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(frc)
		frc.Close()
		if err != nil {
			return nil, err
		}
		entries = append(entries, zipEntry{name: f.Name, content: string(content)})
	}
	return &zipArchive{entries: entries}, nil
}
