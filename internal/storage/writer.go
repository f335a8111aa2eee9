package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/recall/internal/vector"
)

type writeOptions struct {
	compress bool
}

// WriteOption configures WriteCollection.
type WriteOption func(*writeOptions)

// WithCompression zstd-compresses the artifact payload.
func WithCompression(enabled bool) WriteOption {
	return func(o *writeOptions) {
		o.compress = enabled
	}
}

// WriteCollection persists idx and labels for collection under root. Each file is written to
// a temporary name and renamed into place, so readers see either the old or the new file,
// never a partial one. The label map goes first: a reader that sees the new artifact also
// sees a map that covers it.
func WriteCollection(root, collection string, idx vector.Index, labels LabelMap, opts ...WriteOption) error {
	var o writeOptions
	for _, opt := range opts {
		opt(&o)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	if labels == nil {
		labels = LabelMap{}
	}
	artifactPath, mapPath := Paths(root, collection)

	data, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("encode label map: %w", err)
	}
	if err := writeAtomic(mapPath, func(f *os.File) error {
		_, err := f.Write(data)
		return err
	}); err != nil {
		return fmt.Errorf("write label map: %w", err)
	}

	if err := writeAtomic(artifactPath, func(f *os.File) error {
		bw := bufio.NewWriter(f)
		if err := EncodeArtifact(bw, idx, o.compress); err != nil {
			return err
		}
		return bw.Flush()
	}); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

func writeAtomic(path string, fill func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := fill(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
