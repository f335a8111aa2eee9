package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/hyperjump/recall/internal/errs"
	"github.com/hyperjump/recall/internal/vector"
)

// Collection is one loaded artifact and its label map. It is never shared between queries.
type Collection struct {
	Name   string
	Header Header
	Index  vector.Index
	Labels LabelMap
}

// Open loads the artifact and label map for collection under root and checks that the
// stored dimensionality equals dims. Nothing is cached; every call reads the files.
//
// Errors are *errs.Error of kind KindNotFound (either file absent) or KindCorrupt.
func Open(root, collection string, dims int) (*Collection, error) {
	const op = "storage.open"
	artifactPath, mapPath := Paths(root, collection)

	for _, p := range []string{artifactPath, mapPath} {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, errs.New(errs.KindNotFound, op, collection, fmt.Errorf("missing %s", p))
			}
			return nil, errs.New(errs.KindCorrupt, op, collection, err)
		}
	}

	h, idx, err := readArtifact(artifactPath, dims)
	if err != nil {
		return nil, errs.New(errs.KindCorrupt, op, collection, err)
	}

	data, err := os.ReadFile(mapPath)
	if err != nil {
		return nil, errs.New(errs.KindCorrupt, op, collection, fmt.Errorf("read label map: %w", err))
	}
	labels, err := ParseLabelMap(data)
	if err != nil {
		return nil, errs.New(errs.KindCorrupt, op, collection, err)
	}

	return &Collection{Name: collection, Header: h, Index: idx, Labels: labels}, nil
}

// readArtifact checks the header against dims before decoding the payload, so a
// mismatched query never pays for a full load.
func readArtifact(path string, dims int) (Header, vector.Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)
	h, err := ReadHeader(r)
	if err != nil {
		return Header{}, nil, err
	}
	if int(h.Dims) != dims {
		return Header{}, nil, fmt.Errorf("dimension mismatch: artifact has %d, query has %d", h.Dims, dims)
	}
	idx, err := DecodePayload(h, r)
	if err != nil {
		return Header{}, nil, err
	}
	return h, idx, nil
}
