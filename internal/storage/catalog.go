package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/recall/internal/vector"
)

// Info describes one collection found in a store directory. Err is set when the
// collection is present but unusable; the other fields are filled as far as they could be read.
type Info struct {
	Name   string
	Key    string
	Kind   vector.Kind
	Dims   int
	Count  int
	Labels int
	Bytes  int64
	Err    error
}

// List scans root for artifacts and reports each collection sorted by name. Only headers and
// label maps are read; payloads are not decoded.
func List(root string) ([]Info, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Info{}, nil
		}
		return nil, fmt.Errorf("read store directory: %w", err)
	}

	infos := make([]Info, 0)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), artifactSuffix) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		key := strings.TrimSuffix(e.Name(), artifactSuffix)
		name, err := DecodeName(key)
		if err != nil {
			// Not written by this store.
			continue
		}
		infos = append(infos, describe(root, key, name))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func describe(root, key, name string) Info {
	info := Info{Name: name, Key: key}
	artifactPath := filepath.Join(root, key+artifactSuffix)
	mapPath := filepath.Join(root, key+labelMapSuffix)

	bytes, err := DiskUsageBytes(artifactPath, mapPath)
	if err != nil {
		info.Err = err
		return info
	}
	info.Bytes = bytes

	h, err := readHeaderFile(artifactPath)
	if err != nil {
		info.Err = err
		return info
	}
	info.Kind = h.Kind
	info.Dims = int(h.Dims)
	info.Count = int(h.Count)

	data, err := os.ReadFile(mapPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			info.Err = fmt.Errorf("label map missing")
		} else {
			info.Err = err
		}
		return info
	}
	labels, err := ParseLabelMap(data)
	if err != nil {
		info.Err = err
		return info
	}
	info.Labels = len(labels)
	return info
}

func readHeaderFile(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()
	return ReadHeader(bufio.NewReader(f))
}
