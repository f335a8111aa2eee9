// Package storage implements the on-disk index store: one artifact plus one label map per
// collection, keyed by an encoding of the collection name.
package storage

import (
	"encoding/base64"
	"path/filepath"
	"strings"
)

const (
	artifactSuffix = ".bin"
	labelMapSuffix = "_map.json"
)

// EncodeName returns the file-system key for a collection: URL-safe base64 of the UTF-8
// bytes, unpadded. Any Unicode name yields a safe file name.
func EncodeName(collection string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(collection))
}

// DecodeName reverses EncodeName. Only listing needs it; queries never decode.
func DecodeName(key string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(key, "="))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Paths returns the artifact and label map paths for collection under root.
func Paths(root, collection string) (artifactPath, labelMapPath string) {
	key := EncodeName(collection)
	return filepath.Join(root, key+artifactSuffix), filepath.Join(root, key+labelMapSuffix)
}
