package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/hyperjump/recall/internal/errs"
	"github.com/hyperjump/recall/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildIndex(t *testing.T, kind vector.Kind, vecs [][]float32) vector.Index {
	t.Helper()
	idx, err := vector.New(kind, len(vecs[0]))
	require.NoError(t, err)
	labels := make([]uint64, len(vecs))
	for i := range labels {
		labels[i] = uint64(i)
	}
	require.NoError(t, idx.Add(context.Background(), labels, vecs))
	return idx
}

func record(text string) json.RawMessage {
	b, _ := json.Marshal(map[string]string{"sourceFile": "diary.txt", "text": text})
	return b
}

var fiveVectors = [][]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 1, 1}}

func TestEncodeName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"diary", "ZGlhcnk"},
		{"日记", "5pel6K6w"},
		{"a/b?", "YS9iPw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeName(tt.name)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "/")
			assert.NotContains(t, got, "=")
			back, err := DecodeName(got)
			require.NoError(t, err)
			assert.Equal(t, tt.name, back)
		})
	}
}

func TestPaths(t *testing.T) {
	a, m := Paths("/store", "diary")
	assert.Equal(t, filepath.Join("/store", "ZGlhcnk.bin"), a)
	assert.Equal(t, filepath.Join("/store", "ZGlhcnk_map.json"), m)
}

func TestArtifactRoundTrip(t *testing.T) {
	for _, kind := range []vector.Kind{vector.KindHNSW, vector.KindFlat} {
		for _, compress := range []bool{false, true} {
			t.Run(fmt.Sprintf("%s/compress=%v", kind, compress), func(t *testing.T) {
				idx := buildIndex(t, kind, fiveVectors)
				var buf bytes.Buffer
				require.NoError(t, EncodeArtifact(&buf, idx, compress))

				h, got, err := DecodeArtifact(bytes.NewReader(buf.Bytes()))
				require.NoError(t, err)
				assert.Equal(t, kind, h.Kind)
				assert.Equal(t, compress, h.Compressed())
				assert.EqualValues(t, 3, h.Dims)
				assert.EqualValues(t, 5, h.Count)
				assert.Equal(t, 5, got.Len())

				ns, err := got.Search(context.Background(), []float32{0, 1, 0}, 1)
				require.NoError(t, err)
				require.NotEmpty(t, ns)
				vector.SortNeighbors(ns)
				assert.EqualValues(t, 2, ns[0].Label)
				assert.Zero(t, ns[0].Distance)
			})
		}
	}
}

func TestArtifactEmptyIndex(t *testing.T) {
	idx, err := vector.NewHNSWIndex(4)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, EncodeArtifact(&buf, idx, true))
	assert.Equal(t, headerSize, buf.Len())

	h, got, err := DecodeArtifact(&buf)
	require.NoError(t, err)
	assert.Zero(t, h.Count)
	assert.Zero(t, got.Len())
}

func TestDecodeArtifactRejects(t *testing.T) {
	idx := buildIndex(t, vector.KindFlat, fiveVectors)
	var buf bytes.Buffer
	require.NoError(t, EncodeArtifact(&buf, idx, false))
	good := buf.Bytes()

	mutate := func(f func(b []byte) []byte) []byte {
		b := append([]byte(nil), good...)
		return f(b)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", good[:7]},
		{"bad magic", mutate(func(b []byte) []byte { b[0] = 'X'; return b })},
		{"bad version", mutate(func(b []byte) []byte { b[4] = 9; return b })},
		{"bad kind", mutate(func(b []byte) []byte { b[6] = 42; return b })},
		{"unknown flag", mutate(func(b []byte) []byte { b[7] = 0x80; return b })},
		{"zero dims", mutate(func(b []byte) []byte { copy(b[8:12], []byte{0, 0, 0, 0}); return b })},
		{"count mismatch", mutate(func(b []byte) []byte { b[12] = 9; return b })},
		{"truncated payload", good[:len(good)-3]},
		{"not zstd", mutate(func(b []byte) []byte { b[7] = flagZstd; return b })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeArtifact(bytes.NewReader(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestDecodeArtifactBadMagicSentinel(t *testing.T) {
	_, _, err := DecodeArtifact(bytes.NewReader([]byte("JUNKJUNKJUNKJUNK")))
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestDecodeArtifactGarbageHNSWPayload(t *testing.T) {
	h := Header{Version: artifactVersion, Kind: vector.KindHNSW, Dims: 3, Count: 2}
	data := append(h.marshal(), 0xde, 0xad, 0xbe, 0xef, 0x01)
	_, _, err := DecodeArtifact(bytes.NewReader(data))
	assert.Error(t, err)
}

func TestParseLabelMap(t *testing.T) {
	m, err := ParseLabelMap([]byte(`{"0":{"text":"a"},"1":"plain","2":null}`))
	require.NoError(t, err)

	rec, ok := m.Lookup(0)
	assert.True(t, ok)
	assert.JSONEq(t, `{"text":"a"}`, string(rec))

	_, ok = m.Lookup(1)
	assert.False(t, ok, "string record should count as missing")
	_, ok = m.Lookup(2)
	assert.False(t, ok, "null record should count as missing")
	_, ok = m.Lookup(7)
	assert.False(t, ok)

	for _, bad := range []string{`[]`, `null`, `"x"`, `{`, ``} {
		_, err := ParseLabelMap([]byte(bad))
		assert.Error(t, err, "input %q", bad)
	}
}

func TestOpen(t *testing.T) {
	root := t.TempDir()
	labels := LabelMap{}
	for i := range fiveVectors {
		labels[strconv.Itoa(i)] = record("entry")
	}
	require.NoError(t, WriteCollection(root, "diary", buildIndex(t, vector.KindHNSW, fiveVectors), labels))

	col, err := Open(root, "diary", 3)
	require.NoError(t, err)
	assert.Equal(t, "diary", col.Name)
	assert.Equal(t, 5, col.Index.Len())
	assert.Len(t, col.Labels, 5)
}

func TestOpenNotFound(t *testing.T) {
	root := t.TempDir()

	_, err := Open(root, "nobody", 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	// Artifact present, map absent.
	require.NoError(t, WriteCollection(root, "half", buildIndex(t, vector.KindFlat, fiveVectors), LabelMap{}))
	_, mapPath := Paths(root, "half")
	require.NoError(t, os.Remove(mapPath))
	_, err = Open(root, "half", 3)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestOpenCorrupt(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, WriteCollection(root, "diary", buildIndex(t, vector.KindFlat, fiveVectors), LabelMap{"0": record("a")}))
	artifactPath, mapPath := Paths(root, "diary")

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := Open(root, "diary", 4)
		assert.ErrorIs(t, err, errs.ErrCorrupt)
		assert.Equal(t, errs.KindCorrupt, errs.KindOf(err))
	})

	t.Run("label map not an object", func(t *testing.T) {
		require.NoError(t, os.WriteFile(mapPath, []byte(`[1,2]`), 0644))
		_, err := Open(root, "diary", 3)
		assert.ErrorIs(t, err, errs.ErrCorrupt)
	})

	t.Run("header dims disagree with graph", func(t *testing.T) {
		var buf bytes.Buffer
		narrow := buildIndex(t, vector.KindHNSW, [][]float32{{0, 0}, {1, 0}, {0, 1}})
		require.NoError(t, EncodeArtifact(&buf, narrow, false))
		data := buf.Bytes()
		binary.LittleEndian.PutUint32(data[8:12], 3)
		require.NoError(t, os.WriteFile(artifactPath, data, 0644))
		require.NoError(t, os.WriteFile(mapPath, []byte(`{}`), 0644))

		_, err := Open(root, "diary", 3)
		assert.ErrorIs(t, err, errs.ErrCorrupt)
		assert.Equal(t, errs.KindCorrupt, errs.KindOf(err))
	})

	t.Run("garbage artifact", func(t *testing.T) {
		require.NoError(t, os.WriteFile(mapPath, []byte(`{}`), 0644))
		require.NoError(t, os.WriteFile(artifactPath, []byte("garbage"), 0644))
		_, err := Open(root, "diary", 3)
		assert.ErrorIs(t, err, errs.ErrCorrupt)
	})
}

func TestWriteCollectionReplaces(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, WriteCollection(root, "diary", buildIndex(t, vector.KindFlat, fiveVectors), nil))
	require.NoError(t, WriteCollection(root, "diary", buildIndex(t, vector.KindFlat, fiveVectors[:2]), nil, WithCompression(true)))

	col, err := Open(root, "diary", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, col.Index.Len())
	assert.True(t, col.Header.Compressed())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temporary files must not be left behind")
}

func TestList(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, WriteCollection(root, "zeta", buildIndex(t, vector.KindFlat, fiveVectors), LabelMap{"0": record("a")}))
	require.NoError(t, WriteCollection(root, "alpha", buildIndex(t, vector.KindHNSW, fiveVectors[:3]), LabelMap{}))
	require.NoError(t, WriteCollection(root, "broken", buildIndex(t, vector.KindFlat, fiveVectors), LabelMap{}))
	_, brokenMap := Paths(root, "broken")
	require.NoError(t, os.Remove(brokenMap))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644))

	infos, err := List(root)
	require.NoError(t, err)
	require.Len(t, infos, 3)

	assert.Equal(t, "alpha", infos[0].Name)
	assert.Equal(t, vector.KindHNSW, infos[0].Kind)
	assert.Equal(t, 3, infos[0].Count)
	assert.NoError(t, infos[0].Err)

	assert.Equal(t, "broken", infos[1].Name)
	assert.Error(t, infos[1].Err)
	assert.Equal(t, 5, infos[1].Count)

	assert.Equal(t, "zeta", infos[2].Name)
	assert.Equal(t, 3, infos[2].Dims)
	assert.Equal(t, 1, infos[2].Labels)
	assert.Positive(t, infos[2].Bytes)
}

func TestListMissingRoot(t *testing.T) {
	infos, err := List(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, infos)
}
