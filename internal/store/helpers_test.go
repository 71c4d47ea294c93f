// ABOUTME: Shared fixtures for store tests: temp stores and fake collaborators
// ABOUTME: Fake secure element and codecs keep the tests free of sealing backends

package store

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

// fakeSecel resolves handle blobs to their leading four bytes.
type fakeSecel struct{}

func (fakeSecel) DeserializeHandle(blob []byte) (SealedKeyHandle, error) {
	if len(blob) < 4 {
		return 0, fmt.Errorf("handle blob too short: %d bytes", len(blob))
	}
	return SealedKeyHandle(binary.BigEndian.Uint32(blob)), nil
}

func handleBlob(h uint32) []byte {
	blob := make([]byte, 8)
	binary.BigEndian.PutUint32(blob, h)
	return blob
}

// fakeCodec mirrors the production YAML encodings closely enough for
// roundtrips and for hand-built fixture rows.
type fakeCodec struct{}

func (fakeCodec) EncodeAttributes(attrs AttributeSet) (string, error) {
	m := make(map[uint64]string, len(attrs))
	for typ, val := range attrs {
		m[uint64(typ)] = hex.EncodeToString(val)
	}
	out, err := yaml.Marshal(m)
	return string(out), err
}

func (fakeCodec) DecodeAttributes(text string) (AttributeSet, error) {
	var m map[uint64]string
	if err := yaml.Unmarshal([]byte(text), &m); err != nil {
		return nil, err
	}
	attrs := make(AttributeSet, len(m))
	for typ, hexval := range m {
		val, err := hex.DecodeString(hexval)
		if err != nil {
			return nil, err
		}
		attrs[AttrType(typ)] = val
	}
	return attrs, nil
}

func (fakeCodec) EncodeConfig(cfg TokenConfig) (string, error) {
	out, err := yaml.Marshal(cfg)
	return string(out), err
}

func (fakeCodec) DecodeConfig(text string) (TokenConfig, error) {
	var cfg TokenConfig
	err := yaml.Unmarshal([]byte(text), &cfg)
	return cfg, err
}

func testOptions() Options {
	return Options{
		SecureElement:  fakeSecel{},
		AttributeCodec: fakeCodec{},
		ConfigCodec:    fakeCodec{},
		Logger:         slog.Default(),
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), StoreFileName)
	s, err := OpenAt(path, testOptions())
	if err != nil {
		t.Fatalf("OpenAt failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
