// ABOUTME: Minimal local secure-element adapter for tooling and tests
// ABOUTME: Deserializes stored wrapped-handle blobs into opaque handle references

package secel

import (
	"encoding/binary"
	"fmt"

	"github.com/2389/tokstore/internal/store"
)

// Local deserializes handle blobs without contacting a sealing backend.
// Serialized handles carry their reference in the first four bytes,
// big-endian; the remainder is backend-private state the store never
// inspects. Production callers inject their own store.SecureElement.
type Local struct{}

var _ store.SecureElement = Local{}

// DeserializeHandle extracts the handle reference from a stored blob.
func (Local) DeserializeHandle(blob []byte) (store.SealedKeyHandle, error) {
	if len(blob) < 4 {
		return 0, fmt.Errorf("handle blob too short: %d bytes", len(blob))
	}
	return store.SealedKeyHandle(binary.BigEndian.Uint32(blob)), nil
}

// SerializeHandle renders a handle reference into the stored blob form.
// The inverse of DeserializeHandle, used when provisioning primary objects.
func SerializeHandle(h store.SealedKeyHandle) []byte {
	blob := make([]byte, 4)
	binary.BigEndian.PutUint32(blob, uint32(h))
	return blob
}
