// ABOUTME: Entity model for the token store: tokens, primary/seal/token objects
// ABOUTME: Defines the collaborator interfaces (secure element, attribute and config codecs)

package store

import (
	"fmt"
	"strings"
)

// MaxTokenCount is the store-wide ceiling on token rows, enforced both in
// LoadTokens and by a database trigger.
const MaxTokenCount = 255

// MaxTokenObjectCount is the store-wide ceiling on token-object rows,
// enforced by a database trigger.
const MaxTokenObjectCount = 16777215

// AttrType identifies an attribute in a token object's attribute set.
type AttrType uint64

// Vendor attribute types carried inside a token object's attribute set.
// The store derives the object's auth/public/private blobs from these after
// decoding the attrs column.
const (
	attrVendorBase AttrType = 0x80000000

	// AttrObjAuthEnc holds the object's authorization secret, encrypted
	// under the token's wrapping key.
	AttrObjAuthEnc = attrVendorBase | 0x100

	// AttrPubBlob and AttrPrivBlob hold the sealed key material.
	AttrPubBlob  = attrVendorBase | 0x101
	AttrPrivBlob = attrVendorBase | 0x102
)

// AttributeSet maps attribute types to raw values. Keys are unique and
// order is irrelevant.
type AttributeSet map[AttrType][]byte

// Get returns the value for typ, or nil if absent.
func (a AttributeSet) Get(typ AttrType) []byte {
	return a[typ]
}

// SealedKeyHandle is an opaque reference into the secure element, produced
// by deserializing a stored wrapped-handle blob.
type SealedKeyHandle uint32

// SecureElement abstracts the sealing backend. The store only needs it to
// turn persisted handle blobs back into live references; all sealing and
// unsealing happens outside the store.
type SecureElement interface {
	DeserializeHandle(blob []byte) (SealedKeyHandle, error)
}

// AttributeCodec translates attribute sets to and from their textual
// storage form (the tobjects.attrs column).
type AttributeCodec interface {
	EncodeAttributes(attrs AttributeSet) (string, error)
	DecodeAttributes(text string) (AttributeSet, error)
}

// ConfigCodec translates token configuration to and from its textual
// storage form (the tokens.config column).
type ConfigCodec interface {
	EncodeConfig(cfg TokenConfig) (string, error)
	DecodeConfig(text string) (TokenConfig, error)
}

// TokenConfig is the per-token configuration blob.
type TokenConfig struct {
	Initialized bool `yaml:"is-initialized"`
}

// Token is one logical security-token slot. An uninitialized token has no
// persisted seal object or token objects; initialization is one-way.
type Token struct {
	ID     uint
	PID    uint
	Label  string
	Config TokenConfig

	Primary     PrimaryObject
	Seal        SealObject
	Objects     []*TokenObject
	Placeholder bool // synthesized free slot, not persisted
}

// PrimaryObject is the wrapping key object a token's secrets are sealed
// under. Tokens reference it by id; it is owned independently.
type PrimaryObject struct {
	ID        uint
	Hierarchy string
	Handle    SealedKeyHandle
	ObjAuth   string
}

// SealObject is the pair of sealed blobs protecting a token's internal
// secret. The SO triple is always present once the token is initialized;
// the user triple only after a user PIN has been set.
type SealObject struct {
	ID    uint
	TokID uint

	UserPub      []byte
	UserPriv     []byte
	UserAuthSalt string

	SOPub      []byte
	SOPriv     []byte
	SOAuthSalt string
}

// TokenObject is a stored key/data object with its attribute set. ObjAuth,
// Pub and Priv are views derived from the attribute set on load.
type TokenObject struct {
	ID    uint
	TokID uint
	Attrs AttributeSet

	ObjAuth []byte
	Pub     []byte
	Priv    []byte
}

// hydrateBlobs populates the derived blob views from the attribute set.
// An object carrying a private blob must also carry a public one.
func (o *TokenObject) hydrateBlobs() error {
	o.ObjAuth = o.Attrs.Get(AttrObjAuthEnc)
	o.Pub = o.Attrs.Get(AttrPubBlob)
	o.Priv = o.Attrs.Get(AttrPrivBlob)

	if len(o.Priv) > 0 && len(o.Pub) == 0 {
		return fmt.Errorf("token object %d has a private blob without a public blob", o.ID)
	}
	return nil
}

// trimLabel strips the right-hand space padding a fixed-width token label
// carries in memory.
func trimLabel(label string) string {
	return strings.TrimRight(label, " ")
}
