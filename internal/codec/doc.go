// Package codec provides the default YAML encodings for the two textual
// columns of the store: token configuration and token-object attribute
// sets. Attribute sets are stored as a mapping of numeric attribute type to
// hex-encoded value. Callers with different storage conventions inject
// their own store.AttributeCodec/store.ConfigCodec instead.
package codec
