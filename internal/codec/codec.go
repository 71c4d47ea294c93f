// ABOUTME: Default YAML codecs for token config and attribute-set storage text
// ABOUTME: Attribute sets encode as a mapping of numeric attribute type to hex value

package codec

import (
	"encoding/hex"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/2389/tokstore/internal/store"
)

// YAML implements both store codec interfaces over yaml.v3. The zero value
// is ready to use.
type YAML struct{}

var (
	_ store.AttributeCodec = YAML{}
	_ store.ConfigCodec    = YAML{}
)

// EncodeAttributes renders an attribute set as a YAML mapping of numeric
// attribute type to hex-encoded value. Keys are unique by construction;
// order is irrelevant on both ends.
func (YAML) EncodeAttributes(attrs store.AttributeSet) (string, error) {
	m := make(map[uint64]string, len(attrs))
	for typ, val := range attrs {
		m[uint64(typ)] = hex.EncodeToString(val)
	}

	out, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encoding attributes: %w", err)
	}
	return string(out), nil
}

// DecodeAttributes parses the stored YAML mapping back into an attribute
// set. Values that are not valid hex reject the whole set.
func (YAML) DecodeAttributes(text string) (store.AttributeSet, error) {
	var m map[uint64]string
	if err := yaml.Unmarshal([]byte(text), &m); err != nil {
		return nil, fmt.Errorf("decoding attributes: %w", err)
	}

	attrs := make(store.AttributeSet, len(m))
	for typ, hexval := range m {
		val, err := hex.DecodeString(hexval)
		if err != nil {
			return nil, fmt.Errorf("decoding attribute %d value: %w", typ, err)
		}
		attrs[store.AttrType(typ)] = val
	}
	return attrs, nil
}

// EncodeConfig renders the token configuration blob.
func (YAML) EncodeConfig(cfg store.TokenConfig) (string, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encoding token config: %w", err)
	}
	return string(out), nil
}

// DecodeConfig parses a stored token configuration blob.
func (YAML) DecodeConfig(text string) (store.TokenConfig, error) {
	var cfg store.TokenConfig
	if err := yaml.Unmarshal([]byte(text), &cfg); err != nil {
		return store.TokenConfig{}, fmt.Errorf("decoding token config: %w", err)
	}
	return cfg, nil
}
