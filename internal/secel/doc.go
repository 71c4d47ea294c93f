// Package secel provides a minimal local implementation of the store's
// secure-element interface, used by the admin tooling. It only understands
// the serialized handle blob layout; sealing and unsealing stay with the
// real backend.
package secel
