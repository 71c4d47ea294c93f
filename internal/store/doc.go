// Package store is the persistent store of the token provider, mapping the
// token/object model onto a transactional SQLite schema.
//
// # Architecture
//
// Opening a store runs a fixed sequence:
//
//	locate -> connect -> lock -> backup -> migrate -> install schema
//
// The locator probes four directories in priority order (configured
// override, per-user default, working directory, system directory). The
// backup/migration section is serialized across processes by a blocking
// advisory lock on a <store>.lock sidecar, and a <store>.bak snapshot is
// taken before any migration runs; the snapshot is deleted only after the
// whole setup succeeds.
//
// # Data Model
//
// Five tables:
//
//   - tokens: one row per provisioned slot, unique label, config blob
//   - pobjects: wrapping key objects tokens reference by pid
//   - sealobjects: per-token SO and user auth triples
//   - tobjects: stored key/data objects with an attribute-set text column
//   - schema: single row recording the installed schema generation
//
// Two triggers cap the store at 255 tokens and 16777215 token objects.
// Foreign keys cascade deletes from tokens to seal and token objects.
//
// # Concurrency
//
// One shared connection, no internal workers. Ordinary CRUD relies on the
// engine's single-writer transaction semantics; only the setup sequence is
// protected across processes. Every multi-statement operation runs inside
// one transaction, so no partial write is observable.
//
// # Collaborators
//
// Sealing and handle (de)serialization live behind SecureElement, and the
// textual encodings of attribute sets and token config behind
// AttributeCodec/ConfigCodec. Default YAML codecs are in internal/codec.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: no usable store location
//   - ErrConstraint: uniqueness or ceiling violation
//   - ErrTooManyRows: token table over the configured maximum
//
// Everything else wraps the underlying engine error and aborts only the
// current operation; prior commits stay intact.
package store
