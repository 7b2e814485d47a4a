// Package bean defines how a stateful session bean is captured into a
// Wrapper and rebuilt from one.
//
// Beans declare their persistent state explicitly by implementing Bean:
// MarshalFields writes named values into a FieldWriter, UnmarshalFields
// reads them back from a FieldReader. Values that represent live shared
// state (locks, channels, contexts, concurrent containers) are dropped
// by the writer, so a bean may hand over every field it owns without
// special-casing them.
//
// Field values are encoded with CBOR core deterministic encoding. Equal
// values therefore always produce equal bytes, which is what makes
// Checksum usable for change detection.
package bean
