// Package simplepublish provides a reusable library for versioned content
// publishing with a pluggable repository backend.
//
// Every content unit carries two representations: an editable draft and the
// content last made live. Publishing copies the draft into the published slot,
// bumps the unit's version by exactly one, captures an immutable version
// snapshot, and appends an audit entry, all as a single atomic group.
// Restoring copies a historical snapshot back into the draft slot without
// touching what is live. Sibling units can be reordered in one all-or-nothing
// batch.
//
// The package exposes a single Service interface constructed from functional
// options. Repository implementations (memory, Postgres) live under
// subpackages; per-kind content validation is supplied at construction time
// via the ContentValidator interface (see the schema subpackage for the
// default rules). Authentication and authorization happen upstream: the
// engine only records the opaque actor string it is handed.
package simplepublish
