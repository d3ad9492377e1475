// Package reconcile decides how an upload relates to existing field-slip
// linkages in the external catalog.
//
// A field slip code may already point at an observation. The reconciler
// looks that linkage up, compares the existing observation with the record
// being uploaded, and returns one of three decisions: create the linkage,
// link silently, or ask the reviewer to confirm. It never mutates the
// external system. The comparison rules live behind the Policy interface so
// a stricter one-to-one rule can replace the default permissive heuristics.
package reconcile
