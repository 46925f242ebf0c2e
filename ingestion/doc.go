// Package ingestion loads the message corpus and its relationship triples
// into storage.
//
// The Pipeline validates incoming records, generates embeddings in batches
// on a worker pool with retry and exponential backoff, and stores the
// messages together with their authors. Triples are linked to users by
// resolving their subject against the message they came from or the known
// user list.
//
// Reembed refreshes every stored vector after an embedding model change,
// saving a checkpoint after each batch so an interrupted run resumes where it
// stopped.
//
// Records are read from JSON arrays, JSON Lines, or objects wrapping an
// "items" array, in the field layout the member message export uses.
package ingestion
