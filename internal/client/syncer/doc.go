// Package syncer reconciles the local replica with the server.
//
// A Manager handles one entity type: it pushes local changes in batches
// (translating foreign keys to server ids first), pulls server changes since
// the type's checkpoint, resolves conflicts and advances the checkpoint. The
// Orchestrator runs every Manager in priority order so that parents obtain
// server ids before their children push.
//
// Per-entity failures are recorded in the Result and never abort a batch.
// An entity whose parent has no server id yet is deferred, not failed, and
// is picked up again on the next pass.
package syncer
