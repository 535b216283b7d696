package store

import "context"

// ScriptStore resolves published script revisions for a (workspace,
// path) — the lookup Push needs when a caller submits a ScriptHash job
// without pinning a hash explicitly.
type ScriptStore interface {
	// LatestHash returns the most recently published hash for
	// (workspaceID, path), or domain.ErrScriptNotFound if none exists.
	LatestHash(ctx context.Context, db DBTX, workspaceID, path string) (string, error)
}
