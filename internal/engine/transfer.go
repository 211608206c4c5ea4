package engine

import (
	"context"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
)

const (
	ImportOverwrite = "overwrite"
	ImportMerge     = "merge"
)

// Export returns a complete snapshot of the store. Admin only.
func (e *Engine) Export(ctx context.Context, caller bookstore.Identity) (bookstore.Snapshot, error) {
	var snap bookstore.Snapshot
	err := e.store.View(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		if err := requireAdmin(ctx, tx, caller); err != nil {
			return err
		}
		var err error
		snap, err = tx.Snapshot(ctx)
		return translate(err, "export snapshot")
	})
	return snap, err
}

// Import replaces every collection with snap. Only structural shape is
// checked; this is the disaster recovery and draft promotion path.
func (e *Engine) Import(ctx context.Context, caller bookstore.Identity, snap bookstore.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	err := e.store.InTx(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		if err := requireAdmin(ctx, tx, caller); err != nil {
			return err
		}
		return translate(tx.Restore(ctx, snap), "restore snapshot")
	})
	if err != nil {
		return err
	}
	e.imported(ctx, caller, ImportOverwrite, snap)
	return nil
}

// Merge applies incoming over the current store with last-write-wins per
// key, as one transaction.
func (e *Engine) Merge(ctx context.Context, caller bookstore.Identity, incoming bookstore.Snapshot) error {
	if err := incoming.Validate(); err != nil {
		return err
	}
	var merged bookstore.Snapshot
	err := e.store.InTx(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		if err := requireAdmin(ctx, tx, caller); err != nil {
			return err
		}
		current, err := tx.Snapshot(ctx)
		if err != nil {
			return translate(err, "export snapshot")
		}
		merged = bookstore.MergeSnapshots(current, incoming)
		return translate(tx.Restore(ctx, merged), "restore snapshot")
	})
	if err != nil {
		return err
	}
	e.imported(ctx, caller, ImportMerge, merged)
	return nil
}

func (e *Engine) imported(ctx context.Context, caller bookstore.Identity, mode string, snap bookstore.Snapshot) {
	e.metrics.ObserveImport(mode)
	e.logger.InfoContext(ctx, "catalog imported", "by", caller, "mode", mode,
		"books", len(snap.Books), "orders", len(snap.Orders))
	e.publish(ctx, bookstore.TopicCatalog, bookstore.EventCatalogImported, mode, bookstore.CatalogImportedPayload{
		Mode:   mode,
		By:     caller,
		Books:  len(snap.Books),
		Orders: len(snap.Orders),
	})
}

// ResetStore wipes every collection. Role assignments and the designated
// owner survive so the store stays administrable.
func (e *Engine) ResetStore(ctx context.Context, caller bookstore.Identity) error {
	err := e.store.InTx(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		if err := requireAdmin(ctx, tx, caller); err != nil {
			return err
		}
		current, err := tx.Snapshot(ctx)
		if err != nil {
			return translate(err, "export snapshot")
		}
		return translate(tx.Restore(ctx, bookstore.Snapshot{
			Roles:    current.Roles,
			Settings: bookstore.Settings{NextMessageID: 1, DesignatedOwner: current.Settings.DesignatedOwner},
		}), "reset store")
	})
	if err != nil {
		return err
	}
	e.logger.WarnContext(ctx, "store reset", "by", caller)
	e.publish(ctx, bookstore.TopicCatalog, bookstore.EventStoreReset, "reset", bookstore.StoreResetPayload{By: caller})
	return nil
}
