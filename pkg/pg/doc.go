// Package pg bootstraps PostgreSQL access on pgx/v5: a retrying pool
// constructor, goose migrations from an fs.FS, a health probe and helpers that
// classify driver errors.
//
//	var cfg pg.Config // populated by config.Load
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, migrations.FS, cfg, log); err != nil {
//	    return err
//	}
//
// Stores accept DBTX rather than a concrete pool so they can run inside WithTx.
package pg
