package store

import "github.com/carnetapp/carnet/internal/dbx"

// Tx is the handle passed to Transact callbacks. It carries the
// transactional DBTX plus the set of tables the transaction touched, which
// drives observer notification after commit.
type Tx struct {
	dbx.DBTX

	touched map[Table]struct{}
}

// Touch records that the transaction wrote to the given tables. Mutating
// code calls it next to the write itself.
func (t *Tx) Touch(tables ...Table) {
	for _, table := range tables {
		t.touched[table] = struct{}{}
	}
}
