package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var hookSeq atomic.Int64

// AfterQuery runs fn once, right after the next successful query against
// table. fn gets a session on the same connection or transaction as the
// query, so it can change rows between a read and the write that depends on
// it, the way a concurrent writer committing in between would.
func AfterQuery(t testing.TB, db *gorm.DB, table string, fn func(tx *gorm.DB)) {
	t.Helper()
	var fired atomic.Bool
	name := fmt.Sprintf("testutil:after_query_%d", hookSeq.Add(1))
	err := db.Callback().Query().After("gorm:query").Register(name, func(d *gorm.DB) {
		if d.Error != nil || d.Statement.Table != table || !fired.CompareAndSwap(false, true) {
			return
		}
		fn(d.Session(&gorm.Session{NewDB: true}))
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Callback().Query().Remove(name) })
}
