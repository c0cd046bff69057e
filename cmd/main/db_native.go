//go:build !cgo_sqlite

package main

import (
	_ "modernc.org/sqlite"
)

// sqliteDriver is the database/sql driver name used to open the model store.
const sqliteDriver = "sqlite"
