//go:build cgo_sqlite

package main

import (
	_ "github.com/mattn/go-sqlite3"
)

// sqliteDriver is the database/sql driver name used to open the model store.
const sqliteDriver = "sqlite3"
