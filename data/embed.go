package data

import (
	_ "embed"
)

//go:embed initdb/mariadb/001-stepio-records.sql
var InitdbMariaDBTables string

//go:embed initdb/postgres/001-stepio-records.sql
var InitdbPostgresTables string

// InitScript returns the table script for a container database type, or ""
// when there is none.
func InitScript(dbType string) string {
	switch dbType {
	case "mysql", "mariadb":
		return InitdbMariaDBTables
	case "postgres", "postgresql":
		return InitdbPostgresTables
	}
	return ""
}
