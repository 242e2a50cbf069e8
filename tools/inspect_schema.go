package main

import (
	"fmt"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/localnerve/stepio/internal/database"
)

// Prints the tables and indexes AutoMigrate creates, for comparing against
// the container init scripts in data/initdb.
func main() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		log.Fatal(err)
	}

	if err := database.AutoMigrate(db); err != nil {
		log.Fatal(err)
	}

	var names []string
	db.Raw("SELECT name FROM sqlite_master WHERE type IN ('table', 'index') AND sql IS NOT NULL").Scan(&names)

	for _, name := range names {
		fmt.Printf("\n=== %s ===\n", name)
		var schema string
		db.Raw("SELECT sql FROM sqlite_master WHERE name = ?", name).Scan(&schema)
		fmt.Println(schema)
	}
}
