package migration

import (
	"fmt"

	"gorm.io/gorm"
)

// MissingTables returns the tables of models that db does not have, in model
// order. An empty result means the migrated schema covers every model.
func MissingTables(db *gorm.DB, models ...any) ([]string, error) {
	var missing []string
	for _, model := range models {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return nil, fmt.Errorf("parse model %T: %w", model, err)
		}
		if !db.Migrator().HasTable(stmt.Schema.Table) {
			missing = append(missing, stmt.Schema.Table)
		}
	}
	return missing, nil
}
