package database

import "agora/internal/models"

// PersistentModels lists the schema-managed models, referenced tables first
// so AutoMigrate can create foreign keys.
func PersistentModels() []any {
	return []any{&models.User{}, &models.Post{}, &models.Comment{}}
}
