package database

import (
	"testing"

	"agora/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestPersistentModels_ParentsBeforeChildren(t *testing.T) {
	list := PersistentModels()
	assert.Len(t, list, 3)
	assert.IsType(t, &models.User{}, list[0])
	assert.IsType(t, &models.Post{}, list[1])
	assert.IsType(t, &models.Comment{}, list[2])
}
