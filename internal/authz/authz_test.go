package authz

import (
	"testing"

	"agora/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCanMutate(t *testing.T) {
	tests := []struct {
		name  string
		p     models.Principal
		owner uint
		want  bool
	}{
		{"owner", models.Principal{ID: 1}, 1, true},
		{"stranger", models.Principal{ID: 2}, 1, false},
		{"staff stranger", models.Principal{ID: 2, IsStaff: true}, 1, true},
		{"anonymous", models.Principal{}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanMutate(tt.p, tt.owner))
		})
	}
}

func TestCanViewAnalytics(t *testing.T) {
	assert.True(t, CanViewAnalytics(models.Principal{ID: 3, IsStaff: true}))
	assert.False(t, CanViewAnalytics(models.Principal{ID: 3}))
	assert.False(t, CanViewAnalytics(models.Principal{}))
}
