package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsByCode(t *testing.T) {
	err := NotFound("Business not found")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrAlreadyExists))
	assert.Equal(t, "Business not found", err.Error())

	wrapped := fmt.Errorf("lookup: %w", err)
	assert.ErrorIs(t, wrapped, ErrNotFound)

	var de *DomainError
	assert.True(t, errors.As(wrapped, &de))
	assert.Equal(t, "NOT_FOUND", de.Code)
}

func TestNewBaseEntity(t *testing.T) {
	e := NewBaseEntity()
	created := e.CreatedAt

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, e.CreatedAt, e.UpdatedAt)

	e.Touch()
	assert.False(t, e.UpdatedAt.Before(created))
}
