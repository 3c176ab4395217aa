package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestPageWindow(t *testing.T) {
	offset, limit := Page{}.Window()
	assert.Equal(t, 0, offset)
	assert.Equal(t, pageSizeDefault, limit)

	offset, limit = Page{Offset: intPtr(30), Limit: intPtr(10)}.Window()
	assert.Equal(t, 30, offset)
	assert.Equal(t, 10, limit)

	// Negative or zero values fall back to the defaults.
	offset, limit = Page{Offset: intPtr(-5), Limit: intPtr(0)}.Window()
	assert.Equal(t, 0, offset)
	assert.Equal(t, pageSizeDefault, limit)

	// Limits are capped.
	_, limit = Page{Limit: intPtr(10000)}.Window()
	assert.Equal(t, pageSizeMax, limit)
}
