package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetIDPrefersExplicitInstance(t *testing.T) {
	t.Setenv("STOREFRONT_INSTANCE_ID", "api-7")
	t.Setenv("DYNO", "web.1")
	assert.Equal(t, "api-7", GetID())
}

func TestGetIDFallsBack(t *testing.T) {
	t.Setenv("STOREFRONT_INSTANCE_ID", "")
	t.Setenv("DYNO", "web.2")
	assert.Equal(t, "web.2", GetID())
}
