package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type keyParams struct {
	Query string `json:"query"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}

func TestQueryKeyDeterministic(t *testing.T) {
	params := keyParams{Query: "laptop", Page: 2, Limit: 10}

	first := QueryKey("products:list", params)
	second := QueryKey("products:list", params)

	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(first, "products:list:"))
}

func TestQueryKeyVariesWithParams(t *testing.T) {
	base := QueryKey("products:list", keyParams{Query: "laptop", Page: 1, Limit: 10})
	differentPage := QueryKey("products:list", keyParams{Query: "laptop", Page: 2, Limit: 10})
	differentQuery := QueryKey("products:list", keyParams{Query: "phone", Page: 1, Limit: 10})

	assert.NotEqual(t, base, differentPage)
	assert.NotEqual(t, base, differentQuery)
}
