package cache

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// QueryKey builds a deterministic cache key for a list/search query from its
// full parameter set. encoding/json writes struct fields in declaration
// order and map keys sorted, so equal parameter sets always digest to the
// same key regardless of how the caller assembled them.
func QueryKey(prefix string, params interface{}) string {
	data, err := json.Marshal(params)
	if err != nil {
		// Marshal only fails on unsupported types; fall back to an
		// uncacheable-but-valid key rather than erroring the read path.
		return fmt.Sprintf("%s:%p", prefix, &params)
	}
	return fmt.Sprintf("%s:%016x", prefix, xxhash.Sum64(data))
}
