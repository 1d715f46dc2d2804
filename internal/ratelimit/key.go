package ratelimit

import (
	"strconv"
	"strings"
)

// StateKey builds the Redis key holding a user's rate state.
func StateKey(prefix string, externalID int64) string {
	id := strconv.FormatInt(externalID, 10)
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "u:" + id
	}
	return prefix + ":u:" + id
}
