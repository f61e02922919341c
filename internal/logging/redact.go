package logging

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/crestline-eng/intaked/internal/config"
)

// Secret creates a zap field for a config.Secret that records only the
// value's length.
func Secret(key string, val config.Secret) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val.Value()))+"]")
}

// RedactedString creates a zap field with a redacted value and its length.
func RedactedString(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}
