package config

import (
	"fmt"
	"strconv"
	"strings"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// VariantGradingChannel returns the Redis PubSub channel carrying grading
// status changes for a single variant.
func (r *CacheKeyStruct) VariantGradingChannel(variantID int64) string {
	return fmt.Sprintf("variant:%d:grading", variantID)
}

// VariantGradingPattern matches every VariantGradingChannel.
func (r *CacheKeyStruct) VariantGradingPattern() string {
	return "variant:*:grading"
}

// ParseVariantGradingChannel extracts the variant id from a channel name
// produced by VariantGradingChannel.
func (r *CacheKeyStruct) ParseVariantGradingChannel(channel string) (int64, bool) {
	rest, ok := strings.CutPrefix(channel, "variant:")
	if !ok {
		return 0, false
	}
	idStr, ok := strings.CutSuffix(rest, ":grading")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

var CacheKey = NewCacheKeyStruct()
