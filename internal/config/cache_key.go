package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// TestMetaKey returns the cache key for a test's metadata (time limit, question count).
func (r *CacheKeyStruct) TestMetaKey(testID string) string {
	return fmt.Sprintf("test:%s:meta", testID)
}

// AttemptAnswersKey returns the hash holding a participant's autosaved answers for one module.
func (r *CacheKeyStruct) AttemptAnswersKey(sessionID, testID string, participantID int) string {
	return fmt.Sprintf("participant:%d:session:%s:test:%s:answers", participantID, sessionID, testID)
}

var CacheKey = NewCacheKeyStruct()
