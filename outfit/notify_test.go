package outfit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotificationFor(t *testing.T) {
	assert.Equal(t, MessageGenerated, NotificationFor(Outcome{}).Message)
	assert.Equal(t, MessageGeneratedCached, NotificationFor(Outcome{FromCache: true}).Message)

	cases := map[string]string{
		"Error 503: model overloaded":       "overloaded",
		"RESOURCE_EXHAUSTED: quota":         "Too many requests",
		"unauthorized":                      "sign in",
		"no clothes found in your wardrobe": "wardrobe is empty",
		"connection refused":                "Connection problem",
		"the stylist had a bad day":         "the stylist had a bad day",
	}
	for raw, want := range cases {
		n := NotificationFor(Outcome{Err: errors.New(raw)})
		assert.Equal(t, LevelError, n.Level)
		assert.Contains(t, n.Message, want, raw)
	}

	n := NotificationFor(Outcome{Err: &ValidationError{Field: "prompt", Reason: "prompt is required"}})
	assert.Contains(t, n.Message, "prompt is required")
}
