package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{APIKey: "k"}
	cfg.applyDefaults()

	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, float64(1), cfg.RequestsPerSecond)
	assert.Equal(t, 1, cfg.Burst)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 5*time.Minute, cfg.CallTimeout)
	assert.NotNil(t, cfg.Logger)
}

func TestConfigDefaultsPreserveExplicitValues(t *testing.T) {
	cfg := Config{
		APIKey:            "k",
		Model:             "gemini-2.5-pro",
		RequestsPerSecond: 4,
		Burst:             2,
		MaxRetries:        1,
		CallTimeout:       time.Minute,
	}
	cfg.applyDefaults()

	assert.Equal(t, "gemini-2.5-pro", cfg.Model)
	assert.Equal(t, float64(4), cfg.RequestsPerSecond)
	assert.Equal(t, 2, cfg.Burst)
	assert.Equal(t, 1, cfg.MaxRetries)
	assert.Equal(t, time.Minute, cfg.CallTimeout)
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}

func TestRetryBackoffGrowsLinearly(t *testing.T) {
	assert.Equal(t, 2*time.Second, retryBackoff(0))
	assert.Equal(t, 4*time.Second, retryBackoff(1))
	assert.Equal(t, 6*time.Second, retryBackoff(2))
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"a":1}`, `{"a":1}`},
		{"fenced", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced with language", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  {\"a\":1}\n", `{"a":1}`},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripCodeFence(tt.in))
		})
	}
}

func TestResponseTextNilSafe(t *testing.T) {
	assert.Equal(t, "", responseText(nil))
}
