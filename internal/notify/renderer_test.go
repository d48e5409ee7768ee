package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_Render(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)

	subject, body, err := renderer.Render("event_reminder", map[string]any{
		"event_title": "Sam's Wedding",
		"event_date":  time.Date(2026, 6, 8, 15, 0, 0, 0, time.UTC),
		"days_label":  "7 days",
		"host_name":   "Sam",
	})

	require.NoError(t, err)
	assert.Equal(t, "Sam's Wedding is 7 days away", subject)
	assert.Contains(t, body, "Hi Sam,")
	assert.Contains(t, body, "Monday, June 8, 2026")
	assert.Contains(t, body, "7 days from now")
}

func TestRenderer_Render_TitleFunc(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)

	subject, _, err := renderer.Render("welcome", map[string]any{
		"first_name": "ada",
	})

	require.NoError(t, err)
	assert.Equal(t, "Welcome to wishlane, Ada!", subject)
}

func TestRenderer_Render_UnknownTemplate(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)

	_, _, err = renderer.Render("no_such_template", nil)

	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestRenderer_Known(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)

	assert.True(t, renderer.Known("order_confirmation"))
	assert.True(t, renderer.Known("event_reminder"))
	assert.False(t, renderer.Known("order_confirmation.tmpl"))
	assert.False(t, renderer.Known(""))
}

func TestFormatDate(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"time value", time.Date(2026, 12, 25, 10, 0, 0, 0, time.UTC), "Friday, December 25, 2026"},
		{"rfc3339 string", "2026-12-25T10:00:00Z", "Friday, December 25, 2026"},
		{"unparseable string passes through", "next friday", "next friday"},
		{"other type", 42, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatDate(tt.input))
		})
	}
}
