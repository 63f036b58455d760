package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name     string
		tpl      string
		fields   map[string]string
		expected string
	}{
		{
			name:     "all placeholders filled",
			tpl:      "Hi {first_name}, see you in {city}!",
			fields:   map[string]string{"first_name": "Ada", "city": "London"},
			expected: "Hi Ada, see you in London!",
		},
		{
			name:     "missing field renders empty",
			tpl:      "Hi {first_name}, review us: {review_link}",
			fields:   map[string]string{"first_name": "Ada"},
			expected: "Hi Ada, review us: ",
		},
		{
			name:     "no placeholders",
			tpl:      "Plain message.",
			fields:   map[string]string{"first_name": "Ada"},
			expected: "Plain message.",
		},
		{
			name:     "nil fields",
			tpl:      "Hi {first_name}",
			fields:   nil,
			expected: "Hi ",
		},
		{
			name:     "repeated placeholder",
			tpl:      "{city} {city}",
			fields:   map[string]string{"city": "Leeds"},
			expected: "Leeds Leeds",
		},
		{
			name:     "uppercase braces left alone",
			tpl:      "{NAME} is not a placeholder",
			fields:   map[string]string{"name": "Ada"},
			expected: "{NAME} is not a placeholder",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RenderTemplate(tt.tpl, tt.fields))
		})
	}
}
