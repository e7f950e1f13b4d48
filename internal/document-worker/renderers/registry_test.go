package renderers

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetRenderer_RegisteredFormats(t *testing.T) {
	testCases := []struct {
		name         string
		format       string
		expectedType interface{}
		expectError  bool
	}{
		{name: "Text", format: "txt", expectedType: &TextRenderer{}},
		{name: "Docx", format: "docx", expectedType: &DocxRenderer{}},
		{name: "Xlsx", format: "xlsx", expectedType: &XlsxRenderer{}},
		{name: "Unknown", format: "pdf", expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			renderer, err := GetRenderer(tc.format)
			if tc.expectError {
				assert.Nil(t, renderer)
				assert.EqualError(t, err, fmt.Sprintf("no renderer registered for format: %s", tc.format))
				return
			}
			assert.NoError(t, err)
			assert.IsType(t, tc.expectedType, renderer)
		})
	}
}
