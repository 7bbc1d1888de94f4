package browser

import (
	"reflect"
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/courier-cli/api/schemas"
)

// sameQueryOption compares chromedp query options by function identity.
func sameQueryOption(t *testing.T, want, got chromedp.QueryOption) {
	t.Helper()
	assert.Equal(t,
		reflect.ValueOf(want).Pointer(),
		reflect.ValueOf(got).Pointer(),
		"query option mismatch")
}

func TestToQuery(t *testing.T) {
	tests := []struct {
		name     string
		strategy schemas.Strategy
		wantSel  string
		wantBy   chromedp.QueryOption
	}{
		{
			name:     "css passes through",
			strategy: schemas.Strategy{Kind: schemas.KindCSS, Expression: "button.connect"},
			wantSel:  "button.connect",
			wantBy:   chromedp.ByQuery,
		},
		{
			name:     "xpath passes through",
			strategy: schemas.Strategy{Kind: schemas.KindXPath, Expression: "//button[@id='send']"},
			wantSel:  "//button[@id='send']",
			wantBy:   chromedp.BySearch,
		},
		{
			name:     "text compiles to scoped xpath",
			strategy: schemas.Strategy{Kind: schemas.KindText, Expression: "button", TextPattern: "Connect"},
			wantSel:  `//button[contains(normalize-space(.), 'Connect')]`,
			wantBy:   chromedp.BySearch,
		},
		{
			name:     "text without scope matches any tag",
			strategy: schemas.Strategy{Kind: schemas.KindText, TextPattern: "Pending"},
			wantSel:  `//*[contains(normalize-space(.), 'Pending')]`,
			wantBy:   chromedp.BySearch,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sel, by, err := toQuery(tc.strategy)
			require.NoError(t, err)
			assert.Equal(t, tc.wantSel, sel)
			sameQueryOption(t, tc.wantBy, by)
		})
	}
}

func TestToQueryRejectsUnknownKind(t *testing.T) {
	_, _, err := toQuery(schemas.Strategy{Kind: "regex", Expression: ".*"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "regex")
}

func TestXPathLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Connect", "'Connect'"},
		{"O'Brien", `"O'Brien"`},
		{`say "hi"`, `'say "hi"'`},
		{`a'b"c`, `concat('a', "'", 'b"c')`},
		{"", "''"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, xpathLiteral(tc.in), "input %q", tc.in)
	}
}
