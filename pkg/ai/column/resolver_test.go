package column

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		search  string
		columns []string
		want    string
		ok      bool
	}{
		{"exact beats earlier fuzzy", "Revenue", []string{"rev", "Revenue", "Revenue Growth"}, "Revenue", true},
		{"normalized exact", "unit price", []string{"Unit_Price", "Price"}, "Unit_Price", true},
		{"prefix", "cust", []string{"Region", "Customer Count"}, "Customer Count", true},
		{"prefix needs three chars", "cu", []string{"Customer Count"}, "", false},
		{"substring", "count", []string{"Region", "Customer Count"}, "Customer Count", true},
		{"whole words any order", "spend marketing", []string{"Marketing Spend (USD)", "Spend"}, "Marketing Spend (USD)", true},
		{"reverse containment", "total sales amount", []string{"Region", "Sales"}, "Sales", true},
		{"reverse needs three chars", "the id value", []string{"id"}, "", false},
		{"empty search", "  ", []string{"A"}, "", false},
		{"no match", "weather", []string{"Revenue", "Cost"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(tt.search, tt.columns)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMentioned_PrefersLongerNames(t *testing.T) {
	got := Mentioned("How does revenue growth relate to cost?", []string{"Revenue", "Revenue Growth", "Cost"})
	assert.Equal(t, []string{"Revenue Growth", "Cost"}, got)
}

func TestSuggest(t *testing.T) {
	cols := []string{"Revenue", "Revenue Growth", "Region", "Cost"}

	got := Suggest("revnue", cols, 3)
	assert.NotEmpty(t, got)
	assert.Contains(t, got, "Revenue")

	fallback := Suggest("zzz", cols, 2)
	assert.Equal(t, []string{"Revenue", "Revenue Growth"}, fallback)
}

func TestResolve_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	columnsGen := gen.SliceOfN(5, gen.AlphaString())

	properties.Property("result is always one of the columns", prop.ForAll(
		func(search string, cols []string) bool {
			got, ok := Resolve(search, cols)
			if !ok {
				return got == ""
			}
			for _, c := range cols {
				if c == got {
					return true
				}
			}
			return false
		},
		gen.AlphaString(),
		columnsGen,
	))

	properties.Property("normalized exact match wins regardless of position", prop.ForAll(
		func(name string, cols []string) bool {
			if Normalize(name) == "" {
				return true
			}
			candidates := make([]string, 0, len(cols)+1)
			for _, c := range cols {
				if Normalize(c) != Normalize(name) {
					candidates = append(candidates, c+name)
				}
			}
			candidates = append(candidates, name)
			got, ok := Resolve(name, candidates)
			return ok && got == name
		},
		gen.AlphaString(),
		columnsGen,
	))

	properties.TestingRun(t)
}
