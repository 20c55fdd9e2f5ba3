package catalog

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func seedCatalog(t testing.TB) *Catalog {
	t.Helper()
	c, err := Default()
	require.NoError(t, err)
	return c
}

func names(ps []Product) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

func TestDefault_Seed(t *testing.T) {
	c := seedCatalog(t)

	products := c.Products()
	require.Len(t, products, 12)
	assert.Equal(t, 1, products[0].ID)
	assert.Equal(t, "Summer Floral Dress", products[0].Name)
	assert.Equal(t, int64(5999), products[0].PriceCents)
	assert.NotEmpty(t, products[0].Sizes)
	assert.Equal(t, "Dresses", c.CategoryName("dresses"))
	assert.Equal(t, "unknown", c.CategoryName("unknown"))
	assert.Len(t, c.Categories(), 6)
}

func TestSearch(t *testing.T) {
	c := seedCatalog(t)

	tests := []struct {
		query string
		want  []string
	}{
		{"summer dress", []string{"Summer Floral Dress", "Linen Summer Dress"}},
		{"SUMMER   Dress", []string{"Summer Floral Dress", "Linen Summer Dress"}},
		{"silk", []string{"Evening Silk Dress"}},
		{"shoes", []string{"Leather Ankle Boots", "Canvas Sneakers"}},
		{"cashmere", []string{"Wool Blend Coat"}},
		{"tuxedo", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, names(c.Search(tt.query))); diff != "" {
				t.Errorf("Search(%q) mismatch (-want +got):\n%s", tt.query, diff)
			}
		})
	}
}

func TestSearch_EmptyReturnsAll(t *testing.T) {
	c := seedCatalog(t)
	assert.Len(t, c.Search("   "), 12)
}

func TestFilter_CategoryAndPrice(t *testing.T) {
	c := seedCatalog(t)

	got := c.Filter(Query{Categories: []string{"dresses"}, MinPrice: 2000, MaxPrice: 10000})
	assert.Equal(t, []string{"Summer Floral Dress", "Linen Summer Dress", "Denim Shirt Dress"}, names(got))

	got = c.Filter(Query{MinPrice: 20000})
	assert.Equal(t, []string{"Wool Blend Coat"}, names(got))

	got = c.Filter(Query{Categories: []string{"shoes", "accessories"}, MaxPrice: 4000})
	assert.Equal(t, []string{"Canvas Sneakers", "Straw Sun Hat"}, names(got))
}

func TestFilter_ExplicitZeroMax(t *testing.T) {
	c := seedCatalog(t)

	assert.Len(t, c.Filter(Query{MaxPrice: 0}), 12)
	assert.Empty(t, c.Filter(Query{MaxPrice: 0, HasMax: true}))

	q := Query{MinPrice: 100, HasMax: true}
	assert.True(t, q.Bounded())
	assert.True(t, q.Inverted())
	assert.False(t, Query{MinPrice: 100}.Inverted())
}

func TestBySlugAndID(t *testing.T) {
	c := seedCatalog(t)

	p, ok := c.BySlug("wool-blend-coat")
	require.True(t, ok)
	q, ok := c.ByID(p.ID)
	require.True(t, ok)
	assert.Equal(t, p.Slug, q.Slug)

	_, ok = c.BySlug("nope")
	assert.False(t, ok)
	_, ok = c.ByID(0)
	assert.False(t, ok)
	_, ok = c.ByID(13)
	assert.False(t, ok)
}

func TestFormatPrice(t *testing.T) {
	tests := map[int64]string{
		0:         "$0.00",
		5:         "$0.05",
		5999:      "$59.99",
		22900:     "$229.00",
		123456:    "$1,234.56",
		123456789: "$1,234,567.89",
		-1050:     "-$10.50",
	}
	for cents, want := range tests {
		assert.Equal(t, want, FormatPrice(cents), "cents=%d", cents)
	}
}

func TestParseDollars(t *testing.T) {
	got, err := ParseDollars("20")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), got)

	got, err = ParseDollars(" $84.5 ")
	require.NoError(t, err)
	assert.Equal(t, int64(8450), got)

	got, err = ParseDollars("1e15")
	require.NoError(t, err)
	assert.Equal(t, int64(1e17), got)

	for _, bad := range []string{"", "abc", "-1", "NaN", "Inf", "1e17", "92233720368547758", "1e300"} {
		_, err := ParseDollars(bad)
		assert.Error(t, err, bad)
	}
}

func TestRenderMarkdown_Sanitizes(t *testing.T) {
	out := string(RenderMarkdown("**bold** <script>alert(1)</script>\n\n[x](javascript:alert(1))"))
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "javascript:")
}

func TestLoad_Rejects(t *testing.T) {
	tests := map[string]string{
		"unknown category": "categories: [{slug: a, name: A}]\nproducts: [{slug: x, name: X, category: b, price: 1}]",
		"duplicate slug":   "categories: [{slug: a, name: A}]\nproducts: [{slug: x, name: X, category: a, price: 1}, {slug: x, name: Y, category: a, price: 2}]",
		"negative price":   "categories: [{slug: a, name: A}]\nproducts: [{slug: x, name: X, category: a, price: -1}]",
		"empty":            "categories: [{slug: a, name: A}]\nproducts: []",
		"unknown field":    "categories: [{slug: a, name: A, colour: red}]\nproducts: [{slug: x, name: X, category: a, price: 1}]",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func testFilterInvariants(t *rapid.T) {
	c, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	cats := c.Categories()
	var picked []string
	for _, cat := range cats {
		if rapid.Bool().Draw(t, "pick_"+cat.Slug) {
			picked = append(picked, cat.Slug)
		}
	}
	lo := rapid.Int64Range(0, 30000).Draw(t, "min")
	hi := rapid.Int64Range(0, 30000).Draw(t, "max")
	words := []string{"summer", "dress", "silk", "denim", "leather", "cotton", "hat"}
	terms := rapid.SliceOfN(rapid.SampledFrom(words), 0, 2).Draw(t, "terms")

	q := Query{Terms: terms, Categories: picked, MinPrice: lo, MaxPrice: hi}
	got := c.Filter(q)

	for _, p := range got {
		if p.PriceCents < lo || (hi > 0 && p.PriceCents > hi) {
			t.Fatalf("%s price %d outside [%d, %d]", p.Slug, p.PriceCents, lo, hi)
		}
		if len(picked) > 0 && !containsString(picked, p.Category) {
			t.Fatalf("%s category %s not in %v", p.Slug, p.Category, picked)
		}
	}
	// Widening the query never loses results.
	wider := c.Filter(Query{Terms: terms})
	if len(wider) < len(got) {
		t.Fatalf("dropping bounds shrank results: %d < %d", len(wider), len(got))
	}
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

func TestFilter_Properties(t *testing.T) {
	rapid.Check(t, testFilterInvariants)
}

func FuzzFilter_Properties(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testFilterInvariants))
}

func testFormatPriceRoundTrip(t *rapid.T) {
	cents := rapid.Int64Range(0, 1_000_000_000).Draw(t, "cents")
	s := FormatPrice(cents)
	back, err := ParseDollars(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		t.Fatalf("ParseDollars(%q): %v", s, err)
	}
	if back != cents {
		t.Fatalf("FormatPrice(%d) = %q parsed back as %d", cents, s, back)
	}
}

func TestFormatPrice_Properties(t *testing.T) {
	rapid.Check(t, testFormatPriceRoundTrip)
}
