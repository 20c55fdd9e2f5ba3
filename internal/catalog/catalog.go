// Package catalog holds the storefront's products. The catalog is read-only:
// it is loaded once from YAML and queried by the web pages and the JSON API.
package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seed []byte

// Category groups products on the filter page.
type Category struct {
	Slug string `yaml:"slug" json:"slug"`
	Name string `yaml:"name" json:"name"`
}

// Product is one catalog entry. Prices are kept in cents.
type Product struct {
	ID          int
	Slug        string
	Name        string
	Category    string // category slug
	PriceCents  int64
	Color       string
	Sizes       []string
	Description string // markdown
}

// Price returns the display price, e.g. "$59.99".
func (p Product) Price() string { return FormatPrice(p.PriceCents) }

// Dollars returns the price as a decimal amount for JSON.
func (p Product) Dollars() float64 { return float64(p.PriceCents) / 100 }

// DescriptionHTML renders the markdown description.
func (p Product) DescriptionHTML() template.HTML { return RenderMarkdown(p.Description) }

// ImagePath is the product's placeholder image.
func (p Product) ImagePath() string { return fmt.Sprintf("/images/%d.svg", p.ID) }

type seedFile struct {
	Categories []Category `yaml:"categories"`
	Products   []struct {
		Slug        string   `yaml:"slug"`
		Name        string   `yaml:"name"`
		Category    string   `yaml:"category"`
		Price       float64  `yaml:"price"`
		Color       string   `yaml:"color"`
		Sizes       []string `yaml:"sizes"`
		Description string   `yaml:"description"`
	} `yaml:"products"`
}

// Catalog is an immutable product list. Safe for concurrent use.
type Catalog struct {
	categories []Category
	products   []Product
	bySlug     map[string]int
}

// Load parses a YAML catalog. Product ids are assigned in file order
// starting at 1.
func Load(r io.Reader) (*Catalog, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{categories: f.Categories, bySlug: map[string]int{}}
	known := map[string]bool{}
	for _, cat := range f.Categories {
		if cat.Slug == "" || cat.Name == "" {
			return nil, fmt.Errorf("category needs slug and name: %+v", cat)
		}
		known[cat.Slug] = true
	}
	for i, p := range f.Products {
		if p.Slug == "" || p.Name == "" {
			return nil, fmt.Errorf("product %d: slug and name are required", i+1)
		}
		if !known[p.Category] {
			return nil, fmt.Errorf("product %s: unknown category %q", p.Slug, p.Category)
		}
		if p.Price < 0 {
			return nil, fmt.Errorf("product %s: negative price", p.Slug)
		}
		if _, dup := c.bySlug[p.Slug]; dup {
			return nil, fmt.Errorf("product %s: duplicate slug", p.Slug)
		}
		c.bySlug[p.Slug] = len(c.products)
		c.products = append(c.products, Product{
			ID:          i + 1,
			Slug:        p.Slug,
			Name:        p.Name,
			Category:    p.Category,
			PriceCents:  int64(math.Round(p.Price * 100)),
			Color:       p.Color,
			Sizes:       p.Sizes,
			Description: strings.TrimSpace(p.Description),
		})
	}
	if len(c.products) == 0 {
		return nil, fmt.Errorf("catalog has no products")
	}
	return c, nil
}

var defaultCatalog = sync.OnceValues(func() (*Catalog, error) {
	return Load(bytes.NewReader(seed))
})

// Default returns the embedded seed catalog.
func Default() (*Catalog, error) { return defaultCatalog() }

// Products returns every product in catalog order.
func (c *Catalog) Products() []Product { return slices.Clone(c.products) }

// Categories returns the categories in display order.
func (c *Catalog) Categories() []Category { return slices.Clone(c.categories) }

// CategoryName returns the display name for slug, or slug itself.
func (c *Catalog) CategoryName(slug string) string {
	for _, cat := range c.categories {
		if cat.Slug == slug {
			return cat.Name
		}
	}
	return slug
}

// BySlug finds a product by its URL slug.
func (c *Catalog) BySlug(slug string) (Product, bool) {
	i, ok := c.bySlug[slug]
	if !ok {
		return Product{}, false
	}
	return c.products[i], true
}

// ByID finds a product by id.
func (c *Catalog) ByID(id int) (Product, bool) {
	if id < 1 || id > len(c.products) {
		return Product{}, false
	}
	return c.products[id-1], true
}

// Query narrows the product list. Zero fields do not filter; MaxPrice 0
// means no upper bound unless HasMax is set.
type Query struct {
	Terms      []string
	Categories []string
	MinPrice   int64 // cents, inclusive
	MaxPrice   int64 // cents, inclusive
	HasMax     bool
}

// Bounded reports whether MaxPrice applies.
func (q Query) Bounded() bool { return q.HasMax || q.MaxPrice > 0 }

// Inverted reports a price range that can match nothing.
func (q Query) Inverted() bool { return q.Bounded() && q.MinPrice > q.MaxPrice }

// Terms splits a search string into lower-case words.
func Terms(q string) []string {
	return strings.Fields(strings.ToLower(q))
}

// Search returns the products matching every word of q.
func (c *Catalog) Search(q string) []Product {
	return c.Filter(Query{Terms: Terms(q)})
}

// Filter returns the products matching all of q's conditions, in catalog
// order. A product matches a term when its name, category or description
// contains it, ignoring case.
func (c *Catalog) Filter(q Query) []Product {
	out := []Product{}
	for _, p := range c.products {
		if len(q.Categories) > 0 && !slices.Contains(q.Categories, p.Category) {
			continue
		}
		if p.PriceCents < q.MinPrice {
			continue
		}
		if q.Bounded() && p.PriceCents > q.MaxPrice {
			continue
		}
		if !c.matchesAll(p, q.Terms) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (c *Catalog) matchesAll(p Product, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	haystack := strings.ToLower(p.Name + "\n" + c.CategoryName(p.Category) + "\n" + p.Description)
	for _, t := range terms {
		if !strings.Contains(haystack, strings.ToLower(t)) {
			return false
		}
	}
	return true
}

// FormatPrice renders cents as dollars with thousands separators.
func FormatPrice(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%s$%s.%02d", sign, b.String(), cents%100)
}

// ParseDollars reads a price bound such as "20" or "84.5" into cents.
func ParseDollars(s string) (int64, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q", s)
	}
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid price %q", s)
	}
	cents := math.Round(v * 100)
	// float64(math.MaxInt64) is 2^63, the first value that does not fit.
	if cents >= math.MaxInt64 {
		return 0, fmt.Errorf("price %q out of range", s)
	}
	return int64(cents), nil
}

// RenderMarkdown converts markdown to sanitized HTML.
func RenderMarkdown(s string) template.HTML {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.NoEmptyLineBeforeBlock)
	doc := p.Parse([]byte(s))

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	out := markdown.Render(doc, renderer)

	return template.HTML(bluemonday.UGCPolicy().SanitizeBytes(out))
}
