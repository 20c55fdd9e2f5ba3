package flows

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/stylehaven/internal/driver"
	"github.com/kuitang/stylehaven/internal/obs"
)

// Search types query into the header search box, submits it and expects at
// least one result whose title contains term. It returns the lower-cased
// titles.
func Search(ctx context.Context, env *Env, query, term string) ([]string, error) {
	var titles []string
	err := Run(ctx, env, ProductSearch, func(ctx context.Context) error {
		if err := env.Driver.Get(env.url("/")); err != nil {
			return err
		}
		input, err := env.Driver.Find(driver.ByID, "search_input")
		if err != nil {
			return err
		}
		if err := input.SendKeys(query); err != nil {
			return err
		}
		before, err := markResults(env)
		if err != nil {
			return err
		}
		if err := input.Submit(); err != nil {
			return fmt.Errorf("submit search: %w", err)
		}
		if err := waitResults(ctx, env, before); err != nil {
			return err
		}
		if _, err := env.waitPresent(ctx, driver.ByClassName, "product-grid"); err != nil {
			return err
		}

		items, err := env.Driver.FindAll(driver.ByClassName, "product-item")
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return expectf("no products found in search results")
		}
		matched := false
		for _, item := range items {
			title, err := item.Find(driver.ByClassName, "product-title")
			if err != nil {
				return err
			}
			text, err := title.Text()
			if err != nil {
				return err
			}
			text = strings.ToLower(text)
			titles = append(titles, text)
			if strings.Contains(text, strings.ToLower(term)) {
				matched = true
			}
		}
		if !matched {
			return expectf("no relevant products found for %q in %q", term, titles)
		}
		obs.From(ctx).Info("search results", "query", query, "products", len(items))
		return nil
	})
	return titles, err
}

const (
	markResultsScript = `document.querySelectorAll('.product-grid, .product-item').forEach(function (n) { n.__havenStale = true })`
	freshResultsScript = `(function () {
		var grid = document.querySelector('.product-grid');
		if (!grid) { return false; }
		if (!grid.__havenStale) { return true; }
		var items = document.querySelectorAll('.product-item');
		for (var i = 0; i < items.length; i++) {
			if (!items[i].__havenStale) { return true; }
		}
		return false;
	})()`
)

// markResults tags the current result nodes and returns the current URL so
// waitResults can tell when a search or filter has produced new results.
func markResults(env *Env) (string, error) {
	u, err := env.Driver.CurrentURL()
	if err != nil {
		return "", err
	}
	if _, err := env.Driver.Eval(markResultsScript); err != nil {
		return "", fmt.Errorf("mark results: %w", err)
	}
	return u, nil
}

// waitResults waits for the results to refresh: the page navigated away from
// before, or the grid holds nodes rendered after markResults. A storefront
// that filters by hiding existing nodes gives neither signal, so after
// ReloadGrace the current grid is accepted.
func waitResults(ctx context.Context, env *Env, before string) error {
	start := time.Now()
	return driver.WaitUntil(ctx, env.timeout(), "refreshed product results", func() (bool, error) {
		if _, err := env.Driver.Find(driver.ByClassName, "product-grid"); err != nil {
			return false, nil
		}
		if u, err := env.Driver.CurrentURL(); err == nil && u != before {
			return true, nil
		}
		if fresh, err := env.Driver.Eval(freshResultsScript); err == nil && fresh == true {
			return true, nil
		}
		return time.Since(start) >= ReloadGrace, nil
	})
}

// ParsePrice reads a displayed price such as "$1,234.56".
func ParsePrice(text string) (float64, error) {
	clean := strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(text))
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", text, err)
	}
	return v, nil
}

// Filter ticks the category label, drags the price sliders to [min, max]
// through script, applies the filter and expects every listed price to lie
// in range. It returns the prices seen.
func Filter(ctx context.Context, env *Env, category string, min, max float64) ([]float64, error) {
	var prices []float64
	err := Run(ctx, env, ProductFilter, func(ctx context.Context) error {
		if err := env.Driver.Get(env.url("/products")); err != nil {
			return err
		}
		label, err := env.waitClickable(ctx, driver.ByXPath,
			fmt.Sprintf("//div[@class='filter-section']//label[text()='%s']", category))
		if err != nil {
			return err
		}
		if err := label.Click(); err != nil {
			return err
		}

		for id, v := range map[string]float64{"price_slider_min": min, "price_slider_max": max} {
			slider, err := env.Driver.Find(driver.ByID, id)
			if err != nil {
				return err
			}
			if err := driver.SetValue(slider, strconv.FormatFloat(v, 'f', -1, 64)); err != nil {
				return fmt.Errorf("set #%s: %w", id, err)
			}
		}
		before, err := markResults(env)
		if err != nil {
			return err
		}
		if err := env.click(driver.ByID, "apply_filters_button"); err != nil {
			return err
		}
		if err := waitResults(ctx, env, before); err != nil {
			return err
		}
		if _, err := env.waitPresent(ctx, driver.ByClassName, "product-grid"); err != nil {
			return err
		}

		items, err := env.Driver.FindAll(driver.ByClassName, "product-item")
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return expectf("no products found after filtering")
		}
		for _, item := range items {
			el, err := item.Find(driver.ByClassName, "product-price")
			if err != nil {
				return err
			}
			text, err := el.Text()
			if err != nil {
				return err
			}
			price, err := ParsePrice(text)
			if err != nil {
				return err
			}
			prices = append(prices, price)
			if price < min || price > max {
				return expectf("product price $%.2f outside filtered range", price)
			}
		}
		obs.From(ctx).Info("filtered products", "category", category, "products", len(items))
		return nil
	})
	return prices, err
}
