package flows

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/stylehaven/internal/driver"
	"github.com/kuitang/stylehaven/internal/obs"
)

// ReloadGrace is how long UpdateCartQuantity waits for a page reload before
// it accepts an in-place (script driven) quantity update.
var ReloadGrace = 2 * time.Second

const (
	markScript     = `window.__havenPending = true`
	reloadedScript = `window.__havenPending !== true`
)

// AddToCart opens the first product, picks the first real size when there
// is a choice, adds it and expects it in the cart. It returns the product
// name.
func AddToCart(ctx context.Context, env *Env) (string, error) {
	var name string
	err := Run(ctx, env, CartAdd, func(ctx context.Context) error {
		if err := env.Driver.Get(env.url("/products")); err != nil {
			return err
		}
		item, err := env.waitPresent(ctx, driver.ByClassName, "product-item")
		if err != nil {
			return err
		}
		if err := item.Click(); err != nil {
			return err
		}
		if _, err := env.waitPresent(ctx, driver.ByID, "product_details"); err != nil {
			return err
		}

		if err := pickSize(env); err != nil {
			obs.From(ctx).Info("no size selection available for this product", "reason", err)
		}

		el, err := env.Driver.Find(driver.ByID, "product_name")
		if err != nil {
			return err
		}
		if name, err = el.Text(); err != nil {
			return err
		}
		if err := env.click(driver.ByID, "add_to_cart_button"); err != nil {
			return err
		}
		if _, err := env.waitPresent(ctx, driver.ByClassName, "cart-confirmation"); err != nil {
			return err
		}
		if err := env.click(driver.ByID, "cart_icon"); err != nil {
			return err
		}
		if _, err := env.waitPresent(ctx, driver.ByID, "shopping_cart"); err != nil {
			return err
		}

		items, err := env.Driver.FindAll(driver.ByClassName, "cart-item")
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return expectf("cart is empty after adding product")
		}
		var names []string
		for _, it := range items {
			n, err := it.Find(driver.ByClassName, "item-name")
			if err != nil {
				return err
			}
			text, err := n.Text()
			if err != nil {
				return err
			}
			names = append(names, strings.TrimSpace(text))
		}
		for _, n := range names {
			if n == strings.TrimSpace(name) {
				obs.From(ctx).Info("added product to cart", "product", name)
				return nil
			}
		}
		return expectf("product %q not found in cart %q", name, names)
	})
	return name, err
}

// pickSize selects the first non-placeholder option. Options are chosen by
// script so every backend fires the same change event.
func pickSize(env *Env) error {
	sel, err := env.Driver.Find(driver.ByID, "size_selector")
	if err != nil {
		return err
	}
	opts, err := sel.FindAll(driver.ByTagName, "option")
	if err != nil {
		return err
	}
	if len(opts) <= 1 {
		return nil
	}
	v, err := opts[1].Attribute("value")
	if err != nil {
		return err
	}
	return driver.SetValue(sel, v)
}

// UpdateCartQuantity adds a product, raises the first line's quantity by
// one and expects the cart to show the new quantity. It returns the new
// quantity.
func UpdateCartQuantity(ctx context.Context, env *Env) (int, error) {
	if _, err := AddToCart(ctx, env); err != nil {
		return 0, err
	}
	var want int
	err := Run(ctx, env, CartQuantity, func(ctx context.Context) error {
		input, err := env.Driver.Find(driver.ByClassName, "quantity-input")
		if err != nil {
			return err
		}
		raw, err := input.Value()
		if err != nil {
			return err
		}
		current, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return expectf("quantity %q is not a number", raw)
		}
		want = current + 1

		if err := input.Clear(); err != nil {
			return err
		}
		if err := input.SendKeys(strconv.Itoa(want)); err != nil {
			return err
		}
		if _, err := env.Driver.Eval(markScript); err != nil {
			return err
		}
		if err := env.click(driver.ByClassName, "update-quantity"); err != nil {
			return err
		}

		got, err := waitQuantity(ctx, env, want)
		if err != nil {
			if errors.Is(err, driver.ErrTimeout) {
				return expectf("quantity not updated. Expected: %d, Actual: %s", want, got)
			}
			return err
		}
		obs.From(ctx).Info("updated cart quantity", "from", current, "to", want)
		return nil
	})
	return want, err
}

// waitQuantity polls until the cart shows want. A reloaded page must show
// it; without a reload the value is accepted once ReloadGrace has passed.
func waitQuantity(ctx context.Context, env *Env, want int) (string, error) {
	start := time.Now()
	var last string
	err := driver.WaitUntil(ctx, env.timeout(), "cart quantity "+strconv.Itoa(want), func() (bool, error) {
		reloaded, err := env.Driver.Eval(reloadedScript)
		if err != nil {
			return false, nil
		}
		input, err := env.Driver.Find(driver.ByClassName, "quantity-input")
		if errors.Is(err, driver.ErrNoSuchElement) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		v, err := input.Value()
		if err != nil {
			return false, nil
		}
		last = strings.TrimSpace(v)
		if last != strconv.Itoa(want) {
			return false, nil
		}
		return reloaded == true || time.Since(start) >= ReloadGrace, nil
	})
	return last, err
}
