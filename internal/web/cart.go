package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kuitang/stylehaven/internal/catalog"
	"github.com/kuitang/stylehaven/internal/db"
	"github.com/kuitang/stylehaven/internal/obs"
	"github.com/kuitang/stylehaven/internal/urlutil"
)

const (
	// CartCookieName identifies the visitor's cart. Carts are anonymous;
	// signing in does not move them.
	CartCookieName = "cart_id"
	cartCookieTTL  = 30 * 24 * time.Hour
)

// CartLine is one rendered cart row.
type CartLine struct {
	ID        string
	Product   catalog.Product
	Size      string
	Quantity  int
	LineTotal int64
}

// CartPageData backs /cart.
type CartPageData struct {
	PageData
	Items       []CartLine
	Subtotal    int64
	MaxQuantity int
}

func cartIDFromRequest(r *http.Request) string {
	c, err := r.Cookie(CartCookieName)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return ""
	}
	return c.Value
}

// ensureCart returns the request's cart ID, issuing a cookie for a new
// cart when there is none.
func (h *WebHandler) ensureCart(w http.ResponseWriter, r *http.Request) string {
	if id := cartIDFromRequest(r); id != "" {
		return id
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     CartCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies || urlutil.Scheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(cartCookieTTL.Seconds()),
	})
	return id
}

// HandleCart handles GET /cart.
func (h *WebHandler) HandleCart(w http.ResponseWriter, r *http.Request) {
	data := CartPageData{PageData: h.page(r, "Your cart"), MaxQuantity: MaxQuantity}
	if cartID := cartIDFromRequest(r); cartID != "" {
		items, err := h.store.CartItems(r.Context(), cartID)
		if err != nil {
			h.serverError(w, r, "list cart failed", err)
			return
		}
		for _, it := range items {
			p, ok := h.catalog.ByID(it.ProductID)
			if !ok {
				obs.From(r.Context()).Warn("cart references unknown product", "product_id", it.ProductID)
				continue
			}
			line := CartLine{
				ID:        it.ID,
				Product:   p,
				Size:      it.Size,
				Quantity:  it.Quantity,
				LineTotal: p.PriceCents * int64(it.Quantity),
			}
			data.Subtotal += line.LineTotal
			data.Items = append(data.Items, line)
		}
	}
	h.render(w, r, http.StatusOK, "cart.html", data)
}

// HandleAddToCart handles POST /cart/items from the product page form.
// Products that come in sizes need one picked.
func (h *WebHandler) HandleAddToCart(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid form")
		return
	}
	id, err := strconv.Atoi(r.PostFormValue("product_id"))
	if err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid product")
		return
	}
	p, ok := h.catalog.ByID(id)
	if !ok {
		h.renderer.RenderError(w, http.StatusNotFound, "Product not found")
		return
	}

	qty := 1
	if v := r.PostFormValue("quantity"); v != "" {
		n, ok := parseQuantity(v)
		if !ok || n == 0 {
			h.productError(w, r, p, fmt.Sprintf("Quantity must be between 1 and %d", MaxQuantity))
			return
		}
		qty = n
	}

	size := r.PostFormValue("size")
	switch {
	case len(p.Sizes) > 0 && size == "":
		h.productError(w, r, p, "Please select a size")
		return
	case len(p.Sizes) > 0 && !slices.Contains(p.Sizes, size):
		h.productError(w, r, p, "That size is not available")
		return
	case len(p.Sizes) == 0:
		size = ""
	}

	cartID := h.ensureCart(w, r)
	if _, err := h.store.AddCartItem(r.Context(), cartID, p.ID, size, qty); err != nil {
		h.serverError(w, r, "add to cart failed", err)
		return
	}
	obs.From(r.Context()).Info("added to cart", "product", p.Slug, "size", size, "quantity", qty)
	http.Redirect(w, r, "/products/"+url.PathEscape(p.Slug)+"?added=1", http.StatusSeeOther)
}

func (h *WebHandler) productError(w http.ResponseWriter, r *http.Request, p catalog.Product, msg string) {
	h.render(w, r, http.StatusBadRequest, "product.html", ProductPageData{
		PageData:     h.page(r, p.Name),
		Product:      p,
		CategoryName: h.catalog.CategoryName(p.Category),
		Error:        msg,
	})
}

// HandleUpdateCartItem handles POST /cart/items/{id}. Quantity 0 removes
// the line.
func (h *WebHandler) HandleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	cartID := cartIDFromRequest(r)
	if cartID == "" {
		h.renderer.RenderError(w, http.StatusNotFound, "Cart item not found")
		return
	}
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid form")
		return
	}
	qty, ok := parseQuantity(r.PostFormValue("quantity"))
	if !ok {
		h.renderer.RenderError(w, http.StatusBadRequest, fmt.Sprintf("Quantity must be between 0 and %d", MaxQuantity))
		return
	}
	err := h.store.SetCartItemQuantity(r.Context(), cartID, r.PathValue("id"), qty)
	if errors.Is(err, db.ErrNotFound) {
		h.renderer.RenderError(w, http.StatusNotFound, "Cart item not found")
		return
	}
	if err != nil {
		h.serverError(w, r, "update cart failed", err)
		return
	}
	http.Redirect(w, r, "/cart", http.StatusSeeOther)
}
