package httpserver

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"ecomOrderManagement/internal/auth"
	"ecomOrderManagement/internal/lifecycle"
	"ecomOrderManagement/internal/money"
	"ecomOrderManagement/models"
	"ecomOrderManagement/repository"
)

// productView decorates a catalog product with the derived storefront fields.
type productView struct {
	*models.Product
	EffectivePrice decimal.Decimal `json:"effective_price"`
	IsNew          bool            `json:"is_new"`
}

func viewOfProduct(p *models.Product, now time.Time) productView {
	return productView{
		Product:        p,
		EffectivePrice: p.DiscountedPrice(),
		IsNew:          p.IsNew(now),
	}
}

func (h *handlers) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.d.Categories.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if categories == nil {
		categories = []models.Category{}
	}
	respondJSON(w, http.StatusOK, struct {
		Categories []models.Category `json:"categories"`
	}{Categories: categories})
}

func (h *handlers) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := time.Now().UTC()

	// Dedicated storefront shelves come first; they are mutually exclusive
	// with the filtered listing.
	var (
		products []models.Product
		err      error
	)
	switch {
	case q.Get("discounted") == "true":
		products, err = h.d.Products.ListDiscounted(r.Context(), atoiOrZero(q.Get("limit")))
	case q.Get("top_sold") == "true":
		products, err = h.d.Products.ListTopSold(r.Context(), atoiOrZero(q.Get("limit")))
	case q.Get("new") == "true":
		products, err = h.d.Products.ListNew(r.Context(), now.Add(-models.NewProductWindow), atoiOrZero(q.Get("limit")))
	default:
		var params repository.ListProductsParams
		if raw := q.Get("category_id"); raw != "" {
			id, convErr := strconv.ParseInt(raw, 10, 64)
			if convErr != nil {
				respondError(w, r, invalidInputf("invalid category_id %q", raw))
				return
			}
			params.CategoryID = &id
		}
		if s := q.Get("q"); s != "" {
			params.Search = &s
		}
		if raw := q.Get("price_min"); raw != "" {
			amount, convErr := money.ParseAmount(raw)
			if convErr != nil {
				respondError(w, r, invalidInputf("invalid price_min %q", raw))
				return
			}
			params.PriceMin = &amount
		}
		if raw := q.Get("price_max"); raw != "" {
			amount, convErr := money.ParseAmount(raw)
			if convErr != nil {
				respondError(w, r, invalidInputf("invalid price_max %q", raw))
				return
			}
			params.PriceMax = &amount
		}
		params.InStock = q.Get("in_stock") == "true"
		params.Limit = atoiOrZero(q.Get("limit"))
		params.Offset = atoiOrZero(q.Get("offset"))
		products, err = h.d.Products.List(r.Context(), params)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	views := make([]productView, 0, len(products))
	for i := range products {
		views = append(views, viewOfProduct(&products[i], now))
	}
	respondJSON(w, http.StatusOK, struct {
		Products []productView `json:"products"`
	}{Products: views})
}

func (h *handlers) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.d.Products.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if p == nil {
		respondError(w, r, fmt.Errorf("%w: product %d", lifecycle.ErrNotFound, id))
		return
	}
	variants, err := h.d.Variants.ListByProductID(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if variants == nil {
		variants = []models.ProductVariant{}
	}
	respondJSON(w, http.StatusOK, struct {
		productView
		Variants []models.ProductVariant `json:"variants"`
	}{productView: viewOfProduct(p, time.Now().UTC()), Variants: variants})
}

func (h *handlers) listProductVariants(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	variants, err := h.d.Variants.ListByProductID(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if variants == nil {
		variants = []models.ProductVariant{}
	}
	respondJSON(w, http.StatusOK, struct {
		Variants []models.ProductVariant `json:"variants"`
	}{Variants: variants})
}

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *handlers) createCategory(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireAdmin(r.Context(), h.d.Operators); err != nil {
		respondError(w, r, err)
		return
	}
	var req categoryRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Name == "" {
		respondError(w, r, invalidInputf("category name is required"))
		return
	}
	c, err := h.d.Categories.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

type categoryPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (h *handlers) updateCategory(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireAdmin(r.Context(), h.d.Operators); err != nil {
		respondError(w, r, err)
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	c, err := h.d.Categories.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if c == nil {
		respondError(w, r, fmt.Errorf("%w: category %d", lifecycle.ErrNotFound, id))
		return
	}
	var req categoryPatch
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Name != nil {
		if *req.Name == "" {
			respondError(w, r, invalidInputf("category name is required"))
			return
		}
		c.Name = *req.Name
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	if err := h.d.Categories.Update(r.Context(), c); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *handlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireAdmin(r.Context(), h.d.Operators); err != nil {
		respondError(w, r, err)
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.d.Categories.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

type productRequest struct {
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Price         string  `json:"price"`
	DiscountPrice *string `json:"discount_price"`
	Color         string  `json:"color"`
	CategoryID    *int64  `json:"category_id"`
}

func (h *handlers) createProduct(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireAdmin(r.Context(), h.d.Operators); err != nil {
		respondError(w, r, err)
		return
	}
	var req productRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Name == "" {
		respondError(w, r, invalidInputf("product name is required"))
		return
	}
	price, err := money.ParseAmount(req.Price)
	if err != nil {
		respondError(w, r, invalidInputf("price: %v", err))
		return
	}
	p := &models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       price,
		Color:       req.Color,
		CategoryID:  req.CategoryID,
	}
	if req.DiscountPrice != nil && *req.DiscountPrice != "" {
		d, err := money.ParseAmount(*req.DiscountPrice)
		if err != nil {
			respondError(w, r, invalidInputf("discount_price: %v", err))
			return
		}
		p.DiscountPrice = decimal.NewNullDecimal(d)
	}
	created, err := h.d.Products.Create(r.Context(), p)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

type productPatch struct {
	Name          *string `json:"name"`
	Description   *string `json:"description"`
	Price         *string `json:"price"`
	DiscountPrice *string `json:"discount_price"` // empty string clears the discount
	Color         *string `json:"color"`
	CategoryID    *int64  `json:"category_id"`
}

func (h *handlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireAdmin(r.Context(), h.d.Operators); err != nil {
		respondError(w, r, err)
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.d.Products.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if p == nil {
		respondError(w, r, fmt.Errorf("%w: product %d", lifecycle.ErrNotFound, id))
		return
	}
	var req productPatch
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Name != nil {
		if *req.Name == "" {
			respondError(w, r, invalidInputf("product name is required"))
			return
		}
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Price != nil {
		price, err := money.ParseAmount(*req.Price)
		if err != nil {
			respondError(w, r, invalidInputf("price: %v", err))
			return
		}
		p.Price = price
	}
	if req.DiscountPrice != nil {
		if *req.DiscountPrice == "" {
			p.DiscountPrice = decimal.NullDecimal{}
		} else {
			d, err := money.ParseAmount(*req.DiscountPrice)
			if err != nil {
				respondError(w, r, invalidInputf("discount_price: %v", err))
				return
			}
			p.DiscountPrice = decimal.NewNullDecimal(d)
		}
	}
	if req.Color != nil {
		p.Color = *req.Color
	}
	if req.CategoryID != nil {
		p.CategoryID = req.CategoryID
	}
	if err := h.d.Products.Update(r.Context(), p); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *handlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireAdmin(r.Context(), h.d.Operators); err != nil {
		respondError(w, r, err)
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.d.Products.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

type variantRequest struct {
	Size  string  `json:"size"`
	Price *string `json:"price"` // overrides the product price when set
	Stock int     `json:"stock"`
}

func (h *handlers) createVariant(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireAdmin(r.Context(), h.d.Operators); err != nil {
		respondError(w, r, err)
		return
	}
	productID, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.d.Products.GetByID(r.Context(), productID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if p == nil {
		respondError(w, r, fmt.Errorf("%w: product %d", lifecycle.ErrNotFound, productID))
		return
	}
	var req variantRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Size == "" {
		respondError(w, r, invalidInputf("variant size is required"))
		return
	}
	if req.Stock < 0 {
		respondError(w, r, invalidInputf("stock must not be negative"))
		return
	}
	v := &models.ProductVariant{ProductID: productID, Size: req.Size, Stock: req.Stock}
	if req.Price != nil && *req.Price != "" {
		price, err := money.ParseAmount(*req.Price)
		if err != nil {
			respondError(w, r, invalidInputf("price: %v", err))
			return
		}
		v.Price = decimal.NewNullDecimal(price)
	}
	created, err := h.d.Variants.Create(r.Context(), v)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

type variantPatch struct {
	Size  *string `json:"size"`
	Price *string `json:"price"` // empty string reverts to the product price
}

func (h *handlers) updateVariant(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireAdmin(r.Context(), h.d.Operators); err != nil {
		respondError(w, r, err)
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	v, err := h.d.Variants.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if v == nil {
		respondError(w, r, fmt.Errorf("%w: variant %d", lifecycle.ErrNotFound, id))
		return
	}
	var req variantPatch
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Size != nil {
		if *req.Size == "" {
			respondError(w, r, invalidInputf("variant size is required"))
			return
		}
		v.Size = *req.Size
	}
	if req.Price != nil {
		if *req.Price == "" {
			v.Price = decimal.NullDecimal{}
		} else {
			price, err := money.ParseAmount(*req.Price)
			if err != nil {
				respondError(w, r, invalidInputf("price: %v", err))
				return
			}
			v.Price = decimal.NewNullDecimal(price)
		}
	}
	if err := h.d.Variants.Update(r.Context(), v); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

type stockRequest struct {
	Stock int `json:"stock"`
}

// setVariantStock overwrites the absolute stock level of a variant. This is
// the restock path; lifecycle transitions adjust stock relatively on their own.
func (h *handlers) setVariantStock(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireAdmin(r.Context(), h.d.Operators); err != nil {
		respondError(w, r, err)
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req stockRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Stock < 0 {
		respondError(w, r, invalidInputf("stock must not be negative"))
		return
	}
	v, err := h.d.Variants.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if v == nil {
		respondError(w, r, fmt.Errorf("%w: variant %d", lifecycle.ErrNotFound, id))
		return
	}
	if err := h.d.Variants.SetStock(r.Context(), id, req.Stock); err != nil {
		respondError(w, r, err)
		return
	}
	v.Stock = req.Stock
	respondJSON(w, http.StatusOK, v)
}

func (h *handlers) deleteVariant(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireAdmin(r.Context(), h.d.Operators); err != nil {
		respondError(w, r, err)
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.d.Variants.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
