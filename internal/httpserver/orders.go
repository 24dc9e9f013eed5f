package httpserver

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"ecomOrderManagement/internal/auth"
	"ecomOrderManagement/internal/lifecycle"
	"ecomOrderManagement/internal/money"
	"ecomOrderManagement/models"
	"ecomOrderManagement/repository"
)

type orderItemRequest struct {
	VariantID int64 `json:"variant_id"`
	Quantity  int   `json:"quantity"`
}

type createOrderRequest struct {
	CustomerName  string             `json:"customer_name"`
	CustomerPhone string             `json:"customer_phone"`
	DeliveryType  string             `json:"delivery_type"`
	DeliveryFee   *string            `json:"delivery_fee"`
	Wilaya        string             `json:"wilaya"`
	Commune       string             `json:"commune"`
	Items         []orderItemRequest `json:"items"`
}

// createOrder is the storefront capture endpoint.
func (h *handlers) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	fee, err := parseOptionalAmount(req.DeliveryFee, "delivery_fee")
	if err != nil {
		respondError(w, r, err)
		return
	}
	in := lifecycle.CreateOrderInput{
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		DeliveryType:  models.DeliveryType(req.DeliveryType),
		DeliveryFee:   fee,
		Wilaya:        req.Wilaya,
		Commune:       req.Commune,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, lifecycle.ItemInput{VariantID: it.VariantID, Quantity: it.Quantity})
	}
	o, err := h.d.Lifecycle.CreateOrder(r.Context(), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

// listOrders returns a filtered page of orders with a keyset cursor.
func (h *handlers) listOrders(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireStaffOrAdmin(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}
	params, err := listParamsFromQuery(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	orders, err := h.d.Orders.List(r.Context(), params)
	if err != nil {
		respondError(w, r, err)
		return
	}
	resp := struct {
		Orders     []models.Order `json:"orders"`
		NextCursor string         `json:"next_cursor,omitempty"`
	}{Orders: orders}
	if len(orders) > 0 && len(orders) == params.PageSize {
		last := orders[len(orders)-1]
		resp.NextCursor = encodeCursor(last.OrderDate.Unix(), last.ID)
	}
	if resp.Orders == nil {
		resp.Orders = []models.Order{}
	}
	respondJSON(w, http.StatusOK, resp)
}

// orderDetail decorates an order with the UI policy derived from its status.
type orderDetail struct {
	*models.Order
	AllowedTargets []models.OrderStatus `json:"allowed_targets"`
	ReadOnlyFields []string             `json:"read_only_fields"`
}

func detailOf(o *models.Order) orderDetail {
	return orderDetail{
		Order:          o,
		AllowedTargets: o.Status.AllowedTargets(),
		ReadOnlyFields: models.ReadOnlyFields(o.Status),
	}
}

func (h *handlers) getOrder(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireStaffOrAdmin(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	o, err := h.d.Lifecycle.GetOrder(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, detailOf(o))
}

type updateOrderRequest struct {
	CustomerName  *string `json:"customer_name"`
	CustomerPhone *string `json:"customer_phone"`
	DeliveryType  *string `json:"delivery_type"`
	DeliveryFee   *string `json:"delivery_fee"`
	Wilaya        *string `json:"wilaya"`
	Commune       *string `json:"commune"`
}

func (h *handlers) updateOrderDetails(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireAdmin(r.Context(), h.d.Operators); err != nil {
		respondError(w, r, err)
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req updateOrderRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	fee, err := parseOptionalAmount(req.DeliveryFee, "delivery_fee")
	if err != nil {
		respondError(w, r, err)
		return
	}
	in := lifecycle.UpdateDetailsInput{
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		DeliveryFee:   fee,
		Wilaya:        req.Wilaya,
		Commune:       req.Commune,
	}
	if req.DeliveryType != nil {
		dt := models.DeliveryType(*req.DeliveryType)
		in.DeliveryType = &dt
	}
	o, err := h.d.Lifecycle.UpdateDetails(r.Context(), id, in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, detailOf(o))
}

type setStatusRequest struct {
	Status string `json:"status"`
}

// setOrderStatus runs a single lifecycle transition.
func (h *handlers) setOrderStatus(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequireAdmin(r.Context(), h.d.Operators)
	if err != nil {
		respondError(w, r, err)
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req setStatusRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	o, err := h.d.Lifecycle.RequestTransition(r.Context(), id, models.OrderStatus(req.Status), p.Name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, detailOf(o))
}

func (h *handlers) listOrderEvents(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireStaffOrAdmin(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	o, err := h.d.Orders.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if o == nil {
		respondError(w, r, fmt.Errorf("%w: order %d", lifecycle.ErrNotFound, id))
		return
	}
	events, err := h.d.Events.ListByOrderID(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if events == nil {
		events = []models.OrderEvent{}
	}
	respondJSON(w, http.StatusOK, struct {
		OrderID int64               `json:"order_id"`
		Events  []models.OrderEvent `json:"events"`
	}{OrderID: id, Events: events})
}

func (h *handlers) addOrderItem(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireAdmin(r.Context(), h.d.Operators); err != nil {
		respondError(w, r, err)
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req orderItemRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	o, err := h.d.Lifecycle.AddItem(r.Context(), id, lifecycle.ItemInput{VariantID: req.VariantID, Quantity: req.Quantity})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, detailOf(o))
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *handlers) updateOrderItem(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireAdmin(r.Context(), h.d.Operators); err != nil {
		respondError(w, r, err)
		return
	}
	orderID, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	itemID, err := parseID(r, "itemID")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req updateItemRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	o, err := h.d.Lifecycle.UpdateItemQuantity(r.Context(), orderID, itemID, req.Quantity)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, detailOf(o))
}

func (h *handlers) removeOrderItem(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireAdmin(r.Context(), h.d.Operators); err != nil {
		respondError(w, r, err)
		return
	}
	orderID, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	itemID, err := parseID(r, "itemID")
	if err != nil {
		respondError(w, r, err)
		return
	}
	o, err := h.d.Lifecycle.RemoveItem(r.Context(), orderID, itemID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, detailOf(o))
}

// bulkActions maps the URL action names onto target statuses. The explicit
// enum keeps the surface closed: there is no way to request an arbitrary
// status through the bulk endpoint.
var bulkActions = map[string]models.OrderStatus{
	"confirm":          models.OrderStatusConfirmed,
	"dispatch":         models.OrderStatusOnTheWay,
	"deliver":          models.OrderStatusDelivered,
	"cancel":           models.OrderStatusCancelled,
	"return-by-client": models.OrderStatusReturnedByClient,
	"return-by-owner":  models.OrderStatusReturnedByOwner,
}

type bulkRequest struct {
	OrderIDs []int64 `json:"order_ids"`
}

type bulkResultEntry struct {
	OrderID int64              `json:"order_id"`
	OK      bool               `json:"ok"`
	Status  models.OrderStatus `json:"status,omitempty"`
	Error   string             `json:"error,omitempty"`
}

type bulkResponse struct {
	Action       string             `json:"action"`
	TargetStatus models.OrderStatus `json:"target_status"`
	Succeeded    int                `json:"succeeded"`
	Failed       int                `json:"failed"`
	Results      []bulkResultEntry  `json:"results"`
}

// bulkOrderAction applies one action to many orders. Each order is its own
// transaction; failures are reported per order, never rolled up.
func (h *handlers) bulkOrderAction(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequireAdmin(r.Context(), h.d.Operators)
	if err != nil {
		respondError(w, r, err)
		return
	}
	action := chi.URLParam(r, "action")
	target, ok := bulkActions[action]
	if !ok {
		respondError(w, r, invalidInputf("unknown bulk action %q", action))
		return
	}
	var req bulkRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if len(req.OrderIDs) == 0 {
		respondError(w, r, invalidInputf("order_ids is empty"))
		return
	}

	results := h.d.Lifecycle.RequestBulkTransition(r.Context(), req.OrderIDs, target, p.Name)
	resp := bulkResponse{
		Action:       action,
		TargetStatus: target,
		Results:      make([]bulkResultEntry, 0, len(results)),
	}
	for _, res := range results {
		entry := bulkResultEntry{OrderID: res.OrderID}
		if res.Err != nil {
			entry.Error = res.Err.Error()
			resp.Failed++
		} else {
			entry.OK = true
			entry.Status = res.Order.Status
			resp.Succeeded++
		}
		resp.Results = append(resp.Results, entry)
	}
	respondJSON(w, http.StatusOK, resp)
}

// listParamsFromQuery translates the query string into repository filters.
// Bare dates are widened to the whole day so from/to behave inclusively.
func listParamsFromQuery(r *http.Request) (repository.ListOrdersParams, error) {
	q := r.URL.Query()
	var p repository.ListOrdersParams

	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := models.OrderStatus(strings.TrimSpace(s))
			if !status.Valid() {
				return p, invalidInputf("unknown status %q", s)
			}
			p.Statuses = append(p.Statuses, status)
		}
	}
	if w := q.Get("wilaya"); w != "" {
		p.Wilaya = &w
	}
	if raw := q.Get("delivery_type"); raw != "" {
		dt := models.DeliveryType(raw)
		if !dt.Valid() {
			return p, invalidInputf("unknown delivery type %q", raw)
		}
		p.DeliveryType = &dt
	}
	if s := q.Get("q"); s != "" {
		p.Search = &s
	}
	if from := q.Get("from"); from != "" {
		f := widenDate(from, " 00:00:00")
		p.DateFrom = &f
	}
	if to := q.Get("to"); to != "" {
		t := widenDate(to, " 23:59:59")
		p.DateTo = &t
	}
	p.PageSize = 20
	if raw := q.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return p, invalidInputf("invalid page_size %q", raw)
		}
		p.PageSize = n
	}
	if cur := q.Get("cursor"); cur != "" {
		secs, id, err := decodeCursor(cur)
		if err != nil {
			return p, invalidInputf("invalid cursor")
		}
		p.AfterSeconds = secs
		p.AfterID = id
	}
	return p, nil
}

func widenDate(s, suffix string) string {
	if len(s) == len("2006-01-02") {
		return s + suffix
	}
	return s
}

// encodeCursor packs the keyset position after the last returned row.
func encodeCursor(seconds, id int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf("%d|%d", seconds, id)))
}

func decodeCursor(s string) (int64, int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return 0, 0, err
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed cursor")
	}
	secs, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return secs, id, nil
}

func parseID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, invalidInputf("invalid %s", name)
	}
	return id, nil
}

// parseOptionalAmount parses a money field that may be absent.
func parseOptionalAmount(raw *string, field string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	d, err := money.ParseAmount(*raw)
	if err != nil {
		return nil, invalidInputf("%s: %v", field, err)
	}
	return &d, nil
}
