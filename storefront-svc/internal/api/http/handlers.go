package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"overcooked-storefront/storefront-svc/internal/apperr"
	"overcooked-storefront/storefront-svc/internal/domain"
	"overcooked-storefront/storefront-svc/internal/payment"
	"overcooked-storefront/storefront-svc/internal/service"
)

// SessionCookie carries the storefront session id. Every other cookie the
// browser sends is forwarded to the backend untouched.
const SessionCookie = "sf_session"

type Handler struct {
	Sessions *service.Store
	QR       service.QRGenerator
	Secure   bool

	// Audit serves an order's checkout trail. Nil leaves the route unregistered.
	Audit http.Handler
}

func NewHandler(sessions *service.Store, qr service.QRGenerator) *Handler {
	return &Handler{Sessions: sessions, QR: qr}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.healthCheck).Methods("GET")

	r.HandleFunc("/api/restaurants/{id}/menu", h.getMenu).Methods("GET")

	r.HandleFunc("/api/cart", h.getCart).Methods("GET")
	r.HandleFunc("/api/cart", h.clearCart).Methods("DELETE")
	r.HandleFunc("/api/cart/items", h.addCartItem).Methods("POST")
	r.HandleFunc("/api/cart/items/{itemId}", h.changeQuantity).Methods("PATCH")

	r.HandleFunc("/api/checkout", h.checkout).Methods("POST")

	r.HandleFunc("/api/orders", h.getOrders).Methods("GET")
	r.HandleFunc("/api/orders/{id}", h.cancelOrder).Methods("DELETE")
	r.HandleFunc("/api/orders/{id}/qrcode", h.getOrderQRCode).Methods("GET")
	r.HandleFunc("/api/orders/{id}/payment", h.startPayment).Methods("POST")
	r.HandleFunc("/api/orders/{id}/payment", h.getPayment).Methods("GET")
	r.HandleFunc("/api/orders/{id}/payment", h.cancelPayment).Methods("DELETE")
	r.HandleFunc("/api/orders/{id}/payment/check", h.checkPayment).Methods("POST")
	if h.Audit != nil {
		r.HandleFunc("/api/orders/{id}/events", h.getOrderEvents).Methods("GET")
	}

	r.HandleFunc("/api/session/leave", h.leave).Methods("POST")
	r.HandleFunc("/api/session", h.endSession).Methods("DELETE")
}

type addItemRequest struct {
	MenuItemID int `json:"menu_item_id" validate:"gt=0"`
}

type changeQuantityRequest struct {
	Delta int `json:"delta" validate:"ne=0,min=-999,max=999"`
}

type checkoutRequest struct {
	DeliveryAddress string `json:"delivery_address" validate:"required"`
}

type paymentRequest struct {
	Method      string `json:"method" validate:"required,oneof=mobile_money cash"`
	PhoneNumber string `json:"phone_number" validate:"required_if=Method mobile_money"`
}

type paymentResponse struct {
	payment.Snapshot
	Navigate *domain.NavigationEvent `json:"navigate,omitempty"`
}

type orderView struct {
	domain.Order
	Receipt string `json:"receipt_url"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"service":   "storefront-svc",
		"sessions":  h.Sessions.Len(),
		"timestamp": time.Now().Format(time.RFC3339),
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) getMenu(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sess := h.session(w, r)
	menu, err := sess.OpenMenu(r.Context(), id, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, menu)
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session(w, r).Cart())
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	sess.ClearCart()
	writeJSON(w, http.StatusOK, sess.Cart())
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !decode(w, r, &req) {
		return
	}
	view, err := h.session(w, r).AddToCart(req.MenuItemID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) changeQuantity(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(w, r, "itemId")
	if !ok {
		return
	}
	var req changeQuantityRequest
	if !decode(w, r, &req) {
		return
	}
	view, err := h.session(w, r).ChangeQuantity(itemID, req.Delta)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.session(w, r).Checkout(r.Context(), req.DeliveryAddress)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) startPayment(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req paymentRequest
	if !decode(w, r, &req) {
		return
	}
	snap, err := h.session(w, r).StartPayment(r.Context(), orderID, domain.PaymentMethod(req.Method), req.PhoneNumber)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentResponse{Snapshot: snap})
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sess := h.session(w, r)
	snap, err := sess.PaymentStatus(orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentResponse{Snapshot: snap, Navigate: sess.Navigation(orderID)})
}

func (h *Handler) checkPayment(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	snap, err := h.session(w, r).CheckPayment(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentResponse{Snapshot: snap})
}

func (h *Handler) cancelPayment(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.session(w, r).CancelPayment(orderID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.session(w, r).Orders(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, orderView{Order: o, Receipt: h.QR.Link(o.ID)})
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.session(w, r).CancelOrder(r.Context(), orderID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getOrderQRCode(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	qrCode, err := h.QR.Generate(orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(qrCode)
}

// getOrderEvents forwards to the audit trail only after the backend has
// confirmed, with the browser's own cookie, that the caller can see the order.
func (h *Handler) getOrderEvents(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.session(w, r).Order(r.Context(), orderID); err != nil {
		writeError(w, err)
		return
	}
	h.Audit.ServeHTTP(w, r)
}

func (h *Handler) leave(w http.ResponseWriter, r *http.Request) {
	h.session(w, r).Leave()
	w.WriteHeader(http.StatusNoContent)
}

// endSession drops the caller's session and expires its cookie.
func (h *Handler) endSession(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		h.Sessions.Remove(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// session resolves the caller's browsing session, starting one when the
// request carries no known session cookie.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) *service.Session {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}
	sess, created := h.Sessions.GetOrCreate(id, backendCookie(r))
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			Secure:   h.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}

func backendCookie(r *http.Request) string {
	var parts []string
	for _, c := range r.Cookies() {
		if c.Name == SessionCookie {
			continue
		}
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

func pathID(w http.ResponseWriter, r *http.Request, key string) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)[key])
	if err != nil || id <= 0 {
		writeErrorBody(w, http.StatusBadRequest, "bad_request", "invalid "+key)
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErrorBody(w, http.StatusBadRequest, "bad_request", "Invalid JSON format: "+err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeError(w, apperr.Invalid(verrs[0].Field(), "failed "+verrs[0].Tag()))
			return false
		}
		writeError(w, err)
		return false
	}
	return true
}

type errorBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("ERROR: %v", err)
	}
	writeErrorBody(w, status, apperr.Kind(err), apperr.UserMessage(err))
}

func writeErrorBody(w http.ResponseWriter, status int, kind, msg string) {
	var body errorBody
	body.Error.Kind = kind
	body.Error.Message = msg
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
