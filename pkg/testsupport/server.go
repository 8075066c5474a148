package testsupport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/goliatone/go-storefront-cache/cache"
	"github.com/goliatone/go-storefront-cache/catalog"
	"github.com/goliatone/go-storefront-cache/identity"
	"github.com/goliatone/go-storefront-cache/orders"
	"github.com/goliatone/go-storefront-cache/productset"
	"github.com/goliatone/go-storefront-cache/transport"
)

// SessionCookie names the cookie carrying the session id.
const SessionCookie = "storefront_session"

type sessionKey struct{}

// NewServer exposes sf over the REST routes the transport client speaks.
// Requests are bound to a session by bearer token or, failing that, by
// cookie; a session cookie is issued on first contact.
func NewServer(sf *Storefront) http.Handler {
	h := &server{sf: sf}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.session)

	r.Route("/api", func(r chi.Router) {
		r.Get("/session", h.currentIdentity)
		r.Post("/session", h.signIn)
		r.Delete("/session", h.signOut)
		r.Post("/users", h.register)

		r.Get("/baskets", h.baskets)
		r.Post("/baskets", h.createBasket)
		r.Post("/baskets/{basketID}/items", h.addItem)
		r.Delete("/baskets/{basketID}/items/{productID}", h.removeItem)
		r.Patch("/baskets/{basketID}/items/{productID}", h.setQuantity)

		for _, kind := range []productset.Kind{productset.Favorites, productset.Comparison} {
			r.Get("/"+string(kind), h.productSet(kind))
			r.Post("/"+string(kind)+"/{productID}", h.addToSet(kind))
			r.Delete("/"+string(kind)+"/{productID}", h.removeFromSet(kind))
		}

		r.Get("/orders", h.orders)
		r.Post("/orders", h.createOrder)
		r.Get("/orders/{orderID}", h.order)

		r.Get("/products", h.products)
	})
	return r
}

type server struct {
	sf *Storefront
}

func (h *server) session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sess *Session
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			if s, err := h.sf.Authenticate(strings.TrimPrefix(auth, "Bearer ")); err == nil {
				sess = s
			}
		}
		if sess == nil {
			if c, err := r.Cookie(SessionCookie); err == nil {
				sess, _ = h.sf.Session(c.Value)
			}
		}
		if sess == nil {
			sess = h.sf.NewSession()
			http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: sess.ID, Path: "/", HttpOnly: true})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func sessionOf(r *http.Request) *Session {
	return r.Context().Value(sessionKey{}).(*Session)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

type errorResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// writeError renders err the way the storefront does: validation failures
// as 422 with field messages.
func writeError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Message: verr.Message, Errors: verr.Fields})
	case errors.Is(err, identity.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "unauthorized"})
	case errors.Is(err, cache.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Message: err.Error()})
	default:
		var status statusError
		if errors.As(err, &status) {
			writeJSON(w, int(status), errorResponse{Message: http.StatusText(int(status))})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: err.Error()})
	}
}

// statusError makes FailNext answer with a bare status over HTTP.
type statusError int

func (e statusError) Error() string { return http.StatusText(int(e)) }

// Status returns an error that NewServer renders as code.
func Status(code int) error { return statusError(code) }

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "malformed body"})
		return false
	}
	return true
}

func param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "malformed " + name})
		return 0, false
	}
	return v, true
}

func (h *server) currentIdentity(w http.ResponseWriter, r *http.Request) {
	id, err := h.sf.IdentityOf(r.Context(), sessionOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, id)
}

func (h *server) signIn(w http.ResponseWriter, r *http.Request) {
	var req transport.SignInRequest
	if !decode(w, r, &req) {
		return
	}
	err := h.sf.SignInAs(r.Context(), sessionOf(r), identity.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *server) signOut(w http.ResponseWriter, r *http.Request) {
	if err := h.sf.SignOutOf(r.Context(), sessionOf(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *server) register(w http.ResponseWriter, r *http.Request) {
	var req transport.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	err := h.sf.RegisterAs(r.Context(), sessionOf(r), identity.Registration{
		Email:      req.Email,
		Password:   req.Password,
		Name:       req.Name,
		Attributes: req.Attributes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *server) baskets(w http.ResponseWriter, r *http.Request) {
	out, err := h.sf.BasketsOf(r.Context(), sessionOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *server) createBasket(w http.ResponseWriter, r *http.Request) {
	out, err := h.sf.CreateBasketFor(r.Context(), sessionOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *server) addItem(w http.ResponseWriter, r *http.Request) {
	basketID, ok := param(w, r, "basketID")
	if !ok {
		return
	}
	var req transport.AddItemRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := h.sf.AddItemFor(r.Context(), sessionOf(r), basketID, req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *server) removeItem(w http.ResponseWriter, r *http.Request) {
	basketID, ok := param(w, r, "basketID")
	if !ok {
		return
	}
	productID, ok := param(w, r, "productID")
	if !ok {
		return
	}
	if err := h.sf.RemoveItemFor(r.Context(), sessionOf(r), basketID, productID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *server) setQuantity(w http.ResponseWriter, r *http.Request) {
	basketID, ok := param(w, r, "basketID")
	if !ok {
		return
	}
	productID, ok := param(w, r, "productID")
	if !ok {
		return
	}
	var req transport.QuantityRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.sf.SetQuantityFor(r.Context(), sessionOf(r), basketID, productID, req.Quantity); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *server) productSet(kind productset.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := h.sf.ProductSetOf(r.Context(), sessionOf(r), kind)
		if err != nil {
			writeError(w, err)
			return
		}
		if ids == nil {
			ids = []int64{}
		}
		writeJSON(w, http.StatusOK, transport.ProductSetResponse{IDs: ids})
	}
}

func (h *server) addToSet(kind productset.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, ok := param(w, r, "productID")
		if !ok {
			return
		}
		if err := h.sf.AddToSetFor(r.Context(), sessionOf(r), kind, productID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *server) removeFromSet(kind productset.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, ok := param(w, r, "productID")
		if !ok {
			return
		}
		if err := h.sf.RemoveFromSetFor(r.Context(), sessionOf(r), kind, productID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *server) orders(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	out, err := h.sf.OrdersOf(r.Context(), sessionOf(r), page, orders.Filter{Status: r.URL.Query().Get("status")})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *server) order(w http.ResponseWriter, r *http.Request) {
	orderID, ok := param(w, r, "orderID")
	if !ok {
		return
	}
	out, err := h.sf.OrderOf(r.Context(), sessionOf(r), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req transport.CreateOrderRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := h.sf.CreateOrderFor(r.Context(), sessionOf(r), req.BasketID, req.Details)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *server) products(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	size, _ := strconv.Atoi(q.Get("page_size"))
	q.Del("page_size")
	state := catalog.DecodeQuery(q, catalog.FilterSet{})
	out, err := h.sf.Products(r.Context(), catalog.ListParams{
		Filters:  state.Filters,
		Order:    state.Order,
		Page:     state.Page,
		PageSize: size,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
