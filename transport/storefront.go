package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/goliatone/go-storefront-cache/basket"
	"github.com/goliatone/go-storefront-cache/catalog"
	"github.com/goliatone/go-storefront-cache/identity"
	"github.com/goliatone/go-storefront-cache/orders"
	"github.com/goliatone/go-storefront-cache/productset"
)

var (
	_ identity.API   = (*Client)(nil)
	_ basket.API     = (*Client)(nil)
	_ productset.API = (*Client)(nil)
	_ orders.API     = (*Client)(nil)
	_ catalog.API    = (*Client)(nil)
)

// Wire formats shared with the storefront server.
type (
	SignInRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	RegisterRequest struct {
		Email      string            `json:"email"`
		Password   string            `json:"password"`
		Name       string            `json:"name,omitempty"`
		Attributes map[string]string `json:"attributes,omitempty"`
	}

	AddItemRequest struct {
		ProductID int64 `json:"product_id"`
		Quantity  int   `json:"quantity"`
	}

	QuantityRequest struct {
		Quantity int `json:"quantity"`
	}

	ProductSetResponse struct {
		IDs []int64 `json:"ids"`
	}

	CreateOrderRequest struct {
		BasketID int64          `json:"basket_id"`
		Details  orders.Details `json:"details"`
	}
)

const (
	pathSession  = "/api/session"
	pathUsers    = "/api/users"
	pathBaskets  = "/api/baskets"
	pathOrders   = "/api/orders"
	pathProducts = "/api/products"
)

func id(v int64) string { return strconv.FormatInt(v, 10) }

// CurrentIdentity reads the session. A 401 is returned as is; the identity
// cache treats it as an anonymous session.
func (c *Client) CurrentIdentity(ctx context.Context) (*identity.Identity, error) {
	var out identity.Identity
	if err := c.do(ctx, http.MethodGet, pathSession, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SignIn(ctx context.Context, creds identity.Credentials) error {
	return c.do(ctx, http.MethodPost, pathSession, nil, SignInRequest{Email: creds.Email, Password: creds.Password}, nil)
}

// SignOut ends the session. Signing out without one is not an error.
func (c *Client) SignOut(ctx context.Context) error {
	err := c.do(ctx, http.MethodDelete, pathSession, nil, nil, nil)
	if errors.Is(err, identity.ErrUnauthorized) {
		return nil
	}
	return err
}

func (c *Client) Register(ctx context.Context, reg identity.Registration) error {
	return c.do(ctx, http.MethodPost, pathUsers, nil, RegisterRequest{
		Email:      reg.Email,
		Password:   reg.Password,
		Name:       reg.Name,
		Attributes: reg.Attributes,
	}, nil)
}

func (c *Client) Baskets(ctx context.Context) ([]basket.Basket, error) {
	var out []basket.Basket
	if err := c.do(ctx, http.MethodGet, pathBaskets, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateBasket(ctx context.Context) (basket.Basket, error) {
	var out basket.Basket
	err := c.do(ctx, http.MethodPost, pathBaskets, nil, nil, &out)
	return out, err
}

func (c *Client) AddItem(ctx context.Context, basketID, productID int64, quantity int) (basket.Basket, error) {
	var out basket.Basket
	err := c.do(ctx, http.MethodPost, pathBaskets+"/"+id(basketID)+"/items", nil,
		AddItemRequest{ProductID: productID, Quantity: quantity}, &out)
	return out, err
}

func (c *Client) RemoveItem(ctx context.Context, basketID, productID int64) error {
	return c.do(ctx, http.MethodDelete, pathBaskets+"/"+id(basketID)+"/items/"+id(productID), nil, nil, nil)
}

func (c *Client) SetQuantity(ctx context.Context, basketID, productID int64, quantity int) error {
	return c.do(ctx, http.MethodPatch, pathBaskets+"/"+id(basketID)+"/items/"+id(productID), nil,
		QuantityRequest{Quantity: quantity}, nil)
}

func setPath(kind productset.Kind) string { return "/api/" + string(kind) }

func (c *Client) ProductSet(ctx context.Context, kind productset.Kind) ([]int64, error) {
	var out ProductSetResponse
	if err := c.do(ctx, http.MethodGet, setPath(kind), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.IDs, nil
}

func (c *Client) AddToSet(ctx context.Context, kind productset.Kind, productID int64) error {
	return c.do(ctx, http.MethodPost, setPath(kind)+"/"+id(productID), nil, nil, nil)
}

func (c *Client) RemoveFromSet(ctx context.Context, kind productset.Kind, productID int64) error {
	return c.do(ctx, http.MethodDelete, setPath(kind)+"/"+id(productID), nil, nil, nil)
}

func (c *Client) Orders(ctx context.Context, page int, filter orders.Filter) (orders.Page, error) {
	q := url.Values{"page": {strconv.Itoa(page)}}
	if filter.Status != "" {
		q.Set("status", filter.Status)
	}
	var out orders.Page
	err := c.do(ctx, http.MethodGet, pathOrders, q, nil, &out)
	return out, err
}

func (c *Client) Order(ctx context.Context, orderID int64) (orders.Order, error) {
	var out orders.Order
	err := c.do(ctx, http.MethodGet, pathOrders+"/"+id(orderID), nil, nil, &out)
	return out, err
}

func (c *Client) CreateOrder(ctx context.Context, basketID int64, details orders.Details) (orders.Order, error) {
	var out orders.Order
	err := c.do(ctx, http.MethodPost, pathOrders, nil, CreateOrderRequest{BasketID: basketID, Details: details}, &out)
	return out, err
}

func (c *Client) Products(ctx context.Context, params catalog.ListParams) (catalog.Page, error) {
	var out catalog.Page
	if err := c.do(ctx, http.MethodGet, pathProducts, params.Query(), nil, &out); err != nil {
		return catalog.Page{}, fmt.Errorf("transport: list products: %w", err)
	}
	return out, nil
}
