package testsupport

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/goliatone/go-storefront-cache/basket"
	"github.com/goliatone/go-storefront-cache/cache"
	"github.com/goliatone/go-storefront-cache/catalog"
	"github.com/goliatone/go-storefront-cache/identity"
	"github.com/goliatone/go-storefront-cache/orders"
	"github.com/goliatone/go-storefront-cache/productset"
)

// Operation names used by Calls and FailNext.
const (
	OpCurrentIdentity = "CurrentIdentity"
	OpSignIn          = "SignIn"
	OpSignOut         = "SignOut"
	OpRegister        = "Register"
	OpBaskets         = "Baskets"
	OpCreateBasket    = "CreateBasket"
	OpAddItem         = "AddItem"
	OpRemoveItem      = "RemoveItem"
	OpSetQuantity     = "SetQuantity"
	OpProductSet      = "ProductSet"
	OpAddToSet        = "AddToSet"
	OpRemoveFromSet   = "RemoveFromSet"
	OpOrders          = "Orders"
	OpOrder           = "Order"
	OpCreateOrder     = "CreateOrder"
	OpProducts        = "Products"
)

const (
	ordersPageSize = 10
	// baskets at or above this subtotal get discountRate off.
	discountFrom = 1000
	discountRate = "0.05"
)

// ValidationError is a rejected request naming the offending fields.
type ValidationError struct {
	Message string
	Fields  map[string][]string
}

func (e *ValidationError) Error() string { return "testsupport: " + e.Message }

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Message: "validation failed", Fields: map[string][]string{field: {msg}}}
}

func notFound(what string, id int64) error {
	return fmt.Errorf("%w: %s %d", cache.ErrNotFound, what, id)
}

// Session is one client of the storefront. Anonymous sessions own their
// baskets and lists until they sign in.
type Session struct {
	ID     string
	UserID int64
}

func (s *Session) owner() string {
	if s.UserID > 0 {
		return "user:" + strconv.FormatInt(s.UserID, 10)
	}
	return "anon:" + s.ID
}

// Option configures a Storefront.
type Option func(*Storefront)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Storefront) { s.now = now }
}

// WithTokenTTL sets how long issued access tokens are valid.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Storefront) { s.tokenTTL = ttl }
}

// WithSeed replaces the default seed.
func WithSeed(seed Seed) Option {
	return func(s *Storefront) { s.seed = seed }
}

// Storefront is an in-memory storefront server. Its exported methods serve
// one in-process session and implement the API interfaces of every cache;
// NewServer exposes it over HTTP with a session per cookie.
type Storefront struct {
	secret   []byte
	now      func() time.Time
	tokenTTL time.Duration
	seed     Seed
	local    *Session

	mu         sync.Mutex
	accounts   map[string]*Account
	products   []catalog.Product
	baskets    map[string][]basket.Basket
	sets       map[string]map[productset.Kind][]int64
	orders     map[string][]orders.Order
	sessions   map[string]*Session
	nextUser   int64
	nextBasket int64
	nextOrder  int64
	calls      map[string]int
	failures   map[string][]error
	delay      map[string]time.Duration
}

var (
	_ identity.API   = (*Storefront)(nil)
	_ basket.API     = (*Storefront)(nil)
	_ productset.API = (*Storefront)(nil)
	_ orders.API     = (*Storefront)(nil)
	_ catalog.API    = (*Storefront)(nil)
)

// NewStorefront builds a storefront holding the default seed.
func NewStorefront(opts ...Option) *Storefront {
	s := &Storefront{
		secret:   []byte(uuid.NewString()),
		now:      time.Now,
		tokenTTL: time.Hour,
		seed:     DefaultSeed(),
		accounts: make(map[string]*Account),
		baskets:  make(map[string][]basket.Basket),
		sets:     make(map[string]map[productset.Kind][]int64),
		orders:   make(map[string][]orders.Order),
		sessions: make(map[string]*Session),
		calls:    make(map[string]int),
		failures: make(map[string][]error),
		delay:    make(map[string]time.Duration),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, a := range s.seed.Accounts {
		acc := a
		s.accounts[strings.ToLower(acc.Email)] = &acc
		s.nextUser = max(s.nextUser, acc.ID)
	}
	s.products = slices.Clone(s.seed.Products)
	s.local = s.newSessionLocked()
	return s
}

func (s *Storefront) newSessionLocked() *Session {
	sess := &Session{ID: uuid.NewString()}
	s.sessions[sess.ID] = sess
	return sess
}

// NewSession opens an anonymous session.
func (s *Storefront) NewSession() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newSessionLocked()
}

// Local returns the in-process session.
func (s *Storefront) Local() *Session { return s.local }

// Calls returns how many times op was invoked, failed calls included.
func (s *Storefront) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// FailNext makes the next call of op return err. Queued errors are used in
// order.
func (s *Storefront) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], err)
}

// Delay makes every call of op wait d before answering.
func (s *Storefront) Delay(op string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay[op] = d
}

// begin counts a call and returns its injected failure, if any. It must be
// called without holding mu.
func (s *Storefront) begin(ctx context.Context, op string) error {
	s.mu.Lock()
	s.calls[op]++
	d := s.delay[op]
	var injected error
	if queue := s.failures[op]; len(queue) > 0 {
		injected, s.failures[op] = queue[0], queue[1:]
	}
	s.mu.Unlock()

	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return injected
}

// Identity

func (s *Storefront) accountByID(id int64) *Account {
	for _, a := range s.accounts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (s *Storefront) issue(sess *Session, acc *Account) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(acc.ID, 10),
		"sid": sess.ID,
		"jti": uuid.NewString(),
		"iat": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Authenticate resolves a bearer token to its live session. Tokens of ended
// sessions are rejected.
func (s *Storefront) Authenticate(token string) (*Session, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	).ParseWithClaims(token, claims, func(*jwt.Token) (any, error) { return s.secret, nil })
	if err != nil {
		return nil, fmt.Errorf("%w: %w", identity.ErrUnauthorized, err)
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", identity.ErrUnauthorized, err)
	}
	uid, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: subject %q", identity.ErrUnauthorized, sub)
	}
	sid, _ := claims["sid"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sid]
	if !ok || sess.UserID != uid {
		return nil, fmt.Errorf("%w: session ended", identity.ErrUnauthorized)
	}
	return sess, nil
}

// Session returns the session with id, or false.
func (s *Storefront) Session(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// IdentityOf reads the identity of sess. The access token expiry is only
// carried inside the token.
func (s *Storefront) IdentityOf(ctx context.Context, sess *Session) (*identity.Identity, error) {
	if err := s.begin(ctx, OpCurrentIdentity); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acc := s.accountByID(sess.UserID)
	if acc == nil {
		return nil, identity.ErrUnauthorized
	}
	token, err := s.issue(sess, acc)
	if err != nil {
		return nil, err
	}
	attrs := map[string]string{"email": acc.Email, "name": acc.Name}
	for k, v := range acc.Attributes {
		attrs[k] = v
	}
	return &identity.Identity{ID: acc.ID, AccessToken: token, Attributes: attrs}, nil
}

// SignInAs signs sess in, moving its anonymous basket lines to the user.
func (s *Storefront) SignInAs(ctx context.Context, sess *Session, creds identity.Credentials) error {
	if err := s.begin(ctx, OpSignIn); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[strings.ToLower(creds.Email)]
	if !ok || acc.Password != creds.Password {
		return &ValidationError{Message: "invalid credentials", Fields: map[string][]string{
			"email": {"unknown email or wrong password"},
		}}
	}
	s.signInLocked(sess, acc)
	return nil
}

func (s *Storefront) signInLocked(sess *Session, acc *Account) {
	anon := sess.owner()
	sess.UserID = acc.ID
	owner := sess.owner()
	if anon == owner {
		return
	}

	for _, b := range s.baskets[anon] {
		for _, it := range b.Items {
			target := s.ensureBasketLocked(owner)
			s.addLineLocked(target, it.ProductID, it.Quantity)
		}
	}
	delete(s.baskets, anon)
	delete(s.sets, anon)
}

// SignOutOf ends the user session of sess. The anonymous state it had before
// signing in is gone.
func (s *Storefront) SignOutOf(ctx context.Context, sess *Session) error {
	if err := s.begin(ctx, OpSignOut); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.UserID == 0 {
		return identity.ErrUnauthorized
	}
	sess.UserID = 0
	return nil
}

// RegisterAs creates an account and signs sess in.
func (s *Storefront) RegisterAs(ctx context.Context, sess *Session, reg identity.Registration) error {
	if err := s.begin(ctx, OpRegister); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	fields := map[string][]string{}
	email := strings.ToLower(strings.TrimSpace(reg.Email))
	switch {
	case !strings.Contains(email, "@"):
		fields["email"] = append(fields["email"], "must be an email address")
	case s.accounts[email] != nil:
		fields["email"] = append(fields["email"], "is already registered")
	}
	if len(reg.Password) < 8 {
		fields["password"] = append(fields["password"], "must be at least 8 characters")
	}
	if len(fields) > 0 {
		return &ValidationError{Message: "validation failed", Fields: fields}
	}

	s.nextUser++
	acc := &Account{ID: s.nextUser, Email: email, Password: reg.Password, Name: reg.Name, Attributes: reg.Attributes}
	s.accounts[email] = acc
	s.signInLocked(sess, acc)
	return nil
}

func (s *Storefront) CurrentIdentity(ctx context.Context) (*identity.Identity, error) {
	return s.IdentityOf(ctx, s.local)
}

func (s *Storefront) SignIn(ctx context.Context, creds identity.Credentials) error {
	return s.SignInAs(ctx, s.local, creds)
}

func (s *Storefront) SignOut(ctx context.Context) error {
	return s.SignOutOf(ctx, s.local)
}

func (s *Storefront) Register(ctx context.Context, reg identity.Registration) error {
	return s.RegisterAs(ctx, s.local, reg)
}

// Baskets

func (s *Storefront) product(id int64) (catalog.Product, bool) {
	i := slices.IndexFunc(s.products, func(p catalog.Product) bool { return p.ID == id })
	if i < 0 {
		return catalog.Product{}, false
	}
	return s.products[i], true
}

func (s *Storefront) ensureBasketLocked(owner string) *basket.Basket {
	if len(s.baskets[owner]) == 0 {
		s.nextBasket++
		s.baskets[owner] = []basket.Basket{{ID: s.nextBasket}}
	}
	return &s.baskets[owner][0]
}

func (s *Storefront) findBasketLocked(owner string, id int64) (*basket.Basket, error) {
	list := s.baskets[owner]
	for i := range list {
		if list[i].ID == id {
			return &list[i], nil
		}
	}
	return nil, notFound("basket", id)
}

func (s *Storefront) addLineLocked(b *basket.Basket, productID int64, qty int) {
	p, _ := s.product(productID)
	if i := slices.IndexFunc(b.Items, func(it basket.Item) bool { return it.ProductID == productID }); i >= 0 {
		b.Items[i].Quantity += qty
	} else {
		b.Items = append(b.Items, basket.Item{ProductID: productID, Name: p.Name, Quantity: qty, Price: p.Price})
	}
	reprice(b)
}

func reprice(b *basket.Basket) {
	subtotal := decimal.Zero
	for _, it := range b.Items {
		subtotal = subtotal.Add(it.Subtotal())
	}
	b.Discount = decimal.Zero
	if subtotal.GreaterThanOrEqual(decimal.NewFromInt(discountFrom)) {
		b.Discount = subtotal.Mul(decimal.RequireFromString(discountRate)).Round(2)
	}
}

func cloneBasket(b basket.Basket) basket.Basket {
	b.Items = slices.Clone(b.Items)
	return b
}

// BasketsOf lists the baskets of sess.
func (s *Storefront) BasketsOf(ctx context.Context, sess *Session) ([]basket.Basket, error) {
	if err := s.begin(ctx, OpBaskets); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]basket.Basket, 0, len(s.baskets[sess.owner()]))
	for _, b := range s.baskets[sess.owner()] {
		out = append(out, cloneBasket(b))
	}
	return out, nil
}

// CreateBasketFor opens a basket for sess.
func (s *Storefront) CreateBasketFor(ctx context.Context, sess *Session) (basket.Basket, error) {
	if err := s.begin(ctx, OpCreateBasket); err != nil {
		return basket.Basket{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextBasket++
	b := basket.Basket{ID: s.nextBasket}
	s.baskets[sess.owner()] = append(s.baskets[sess.owner()], b)
	return b, nil
}

// AddItemFor adds quantity units of productID to a basket of sess.
func (s *Storefront) AddItemFor(ctx context.Context, sess *Session, basketID, productID int64, quantity int) (basket.Basket, error) {
	if err := s.begin(ctx, OpAddItem); err != nil {
		return basket.Basket{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity < 1 {
		return basket.Basket{}, invalid("quantity", "must be at least 1")
	}
	if _, ok := s.product(productID); !ok {
		return basket.Basket{}, invalid("product_id", "unknown product")
	}
	b, err := s.findBasketLocked(sess.owner(), basketID)
	if err != nil {
		return basket.Basket{}, err
	}
	s.addLineLocked(b, productID, quantity)
	return cloneBasket(*b), nil
}

// RemoveItemFor drops a line from a basket of sess.
func (s *Storefront) RemoveItemFor(ctx context.Context, sess *Session, basketID, productID int64) error {
	if err := s.begin(ctx, OpRemoveItem); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.findBasketLocked(sess.owner(), basketID)
	if err != nil {
		return err
	}
	b.Items = slices.DeleteFunc(b.Items, func(it basket.Item) bool { return it.ProductID == productID })
	reprice(b)
	return nil
}

// SetQuantityFor replaces the quantity of a line in a basket of sess.
func (s *Storefront) SetQuantityFor(ctx context.Context, sess *Session, basketID, productID int64, quantity int) error {
	if err := s.begin(ctx, OpSetQuantity); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity < 1 {
		return invalid("quantity", "must be at least 1")
	}
	b, err := s.findBasketLocked(sess.owner(), basketID)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(b.Items, func(it basket.Item) bool { return it.ProductID == productID })
	if i < 0 {
		return notFound("basket item", productID)
	}
	b.Items[i].Quantity = quantity
	reprice(b)
	return nil
}

func (s *Storefront) Baskets(ctx context.Context) ([]basket.Basket, error) {
	return s.BasketsOf(ctx, s.local)
}

func (s *Storefront) CreateBasket(ctx context.Context) (basket.Basket, error) {
	return s.CreateBasketFor(ctx, s.local)
}

func (s *Storefront) AddItem(ctx context.Context, basketID, productID int64, quantity int) (basket.Basket, error) {
	return s.AddItemFor(ctx, s.local, basketID, productID, quantity)
}

func (s *Storefront) RemoveItem(ctx context.Context, basketID, productID int64) error {
	return s.RemoveItemFor(ctx, s.local, basketID, productID)
}

func (s *Storefront) SetQuantity(ctx context.Context, basketID, productID int64, quantity int) error {
	return s.SetQuantityFor(ctx, s.local, basketID, productID, quantity)
}

// Product sets

// ProductSetOf lists the kind set of sess.
func (s *Storefront) ProductSetOf(ctx context.Context, sess *Session, kind productset.Kind) ([]int64, error) {
	if err := s.begin(ctx, OpProductSet); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sets[sess.owner()][kind]), nil
}

// AddToSetFor puts productID in the kind set of sess. Adding twice is a
// no-op.
func (s *Storefront) AddToSetFor(ctx context.Context, sess *Session, kind productset.Kind, productID int64) error {
	if err := s.begin(ctx, OpAddToSet); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.product(productID); !ok {
		return invalid("product_id", "unknown product")
	}
	owner := sess.owner()
	if s.sets[owner] == nil {
		s.sets[owner] = make(map[productset.Kind][]int64)
	}
	ids := s.sets[owner][kind]
	if i, found := slices.BinarySearch(ids, productID); !found {
		s.sets[owner][kind] = slices.Insert(ids, i, productID)
	}
	return nil
}

// RemoveFromSetFor takes productID out of the kind set of sess.
func (s *Storefront) RemoveFromSetFor(ctx context.Context, sess *Session, kind productset.Kind, productID int64) error {
	if err := s.begin(ctx, OpRemoveFromSet); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	owner := sess.owner()
	if s.sets[owner] == nil {
		return nil
	}
	s.sets[owner][kind] = slices.DeleteFunc(s.sets[owner][kind], func(id int64) bool { return id == productID })
	return nil
}

func (s *Storefront) ProductSet(ctx context.Context, kind productset.Kind) ([]int64, error) {
	return s.ProductSetOf(ctx, s.local, kind)
}

func (s *Storefront) AddToSet(ctx context.Context, kind productset.Kind, productID int64) error {
	return s.AddToSetFor(ctx, s.local, kind, productID)
}

func (s *Storefront) RemoveFromSet(ctx context.Context, kind productset.Kind, productID int64) error {
	return s.RemoveFromSetFor(ctx, s.local, kind, productID)
}

// Orders

// OrdersOf lists one page of the orders of sess, newest first. Anonymous
// sessions have no order history.
func (s *Storefront) OrdersOf(ctx context.Context, sess *Session, page int, filter orders.Filter) (orders.Page, error) {
	if err := s.begin(ctx, OpOrders); err != nil {
		return orders.Page{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.UserID == 0 {
		return orders.Page{}, identity.ErrUnauthorized
	}
	var matched []orders.Order
	all := s.orders[sess.owner()]
	for i := len(all) - 1; i >= 0; i-- {
		if filter.Status == "" || all[i].Status == filter.Status {
			matched = append(matched, cloneOrder(all[i]))
		}
	}
	page = max(page, 1)
	from, to := paginate(len(matched), page, ordersPageSize)
	return orders.Page{
		Orders: matched[from:to],
		Page:   page,
		Pages:  pages(len(matched), ordersPageSize),
		Total:  len(matched),
	}, nil
}

// OrderOf reads one order of sess.
func (s *Storefront) OrderOf(ctx context.Context, sess *Session, id int64) (orders.Order, error) {
	if err := s.begin(ctx, OpOrder); err != nil {
		return orders.Order{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.UserID == 0 {
		return orders.Order{}, identity.ErrUnauthorized
	}
	for _, o := range s.orders[sess.owner()] {
		if o.ID == id {
			return cloneOrder(o), nil
		}
	}
	return orders.Order{}, notFound("order", id)
}

// CreateOrderFor places an order from a basket of sess; the basket is
// consumed.
func (s *Storefront) CreateOrderFor(ctx context.Context, sess *Session, basketID int64, details orders.Details) (orders.Order, error) {
	if err := s.begin(ctx, OpCreateOrder); err != nil {
		return orders.Order{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.UserID == 0 {
		return orders.Order{}, identity.ErrUnauthorized
	}
	fields := map[string][]string{}
	for field, v := range map[string]string{"name": details.Name, "phone": details.Phone, "address": details.Address} {
		if strings.TrimSpace(v) == "" {
			fields[field] = []string{"is required"}
		}
	}
	if len(fields) > 0 {
		return orders.Order{}, &ValidationError{Message: "validation failed", Fields: fields}
	}

	owner := sess.owner()
	b, err := s.findBasketLocked(owner, basketID)
	if err != nil {
		return orders.Order{}, err
	}
	if len(b.Items) == 0 {
		return orders.Order{}, invalid("basket_id", "basket is empty")
	}

	s.nextOrder++
	o := orders.Order{
		ID:        s.nextOrder,
		BasketID:  b.ID,
		Status:    "new",
		Items:     slices.Clone(b.Items),
		Total:     b.Total(),
		Details:   details,
		CreatedAt: s.now().UTC(),
	}
	s.orders[owner] = append(s.orders[owner], o)
	s.baskets[owner] = slices.DeleteFunc(s.baskets[owner], func(x basket.Basket) bool { return x.ID == basketID })
	return cloneOrder(o), nil
}

func cloneOrder(o orders.Order) orders.Order {
	o.Items = slices.Clone(o.Items)
	return o
}

func (s *Storefront) Orders(ctx context.Context, page int, filter orders.Filter) (orders.Page, error) {
	return s.OrdersOf(ctx, s.local, page, filter)
}

func (s *Storefront) Order(ctx context.Context, id int64) (orders.Order, error) {
	return s.OrderOf(ctx, s.local, id)
}

func (s *Storefront) CreateOrder(ctx context.Context, basketID int64, details orders.Details) (orders.Order, error) {
	return s.CreateOrderFor(ctx, s.local, basketID, details)
}

// Products

// Products lists products. category, manufacturer and in_stock match any of
// their values, q matches names, price_min and price_max bound the price.
// Facets describe the category and search context, whatever the other
// filters.
func (s *Storefront) Products(ctx context.Context, p catalog.ListParams) (catalog.Page, error) {
	if err := s.begin(ctx, OpProducts); err != nil {
		return catalog.Page{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var scope, matched []catalog.Product
	for _, prod := range s.products {
		if !inContext(prod, p.Filters) {
			continue
		}
		scope = append(scope, prod)
		ok, err := matches(prod, p.Filters)
		if err != nil {
			return catalog.Page{}, err
		}
		if ok {
			matched = append(matched, prod)
		}
	}
	if err := order(matched, p.Order); err != nil {
		return catalog.Page{}, err
	}

	size := p.PageSize
	if size < 1 {
		size = 24
	}
	page := max(p.Page, 1)
	from, to := paginate(len(matched), page, size)
	return catalog.Page{
		Products: slices.Clone(matched[from:to]),
		Page:     page,
		Pages:    pages(len(matched), size),
		Total:    len(matched),
		Facets:   facets(scope),
	}, nil
}

func inContext(p catalog.Product, fs catalog.FilterSet) bool {
	if cats := catalog.ListOf(fs, "category"); len(cats) > 0 && !slices.Contains(cats, p.Category) {
		return false
	}
	if q := catalog.ListOf(fs, "q"); len(q) > 0 && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q[0])) {
		return false
	}
	return true
}

func matches(p catalog.Product, fs catalog.FilterSet) (bool, error) {
	if m := catalog.ListOf(fs, "manufacturer"); len(m) > 0 && !slices.Contains(m, p.Manufacturer) {
		return false, nil
	}
	if v := catalog.ListOf(fs, "in_stock"); len(v) > 0 && !slices.Contains(v, strconv.FormatBool(p.InStock)) {
		return false, nil
	}
	lo, hi, ok := catalog.RangeOf(fs, "price")
	if !ok {
		return true, nil
	}
	if lo != "" {
		floor, err := decimal.NewFromString(lo)
		if err != nil {
			return false, invalid("price_min", "must be a number")
		}
		if p.Price.LessThan(floor) {
			return false, nil
		}
	}
	if hi != "" {
		ceiling, err := decimal.NewFromString(hi)
		if err != nil {
			return false, invalid("price_max", "must be a number")
		}
		if p.Price.GreaterThan(ceiling) {
			return false, nil
		}
	}
	return true, nil
}

func order(products []catalog.Product, by string) error {
	var cmp func(a, b catalog.Product) int
	switch by {
	case "":
		cmp = func(a, b catalog.Product) int { return int(a.ID - b.ID) }
	case "price":
		cmp = func(a, b catalog.Product) int { return a.Price.Cmp(b.Price) }
	case "-price":
		cmp = func(a, b catalog.Product) int { return b.Price.Cmp(a.Price) }
	case "name":
		cmp = func(a, b catalog.Product) int { return strings.Compare(a.Name, b.Name) }
	default:
		return invalid("order", "unknown order")
	}
	slices.SortStableFunc(products, cmp)
	return nil
}

func facets(scope []catalog.Product) []catalog.Facet {
	if len(scope) == 0 {
		return nil
	}
	lo, hi := scope[0].Price, scope[0].Price
	counts := map[string]int{}
	for _, p := range scope {
		lo, hi = decimal.Min(lo, p.Price), decimal.Max(hi, p.Price)
		if p.Manufacturer != "" {
			counts[p.Manufacturer]++
		}
	}
	choices := make([]catalog.Choice, 0, len(counts))
	for v, n := range counts {
		choices = append(choices, catalog.Choice{Value: v, Label: "Manufacturer " + v, Count: n})
	}
	slices.SortFunc(choices, func(a, b catalog.Choice) int { return strings.Compare(a.Value, b.Value) })

	return []catalog.Facet{
		{Field: "manufacturer", Kind: catalog.FacetChoice, Label: "Manufacturer", Choices: choices},
		{Field: "price", Kind: catalog.FacetRange, Label: "Price", Min: &lo, Max: &hi},
	}
}

func paginate(n, page, size int) (from, to int) {
	from = min((page-1)*size, n)
	to = min(from+size, n)
	return from, to
}

func pages(n, size int) int {
	return max((n+size-1)/size, 1)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
