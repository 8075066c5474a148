package keyspace

// Domains of the storefront keyspace.
const (
	DomainSession    = "session"
	DomainProducts   = "products"
	DomainBasket     = "basket"
	DomainFavorites  = "favorites"
	DomainComparison = "comparison"
	DomainOrders     = "orders"
)

const (
	subList   = "list"
	subDetail = "detail"
)

// Session addresses the current identity read.
func Session() Key { return For(DomainSession) }

// Products is the prefix of every catalog read.
func Products() Key { return For(DomainProducts) }

// ProductLists is the prefix of every product listing page.
func ProductLists() Key { return For(DomainProducts, subList) }

// ProductList addresses one listing page. params is usually a catalog.ListParams
// which renders its own canonical segment.
func ProductList(params any) Key { return For(DomainProducts, subList, params) }

// ProductDetail addresses a product page by its code.
func ProductDetail(code string) Key { return For(DomainProducts, subDetail, code) }

// Baskets is the prefix of every basket read.
func Baskets() Key { return For(DomainBasket) }

// Basket addresses the basket snapshot of an identity. Zero is anonymous.
func Basket(identityID int64) Key { return For(DomainBasket, identityID) }

// Favorites is the prefix of every favorites read.
func Favorites() Key { return For(DomainFavorites) }

// FavoritesOf addresses the favorites set of an identity.
func FavoritesOf(identityID int64) Key { return For(DomainFavorites, identityID) }

// Comparison is the prefix of every comparison list read.
func Comparison() Key { return For(DomainComparison) }

// ComparisonOf addresses the comparison set of an identity.
func ComparisonOf(identityID int64) Key { return For(DomainComparison, identityID) }

// Orders is the prefix of every order read.
func Orders() Key { return For(DomainOrders) }

// OrdersOf is the prefix of every order read of one identity.
func OrdersOf(identityID int64) Key { return For(DomainOrders, identityID) }

// OrderList addresses one page of an identity's order history.
func OrderList(identityID int64, page int, filters any) Key {
	return For(DomainOrders, identityID, subList, page, filters)
}

// OrderDetail addresses a single order.
func OrderDetail(identityID int64, orderID int64) Key {
	return For(DomainOrders, identityID, subDetail, orderID)
}
