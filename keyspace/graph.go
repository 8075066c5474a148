package keyspace

// Event names a server side change a mutation reports on success.
type Event string

const (
	BasketChanged     Event = "basket.changed"
	OrderCreated      Event = "order.created"
	FavoritesChanged  Event = "favorites.changed"
	ComparisonChanged Event = "comparison.changed"
	CatalogChanged    Event = "catalog.changed"
	IdentityChanged   Event = "identity.changed"
)

// graph lists, per event, the prefixes whose reads can no longer be trusted.
// Placing an order empties the basket and can change stock shown on product
// pages, so it fans out further than a basket edit.
var graph = map[Event][]Key{
	BasketChanged:     {Baskets()},
	OrderCreated:      {Orders(), Baskets(), Products()},
	FavoritesChanged:  {Favorites()},
	ComparisonChanged: {Comparison()},
	CatalogChanged:    {Products()},
	IdentityChanged:   {Session()},
}

// Invalidates returns the prefixes to invalidate after event. Unknown events
// invalidate nothing.
func Invalidates(event Event) []Key {
	keys := graph[event]
	return append([]Key(nil), keys...)
}

// PerUser lists the prefixes holding data tied to the current identity. The
// cascade controller resets or invalidates exactly these.
func PerUser() []Key {
	return []Key{Baskets(), Favorites(), Comparison(), Orders()}
}
