// Package store defines the persistence port consumed by the dispatcher and
// the entity types that cross it. Implementations live in subpackages
// (memory, badger); the core depends only on the Store interface.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by lookups that address a single row which does
// not exist. List operations return empty slices instead.
var ErrNotFound = errors.New("store: not found")

// Roles carried on accounts. "utente" is an ordinary user, "gestore" a
// restaurant owner.
const (
	RoleUser  = "utente"
	RoleOwner = "gestore"
)

// Restaurant is a directory listing. Name is the natural key; uniqueness is
// deliberately not enforced here (duplicate names are observed upstream
// behavior and produce ambiguous aggregation, not an error).
type Restaurant struct {
	Name     string  `json:"name"`
	Country  string  `json:"country"`
	City     string  `json:"city"`
	Address  string  `json:"address"`
	Cuisine  string  `json:"cuisine"`
	Price    float64 `json:"price"`
	Delivery bool    `json:"delivery"`
	Online   bool    `json:"online"`
}

// Review is a star rating with free text. There is no surrogate key: a
// review is addressed by the (Author, Restaurant, Date, Time) tuple.
// Response is the manager's reply; empty means none.
type Review struct {
	Author     string `json:"author"`
	Restaurant string `json:"restaurant"`
	Stars      int    `json:"stars"`
	Text       string `json:"text"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Response   string `json:"response,omitempty"`
}

// ReviewKey addresses a single review for update and delete operations.
type ReviewKey struct {
	Author     string
	Restaurant string
	Date       string
	Time       string
}

// Key returns the identity tuple of a review.
func (r Review) Key() ReviewKey {
	return ReviewKey{Author: r.Author, Restaurant: r.Restaurant, Date: r.Date, Time: r.Time}
}

// Account is a registered user. Password is an opaque stored credential in
// one of the three formats recognized by internal/auth; the store never
// interprets it.
type Account struct {
	Username  string `json:"username"`
	GivenName string `json:"given_name"`
	Surname   string `json:"surname"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	BirthDate string `json:"birth_date"`
	Location  string `json:"location"`
	Role      string `json:"role"`
}

// Favorite is a user→restaurant edge. City and address are carried
// redundantly because restaurant names are not guaranteed unique.
type Favorite struct {
	Username   string `json:"username"`
	Restaurant string `json:"restaurant"`
	City       string `json:"city"`
	Address    string `json:"address"`
}

// SearchFilter narrows a restaurant search. Zero-valued fields apply no
// filter. String matches are case-insensitive. PriceTier is either a bucket
// label ("<10", "10-15", "15-20", ">20") or a plain number used as a ceiling.
type SearchFilter struct {
	Country   string
	City      string
	Cuisine   string
	PriceTier string
	Delivery  *bool
	Online    *bool
}

// RestaurantUpdate carries the full replacement field set for an update,
// including the (possibly unchanged) new name.
type RestaurantUpdate struct {
	Name     string
	City     string
	Address  string
	Cuisine  string
	Price    float64
	Delivery bool
	Online   bool
}

// Store is the persistence port. Implementations must be safe for concurrent
// use from many connection handlers; the core never assumes single-writer
// access, so conflicting writes to the same row resolve last-write-wins.
//
// Boolean-returning mutations report whether the addressed row existed;
// they return an error only for store-level failures.
type Store interface {
	// Restaurants.
	FindRestaurants(ctx context.Context, filter SearchFilter) ([]Restaurant, error)
	InsertRestaurant(ctx context.Context, r Restaurant) (bool, error)
	UpdateRestaurant(ctx context.Context, oldName string, upd RestaurantUpdate) (bool, error)
	DeleteRestaurant(ctx context.Context, name string) (bool, error)

	// Reviews. FindReviews returns chronological order (date, then time);
	// a missing restaurant yields an empty list, not an error.
	FindReviews(ctx context.Context, restaurant string) ([]Review, error)
	FindReviewsByAuthor(ctx context.Context, restaurant, author string) ([]Review, error)
	InsertReview(ctx context.Context, rev Review) error
	UpdateReview(ctx context.Context, key ReviewKey, stars int, text, newDate, newTime string) (bool, error)
	DeleteReview(ctx context.Context, key ReviewKey) (bool, error)

	// SetManagerResponse sets or clears (empty text) the response field.
	SetManagerResponse(ctx context.Context, key ReviewKey, text string) (bool, error)

	// Accounts.
	FindAccount(ctx context.Context, username string) (Account, error)
	InsertAccount(ctx context.Context, a Account) (bool, error)
	UpdatePassword(ctx context.Context, username, newStored string) error

	// AccountExists reports whether any account matches the given username
	// or email under case-insensitive comparison.
	AccountExists(ctx context.Context, usernameOrEmail string) (bool, error)

	// Favorites. AddFavorite is idempotent: re-adding an existing edge
	// leaves exactly one edge and returns true.
	IsFavorite(ctx context.Context, fav Favorite) (bool, error)
	AddFavorite(ctx context.Context, fav Favorite) (bool, error)
	RemoveFavorite(ctx context.Context, fav Favorite) (bool, error)

	// Aggregates, computed over all reviews keyed by restaurant name.
	AggregateRatings(ctx context.Context) (map[string]float64, error)
	AggregateReviewCounts(ctx context.Context) (map[string]int, error)

	Close() error
}
