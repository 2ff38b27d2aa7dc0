// Package storetest provides a behavioral test suite asserting the
// store.Store contract. Each implementation's test package runs the suite
// against a fresh instance.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrosetti/forchetta/pkg/store"
)

// Factory returns a fresh, empty store for one subtest. Cleanup is hooked
// onto t.
type Factory func(t *testing.T) store.Store

// Run executes the full contract suite against stores produced by factory.
func Run(t *testing.T, factory Factory) {
	t.Run("Restaurants", func(t *testing.T) { testRestaurants(t, factory(t)) })
	t.Run("RestaurantFilters", func(t *testing.T) { testRestaurantFilters(t, factory(t)) })
	t.Run("Reviews", func(t *testing.T) { testReviews(t, factory(t)) })
	t.Run("ManagerResponse", func(t *testing.T) { testManagerResponse(t, factory(t)) })
	t.Run("Accounts", func(t *testing.T) { testAccounts(t, factory(t)) })
	t.Run("Favorites", func(t *testing.T) { testFavorites(t, factory(t)) })
	t.Run("Aggregates", func(t *testing.T) { testAggregates(t, factory(t)) })
}

func testRestaurants(t *testing.T, s store.Store) {
	ctx := context.Background()

	ok, err := s.InsertRestaurant(ctx, store.Restaurant{
		Name: "Da Mario", Country: "Italy", City: "Rome",
		Address: "Via Roma 1", Cuisine: "Pizza", Price: 12.5, Delivery: true,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	found, err := s.FindRestaurants(ctx, store.SearchFilter{})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Da Mario", found[0].Name)

	// Rename plus field update.
	ok, err = s.UpdateRestaurant(ctx, "Da Mario", store.RestaurantUpdate{
		Name: "Da Mario 2", City: "Milan", Address: "Via Milano 2",
		Cuisine: "Pizza", Price: 15, Delivery: false, Online: true,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	found, err = s.FindRestaurants(ctx, store.SearchFilter{City: "milan"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Da Mario 2", found[0].Name)
	assert.Equal(t, "Italy", found[0].Country, "country survives update")
	assert.True(t, found[0].Online)

	// Update of a missing name reports false, not an error.
	ok, err = s.UpdateRestaurant(ctx, "Nope", store.RestaurantUpdate{Name: "Nope"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.DeleteRestaurant(ctx, "Da Mario 2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.DeleteRestaurant(ctx, "Da Mario 2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testRestaurantFilters(t *testing.T, s store.Store) {
	ctx := context.Background()
	boolp := func(b bool) *bool { return &b }

	seed := []store.Restaurant{
		{Name: "Trattoria Anna", Country: "Italy", City: "Rome", Cuisine: "Roman", Price: 8},
		{Name: "Sakura", Country: "Japan", City: "Osaka", Cuisine: "Sushi", Price: 25, Delivery: true},
		{Name: "Chez Luc", Country: "France", City: "Lyon", Cuisine: "French", Price: 14, Online: true},
	}
	for _, r := range seed {
		_, err := s.InsertRestaurant(ctx, r)
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter store.SearchFilter
		want   []string
	}{
		{"no filter", store.SearchFilter{}, []string{"Trattoria Anna", "Sakura", "Chez Luc"}},
		{"country case-insensitive", store.SearchFilter{Country: "italy"}, []string{"Trattoria Anna"}},
		{"price below ten", store.SearchFilter{PriceTier: "<10"}, []string{"Trattoria Anna"}},
		{"price range", store.SearchFilter{PriceTier: "10-15"}, []string{"Chez Luc"}},
		{"price above twenty", store.SearchFilter{PriceTier: ">20"}, []string{"Sakura"}},
		{"delivery only", store.SearchFilter{Delivery: boolp(true)}, []string{"Sakura"}},
		{"online false matches others", store.SearchFilter{Online: boolp(false)}, []string{"Trattoria Anna", "Sakura"}},
		{"no match", store.SearchFilter{Country: "Spain"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := s.FindRestaurants(ctx, tt.filter)
			require.NoError(t, err)

			var names []string
			for _, r := range found {
				names = append(names, r.Name)
			}
			assert.ElementsMatch(t, tt.want, names)
		})
	}
}

func testReviews(t *testing.T, s store.Store) {
	ctx := context.Background()

	reviews := []store.Review{
		{Author: "bob", Restaurant: "Da Mario", Stars: 4, Text: "good", Date: "2026-02-01", Time: "12:00:00"},
		{Author: "alice", Restaurant: "Da Mario", Stars: 5, Text: "great | really", Date: "2026-01-15", Time: "19:30:00"},
		{Author: "alice", Restaurant: "Sakura", Stars: 3, Text: "ok", Date: "2026-01-20", Time: "13:00:00"},
	}
	for _, rev := range reviews {
		require.NoError(t, s.InsertReview(ctx, rev))
	}

	// Chronological order, only the requested restaurant.
	found, err := s.FindReviews(ctx, "Da Mario")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "alice", found[0].Author)
	assert.Equal(t, "great | really", found[0].Text)
	assert.Equal(t, "bob", found[1].Author)

	// Unknown restaurant yields an empty list, not an error.
	found, err = s.FindReviews(ctx, "Nowhere")
	require.NoError(t, err)
	assert.Empty(t, found)

	byAuthor, err := s.FindReviewsByAuthor(ctx, "Da Mario", "alice")
	require.NoError(t, err)
	require.Len(t, byAuthor, 1)
	assert.Equal(t, 5, byAuthor[0].Stars)

	key := store.ReviewKey{Author: "bob", Restaurant: "Da Mario", Date: "2026-02-01", Time: "12:00:00"}
	ok, err := s.UpdateReview(ctx, key, 2, "changed my mind", "2026-02-02", "09:00:00")
	require.NoError(t, err)
	assert.True(t, ok)

	found, err = s.FindReviews(ctx, "Da Mario")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, 2, found[1].Stars)
	assert.Equal(t, "2026-02-02", found[1].Date, "update re-stamps the review")

	// The old identity tuple no longer addresses the row.
	ok, err = s.DeleteReview(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	newKey := store.ReviewKey{Author: "bob", Restaurant: "Da Mario", Date: "2026-02-02", Time: "09:00:00"}
	ok, err = s.DeleteReview(ctx, newKey)
	require.NoError(t, err)
	assert.True(t, ok)
}

func testManagerResponse(t *testing.T, s store.Store) {
	ctx := context.Background()

	rev := store.Review{Author: "carol", Restaurant: "Chez Luc", Stars: 1, Text: "cold soup", Date: "2026-03-01", Time: "20:00:00"}
	require.NoError(t, s.InsertReview(ctx, rev))

	ok, err := s.SetManagerResponse(ctx, rev.Key(), "we apologize")
	require.NoError(t, err)
	assert.True(t, ok)

	found, err := s.FindReviews(ctx, "Chez Luc")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "we apologize", found[0].Response)

	// Clearing sets the field back to empty.
	ok, err = s.SetManagerResponse(ctx, rev.Key(), "")
	require.NoError(t, err)
	assert.True(t, ok)

	found, err = s.FindReviews(ctx, "Chez Luc")
	require.NoError(t, err)
	assert.Empty(t, found[0].Response)

	ok, err = s.SetManagerResponse(ctx, store.ReviewKey{Author: "nobody"}, "x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testAccounts(t *testing.T, s store.Store) {
	ctx := context.Background()

	a := store.Account{
		Username: "Alice", GivenName: "Alice", Surname: "Rossi",
		Email: "alice@example.com", Password: "stored", Role: store.RoleUser,
		Location: "Rome",
	}
	ok, err := s.InsertAccount(ctx, a)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.FindAccount(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)

	_, err = s.FindAccount(ctx, "alice")
	assert.ErrorIs(t, err, store.ErrNotFound, "storage is case-sensitive")

	// Uniqueness check folds case over both username and email.
	for _, probe := range []string{"alice", "ALICE", "Alice@Example.com"} {
		exists, err := s.AccountExists(ctx, probe)
		require.NoError(t, err)
		assert.True(t, exists, "probe %q", probe)
	}
	exists, err := s.AccountExists(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.UpdatePassword(ctx, "Alice", "new-stored"))
	got, err = s.FindAccount(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "new-stored", got.Password)

	assert.ErrorIs(t, s.UpdatePassword(ctx, "ghost", "x"), store.ErrNotFound)

	ok, err = s.InsertAccount(ctx, a)
	require.NoError(t, err)
	assert.False(t, ok, "duplicate username is rejected")
}

func testFavorites(t *testing.T, s store.Store) {
	ctx := context.Background()

	fav := store.Favorite{Username: "alice", Restaurant: "Da Mario", City: "Rome", Address: "Via Roma 1"}

	is, err := s.IsFavorite(ctx, fav)
	require.NoError(t, err)
	assert.False(t, is)

	ok, err := s.AddFavorite(ctx, fav)
	require.NoError(t, err)
	assert.True(t, ok)

	// Idempotent: a second add leaves exactly one edge.
	ok, err = s.AddFavorite(ctx, fav)
	require.NoError(t, err)
	assert.True(t, ok)

	is, err = s.IsFavorite(ctx, fav)
	require.NoError(t, err)
	assert.True(t, is)

	ok, err = s.RemoveFavorite(ctx, fav)
	require.NoError(t, err)
	assert.True(t, ok)

	is, err = s.IsFavorite(ctx, fav)
	require.NoError(t, err)
	assert.False(t, is, "single remove clears the edge even after double add")

	ok, err = s.RemoveFavorite(ctx, fav)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testAggregates(t *testing.T, s store.Store) {
	ctx := context.Background()

	ratings, err := s.AggregateRatings(ctx)
	require.NoError(t, err)
	assert.Empty(t, ratings)

	reviews := []store.Review{
		{Author: "a", Restaurant: "Da Mario", Stars: 4, Date: "2026-01-01", Time: "10:00:00"},
		{Author: "b", Restaurant: "Da Mario", Stars: 5, Date: "2026-01-02", Time: "10:00:00"},
		{Author: "a", Restaurant: "Sakura", Stars: 2, Date: "2026-01-03", Time: "10:00:00"},
	}
	for _, rev := range reviews {
		require.NoError(t, s.InsertReview(ctx, rev))
	}

	ratings, err = s.AggregateRatings(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 4.5, ratings["Da Mario"], 1e-9)
	assert.InDelta(t, 2.0, ratings["Sakura"], 1e-9)

	counts, err := s.AggregateReviewCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts["Da Mario"])
	assert.Equal(t, 1, counts["Sakura"])
}
