package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrosetti/forchetta/pkg/store"
)

func TestDecodeValidRequests(t *testing.T) {
	boolp := func(b bool) *bool { return &b }

	tests := []struct {
		name string
		line string
		want Command
	}{
		{
			"search with every filter",
			"SEARCH_RESTAURANTS:Italy|Rome|Pizza|10-15|true|false",
			SearchRestaurants{Filter: store.SearchFilter{
				Country: "Italy", City: "Rome", Cuisine: "Pizza",
				PriceTier: "10-15", Delivery: boolp(true), Online: boolp(false),
			}},
		},
		{
			"search with empty filter",
			"SEARCH_RESTAURANTS:|||||",
			SearchRestaurants{},
		},
		{
			"search with short field list",
			"SEARCH_RESTAURANTS:Italy",
			SearchRestaurants{Filter: store.SearchFilter{Country: "Italy"}},
		},
		{
			"get reviews keeps the rest of the line",
			"GET_REVIEWS:Trattoria Anna",
			GetReviews{Restaurant: "Trattoria Anna"},
		},
		{
			"review text may contain the field separator",
			"ADD_REVIEW:alice|Da Mario|5|great pizza | great wine",
			AddReview{Username: "alice", Restaurant: "Da Mario", Stars: 5, Text: "great pizza | great wine"},
		},
		{
			"update review",
			"UPDATE_REVIEW:alice|Da Mario|2026-01-15|19:30:00|3|cooled off | a bit",
			UpdateReview{
				Username: "alice", Restaurant: "Da Mario",
				Date: "2026-01-15", Time: "19:30:00",
				Stars: 3, Text: "cooled off | a bit",
			},
		},
		{
			"delete review",
			"DELETE_REVIEW:alice|Da Mario|2026-01-15|19:30:00",
			DeleteReview{Username: "alice", Restaurant: "Da Mario", Date: "2026-01-15", Time: "19:30:00"},
		},
		{
			"manager response carries free text",
			"UPDATE_MANAGER_RESPONSE:marco|Da Mario|2026-01-15|19:30:00|thanks | come back soon",
			UpdateManagerResponse{
				Username: "marco", Restaurant: "Da Mario",
				Date: "2026-01-15", Time: "19:30:00",
				Response: "thanks | come back soon",
			},
		},
		{
			"login",
			"LOGIN:alice|5f4dcc3b5aa765d61d8327deb882cf99",
			Login{Username: "alice", Digest: "5f4dcc3b5aa765d61d8327deb882cf99"},
		},
		{
			"salted login",
			"LOGIN_SALTED:alice|password",
			LoginSalted{Username: "alice", Password: "password"},
		},
		{
			"register",
			"REGISTER:Alice|Rossi|alice|alice@example.com|5f4dcc3b5aa765d61d8327deb882cf99|1990-04-02|Rome|utente",
			Register{
				GivenName: "Alice", Surname: "Rossi", Username: "alice",
				Email: "alice@example.com", Password: "5f4dcc3b5aa765d61d8327deb882cf99",
				BirthDate: "1990-04-02", Location: "Rome", Role: "utente",
			},
		},
		{
			"salted register sets the flag",
			"REGISTER_SALTED:Alice|Rossi|alice|alice@example.com|password|1990-04-02|Rome|utente",
			Register{
				GivenName: "Alice", Surname: "Rossi", Username: "alice",
				Email: "alice@example.com", Password: "password",
				BirthDate: "1990-04-02", Location: "Rome", Role: "utente",
				Salted: true,
			},
		},
		{
			"add restaurant",
			"ADD_RESTAURANT:Da Mario|Italy|Rome|Via Roma 1|12.5|true|false|Pizza|marco",
			AddRestaurant{
				Restaurant: store.Restaurant{
					Name: "Da Mario", Country: "Italy", City: "Rome",
					Address: "Via Roma 1", Price: 12.5, Delivery: true, Cuisine: "Pizza",
				},
				Username: "marco",
			},
		},
		{
			"update restaurant",
			"UPDATE_RESTAURANT:Da Mario|Da Mario 2|Milan|Via Milano 2|Pizza|15|false|true",
			UpdateRestaurant{
				OldName: "Da Mario",
				Update: store.RestaurantUpdate{
					Name: "Da Mario 2", City: "Milan", Address: "Via Milano 2",
					Cuisine: "Pizza", Price: 15, Online: true,
				},
			},
		},
		{
			"delete restaurant keeps the rest of the line",
			"DELETE_RESTAURANT:Da Mario",
			DeleteRestaurant{Name: "Da Mario"},
		},
		{
			"user location",
			"GET_USER_LOCATION:alice",
			GetUserLocation{Username: "alice"},
		},
		{
			"check favorite",
			"CHECK_FAVORITE:alice|Da Mario|Rome|Via Roma 1",
			CheckFavorite{Favorite: store.Favorite{Username: "alice", Restaurant: "Da Mario", City: "Rome", Address: "Via Roma 1"}},
		},
		{
			"add favorite",
			"ADD_FAVORITE:alice|Da Mario|Rome|Via Roma 1",
			AddFavorite{Favorite: store.Favorite{Username: "alice", Restaurant: "Da Mario", City: "Rome", Address: "Via Roma 1"}},
		},
		{
			"remove favorite",
			"REMOVE_FAVORITE:alice|Da Mario|Rome|Via Roma 1",
			RemoveFavorite{Favorite: store.Favorite{Username: "alice", Restaurant: "Da Mario", City: "Rome", Address: "Via Roma 1"}},
		},
		{
			"exit sentinel",
			"EXIT",
			Exit{},
		},
		{
			"control characters are stripped before parsing",
			"GET_REVIEWS:Da\x00 Mario\r",
			GetReviews{Restaurant: "Da Mario"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeRejections(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantMsg string
	}{
		{"unknown verb", "FROBNICATE:x|y", "unrecognized command"},
		{"empty line", "", "unrecognized command"},
		{"missing argument block", "LOGIN", "malformed LOGIN request: expected username|digest"},
		{"too few fields", "LOGIN:alice", "malformed LOGIN request: expected username|digest"},
		{"too few review fields", "ADD_REVIEW:alice|Da Mario|5", "malformed ADD_REVIEW request: expected username|restaurant|stars|text"},
		{"too many search fields", "SEARCH_RESTAURANTS:a|b|c|d|true|false|extra", "malformed SEARCH_RESTAURANTS request: expected country|city|cuisine|priceTier|delivery|online"},
		{"non-numeric stars", "ADD_REVIEW:alice|Da Mario|five|nice", `invalid stars value "five"`},
		{"non-numeric price", "ADD_RESTAURANT:A|B|C|D|cheap|true|false|Pizza|u", `invalid price value "cheap"`},
		{"bad delivery flag", "SEARCH_RESTAURANTS:||||maybe|", `invalid delivery flag "maybe"`},
		{"empty get reviews", "GET_REVIEWS:", "malformed GET_REVIEWS request: expected restaurant"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := Decode(tt.line)
			require.Error(t, err)
			assert.Nil(t, cmd)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

// Every response line starts with exactly one status prefix and carries no
// raw newline, whatever the payload contains.
func TestEncodeAlwaysSingleLineWithStatus(t *testing.T) {
	payloads := []string{
		"",
		"done",
		"line one\nline two",
		"crlf\r\nhere",
		"lone carriage\rreturn",
		strings.Repeat("x|y||z\n", 100),
	}

	for _, p := range payloads {
		ok := EncodeOK(p)
		assert.True(t, strings.HasPrefix(ok, "OK:"), "payload %q", p)
		assert.NotContains(t, ok, "\n")
		assert.NotContains(t, ok, "\r")

		e := EncodeError(p)
		assert.True(t, strings.HasPrefix(e, "ERROR:"), "payload %q", p)
		assert.NotContains(t, e, "\n")
		assert.NotContains(t, e, "\r")
	}
}

func TestEncodeRestaurants(t *testing.T) {
	records := []RestaurantRecord{
		{
			Restaurant: store.Restaurant{
				Name: "Da Mario", Country: "Italy", City: "Rome",
				Address: "Via Roma 1", Cuisine: "Pizza", Price: 12.5,
				Delivery: true, Online: false,
			},
			AvgRating: 4.456, ReviewCount: 3,
		},
		{
			Restaurant: store.Restaurant{
				Name: "Sakura", Country: "Japan", City: "Osaka",
				Address: "1-2-3 Namba", Cuisine: "Sushi", Price: 25,
			},
		},
	}

	got := EncodeRestaurants(records)
	want := "Da Mario|Italy|Rome|Via Roma 1|Pizza|12.5|true|false|4.46|3" +
		"||" +
		"Sakura|Japan|Osaka|1-2-3 Namba|Sushi|25|false|false|0.0|0"
	assert.Equal(t, want, got)

	assert.Empty(t, EncodeRestaurants(nil))
}

func TestEncodeReviews(t *testing.T) {
	reviews := []store.Review{
		{Author: "alice", Restaurant: "Da Mario", Stars: 5, Text: "great", Date: "2026-01-15", Time: "19:30:00"},
		{Author: "bob", Restaurant: "Da Mario", Stars: 2, Text: "meh", Date: "2026-02-01", Time: "12:00:00", Response: "sorry to hear"},
	}

	got := EncodeReviews(reviews)
	want := "alice|Da Mario|5|great|2026-01-15|19:30:00" +
		"||" +
		"bob|Da Mario|2|meh|2026-02-01|12:00:00|sorry to hear"
	assert.Equal(t, want, got)
}
