package dispatch

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrosetti/forchetta/internal/auth"
	"github.com/mrosetti/forchetta/internal/protocol"
	"github.com/mrosetti/forchetta/pkg/store"
	"github.com/mrosetti/forchetta/pkg/store/memory"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *memory.MemoryStore) {
	t.Helper()
	s := memory.New()
	t.Cleanup(func() { _ = s.Close() })

	d := New(s, auth.NewVerifier())
	d.now = func() time.Time {
		return time.Date(2026, 8, 26, 13, 45, 30, 0, time.UTC)
	}
	return d, s
}

func handleLine(t *testing.T, d *Dispatcher, line string) string {
	t.Helper()
	cmd, err := protocol.Decode(line)
	require.NoError(t, err)
	return d.Handle(context.Background(), cmd)
}

func registerUser(t *testing.T, d *Dispatcher, username, password string) {
	t.Helper()
	resp := handleLine(t, d,
		"REGISTER_SALTED:Test|User|"+username+"|"+username+"@example.com|"+password+"|1990-01-01|Rome|utente")
	require.Equal(t, "OK:registered", resp)
}

func TestRegisterAndSaltedLogin(t *testing.T) {
	d, s := newTestDispatcher(t)
	registerUser(t, d, "alice", "secret")

	// Stored credential is already salted.
	account, err := s.FindAccount(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, auth.FormatSalted, auth.NewVerifier().DetectFormat(account.Password))

	resp := handleLine(t, d, "LOGIN_SALTED:alice|secret")
	assert.Equal(t, "OK:alice|Rome|utente", resp)

	resp = handleLine(t, d, "LOGIN_SALTED:alice|wrong")
	assert.Equal(t, "ERROR:invalid credentials", resp)
}

func TestLoginFailureIsUniform(t *testing.T) {
	d, _ := newTestDispatcher(t)
	registerUser(t, d, "alice", "secret")

	wrongPassword := handleLine(t, d, "LOGIN_SALTED:alice|wrong")
	noSuchUser := handleLine(t, d, "LOGIN_SALTED:ghost|wrong")
	assert.Equal(t, wrongPassword, noSuchUser, "responses must not reveal whether the account exists")
}

func TestDigestLoginAgainstLegacyAccount(t *testing.T) {
	d, s := newTestDispatcher(t)
	ctx := context.Background()

	digest := auth.LegacyDigest("secret")
	_, err := s.InsertAccount(ctx, store.Account{
		Username: "bob", Email: "bob@example.com", Password: digest,
		Location: "Milan", Role: store.RoleOwner,
	})
	require.NoError(t, err)

	resp := handleLine(t, d, "LOGIN:bob|"+digest)
	assert.Equal(t, "OK:bob|Milan|gestore", resp)

	resp = handleLine(t, d, "LOGIN:bob|"+auth.LegacyDigest("wrong"))
	assert.Equal(t, "ERROR:invalid credentials", resp)
}

func TestDigestLoginCannotVerifySaltedAccount(t *testing.T) {
	d, _ := newTestDispatcher(t)
	registerUser(t, d, "alice", "secret")

	resp := handleLine(t, d, "LOGIN:alice|"+auth.LegacyDigest("secret"))
	assert.Equal(t, "ERROR:invalid credentials", resp)
}

func TestSaltedLoginUpgradesLegacyCredential(t *testing.T) {
	d, s := newTestDispatcher(t)
	ctx := context.Background()

	_, err := s.InsertAccount(ctx, store.Account{
		Username: "carol", Email: "carol@example.com",
		Password: auth.LegacyDigest("secret"), Role: store.RoleUser,
	})
	require.NoError(t, err)

	resp := handleLine(t, d, "LOGIN_SALTED:carol|secret")
	assert.True(t, strings.HasPrefix(resp, "OK:"))

	account, err := s.FindAccount(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, auth.FormatSalted, auth.NewVerifier().DetectFormat(account.Password))

	// The upgraded credential still authenticates.
	resp = handleLine(t, d, "LOGIN_SALTED:carol|secret")
	assert.True(t, strings.HasPrefix(resp, "OK:"))
}

func TestDigestLoginUpgradesPlaintextCredential(t *testing.T) {
	d, s := newTestDispatcher(t)
	ctx := context.Background()

	_, err := s.InsertAccount(ctx, store.Account{
		Username: "dave", Email: "dave@example.com", Password: "secret",
	})
	require.NoError(t, err)

	resp := handleLine(t, d, "LOGIN:dave|"+auth.LegacyDigest("secret"))
	assert.True(t, strings.HasPrefix(resp, "OK:"))

	account, err := s.FindAccount(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, auth.FormatLegacyDigest, auth.NewVerifier().DetectFormat(account.Password))
}

func TestRegisterDuplicateChecksFoldCase(t *testing.T) {
	d, _ := newTestDispatcher(t)
	registerUser(t, d, "alice", "secret")

	tests := []struct {
		name string
		line string
	}{
		{"same username different case", "REGISTER_SALTED:A|B|ALICE|other@example.com|pw|1990-01-01|Rome|utente"},
		{"same email different case", "REGISTER_SALTED:A|B|alice2|Alice@Example.com|pw|1990-01-01|Rome|utente"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := handleLine(t, d, tt.line)
			assert.Equal(t, "ERROR:username or email already registered", resp)
		})
	}
}

func TestRegisterValidation(t *testing.T) {
	d, _ := newTestDispatcher(t)

	resp := handleLine(t, d, "REGISTER_SALTED:A|B||a@example.com|pw|1990-01-01|Rome|utente")
	assert.Equal(t, "ERROR:username, email and password are required", resp)

	resp = handleLine(t, d, "REGISTER_SALTED:A|B|eve|eve@example.com|pw|1990-01-01|Rome|admin")
	assert.Equal(t, `ERROR:unknown role "admin"`, resp)
}

func TestAddReviewStampsServerTime(t *testing.T) {
	d, s := newTestDispatcher(t)

	resp := handleLine(t, d, "ADD_REVIEW:alice|Da Mario|4|solid crust | thin")
	assert.Equal(t, "OK:review added", resp)

	reviews, err := s.FindReviews(context.Background(), "Da Mario")
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, "2026-08-26", reviews[0].Date)
	assert.Equal(t, "13:45:30", reviews[0].Time)
	assert.Equal(t, "solid crust | thin", reviews[0].Text)
}

func TestAddReviewRejectsStarsOutOfRange(t *testing.T) {
	d, _ := newTestDispatcher(t)

	for _, stars := range []string{"0", "6", "-1"} {
		resp := handleLine(t, d, "ADD_REVIEW:alice|Da Mario|"+stars+"|text")
		assert.True(t, strings.HasPrefix(resp, "ERROR:stars must be between 1 and 5"), "stars=%s got %s", stars, resp)
	}
}

func TestUpdateReviewRestamps(t *testing.T) {
	d, s := newTestDispatcher(t)

	handleLine(t, d, "ADD_REVIEW:alice|Da Mario|4|first impression")

	d.now = func() time.Time {
		return time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC)
	}
	resp := handleLine(t, d, "UPDATE_REVIEW:alice|Da Mario|2026-08-26|13:45:30|2|changed my mind")
	assert.Equal(t, "OK:review updated", resp)

	reviews, err := s.FindReviews(context.Background(), "Da Mario")
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, 2, reviews[0].Stars)
	assert.Equal(t, "2026-08-27", reviews[0].Date)
	assert.Equal(t, "09:00:00", reviews[0].Time)

	// The original identity tuple is gone.
	resp = handleLine(t, d, "DELETE_REVIEW:alice|Da Mario|2026-08-26|13:45:30")
	assert.Equal(t, "ERROR:review not found", resp)
}

func TestManagerResponseLifecycle(t *testing.T) {
	d, s := newTestDispatcher(t)

	handleLine(t, d, "ADD_REVIEW:alice|Da Mario|1|cold pizza")

	resp := handleLine(t, d, "UPDATE_MANAGER_RESPONSE:alice|Da Mario|2026-08-26|13:45:30|we apologize | on the house next time")
	assert.Equal(t, "OK:response saved", resp)

	reviews, err := s.FindReviews(context.Background(), "Da Mario")
	require.NoError(t, err)
	assert.Equal(t, "we apologize | on the house next time", reviews[0].Response)

	resp = handleLine(t, d, "DELETE_MANAGER_RESPONSE:alice|Da Mario|2026-08-26|13:45:30")
	assert.Equal(t, "OK:response removed", resp)

	reviews, err = s.FindReviews(context.Background(), "Da Mario")
	require.NoError(t, err)
	assert.Empty(t, reviews[0].Response)

	resp = handleLine(t, d, "UPDATE_MANAGER_RESPONSE:ghost|Da Mario|2026-08-26|13:45:30|hello")
	assert.Equal(t, "ERROR:review not found", resp)
}

func TestSearchAnnotatesAggregates(t *testing.T) {
	d, _ := newTestDispatcher(t)

	handleLine(t, d, "ADD_RESTAURANT:Da Mario|Italy|Rome|Via Roma 1|12.5|true|false|Pizza|marco")
	handleLine(t, d, "ADD_RESTAURANT:Sakura|Japan|Osaka|1-2-3 Namba|25|false|true|Sushi|kenji")
	handleLine(t, d, "ADD_REVIEW:alice|Da Mario|4|good")
	handleLine(t, d, "ADD_REVIEW:bob|Da Mario|5|great")

	resp := handleLine(t, d, "SEARCH_RESTAURANTS:Italy|||||")
	assert.Equal(t, "OK:Da Mario|Italy|Rome|Via Roma 1|Pizza|12.5|true|false|4.50|2", resp)

	// No reviews renders a 0.0 rating.
	resp = handleLine(t, d, "SEARCH_RESTAURANTS:japan|||||")
	assert.Equal(t, "OK:Sakura|Japan|Osaka|1-2-3 Namba|Sushi|25|false|true|0.0|0", resp)

	resp = handleLine(t, d, "SEARCH_RESTAURANTS:Spain|||||")
	assert.Equal(t, "OK:", resp)
}

func TestSearchPriceTiers(t *testing.T) {
	d, _ := newTestDispatcher(t)

	handleLine(t, d, "ADD_RESTAURANT:Cheap Eats|Italy|Rome|Via A 1|8|false|false|Street|u")
	handleLine(t, d, "ADD_RESTAURANT:Mid Range|Italy|Rome|Via B 2|14|false|false|Roman|u")
	handleLine(t, d, "ADD_RESTAURANT:Fancy|Italy|Rome|Via C 3|40|false|false|Fine|u")

	tests := []struct {
		tier string
		want string
	}{
		{"<10", "Cheap Eats"},
		{"10-15", "Mid Range"},
		{">20", "Fancy"},
	}
	for _, tt := range tests {
		t.Run(tt.tier, func(t *testing.T) {
			resp := handleLine(t, d, "SEARCH_RESTAURANTS:|||"+tt.tier+"||")
			assert.True(t, strings.HasPrefix(resp, "OK:"+tt.want+"|"), "got %s", resp)
			assert.NotContains(t, resp, "||", "exactly one record expected")
		})
	}
}

func TestRestaurantUpdateAndDelete(t *testing.T) {
	d, _ := newTestDispatcher(t)

	handleLine(t, d, "ADD_RESTAURANT:Da Mario|Italy|Rome|Via Roma 1|12.5|true|false|Pizza|marco")

	resp := handleLine(t, d, "UPDATE_RESTAURANT:Da Mario|Da Mario 2|Milan|Via Milano 2|Pizza|15|false|true")
	assert.Equal(t, "OK:restaurant updated", resp)

	// Country is not part of the update and survives the rename.
	resp = handleLine(t, d, "SEARCH_RESTAURANTS:Italy|Milan||||")
	assert.True(t, strings.HasPrefix(resp, "OK:Da Mario 2|Italy|Milan|"), "got %s", resp)

	resp = handleLine(t, d, "UPDATE_RESTAURANT:Da Mario|X|Y|Z|C|1|false|false")
	assert.Equal(t, "ERROR:restaurant not found", resp)

	resp = handleLine(t, d, "DELETE_RESTAURANT:Da Mario 2")
	assert.Equal(t, "OK:restaurant deleted", resp)

	resp = handleLine(t, d, "DELETE_RESTAURANT:Da Mario 2")
	assert.Equal(t, "ERROR:restaurant not found", resp)
}

func TestFavoritesLifecycle(t *testing.T) {
	d, _ := newTestDispatcher(t)

	fav := "alice|Da Mario|Rome|Via Roma 1"

	assert.Equal(t, "OK:false", handleLine(t, d, "CHECK_FAVORITE:"+fav))
	assert.Equal(t, "OK:favorite added", handleLine(t, d, "ADD_FAVORITE:"+fav))
	assert.Equal(t, "OK:favorite added", handleLine(t, d, "ADD_FAVORITE:"+fav))
	assert.Equal(t, "OK:true", handleLine(t, d, "CHECK_FAVORITE:"+fav))
	assert.Equal(t, "OK:favorite removed", handleLine(t, d, "REMOVE_FAVORITE:"+fav))
	assert.Equal(t, "OK:false", handleLine(t, d, "CHECK_FAVORITE:"+fav))
	assert.Equal(t, "ERROR:not a favorite", handleLine(t, d, "REMOVE_FAVORITE:"+fav))
}

func TestGetUserLocation(t *testing.T) {
	d, _ := newTestDispatcher(t)
	registerUser(t, d, "alice", "secret")

	assert.Equal(t, "OK:Rome", handleLine(t, d, "GET_USER_LOCATION:alice"))
	assert.Equal(t, "ERROR:user not found", handleLine(t, d, "GET_USER_LOCATION:ghost"))
}

func TestGetUserReviewsFiltersByAuthor(t *testing.T) {
	d, _ := newTestDispatcher(t)

	handleLine(t, d, "ADD_REVIEW:alice|Da Mario|5|mine")
	handleLine(t, d, "ADD_REVIEW:bob|Da Mario|2|not mine")

	resp := handleLine(t, d, "GET_USER_REVIEWS:alice|Da Mario")
	assert.Equal(t, "OK:alice|Da Mario|5|mine|2026-08-26|13:45:30", resp)
}

func TestExitAcknowledges(t *testing.T) {
	d, _ := newTestDispatcher(t)
	assert.Equal(t, "OK:bye", handleLine(t, d, "EXIT"))
}
