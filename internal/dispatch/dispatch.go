// Package dispatch executes decoded commands against the store. It holds no
// per-connection state; every request carries everything it needs.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mrosetti/forchetta/internal/auth"
	"github.com/mrosetti/forchetta/internal/logger"
	"github.com/mrosetti/forchetta/internal/protocol"
	"github.com/mrosetti/forchetta/pkg/store"
)

const (
	msgInvalidCredentials = "invalid credentials"
	msgInternalError      = "internal error"
)

// Dispatcher maps commands to store and verifier calls and renders the
// response line.
type Dispatcher struct {
	store    store.Store
	verifier *auth.Verifier

	// now stamps new reviews; swapped out in tests.
	now func() time.Time
}

// New builds a Dispatcher over the given store and credential verifier.
func New(s store.Store, v *auth.Verifier) *Dispatcher {
	return &Dispatcher{store: s, verifier: v, now: time.Now}
}

// Handle executes one command and returns the complete response line.
func (d *Dispatcher) Handle(ctx context.Context, cmd protocol.Command) string {
	switch c := cmd.(type) {
	case protocol.SearchRestaurants:
		return d.searchRestaurants(ctx, c)
	case protocol.GetReviews:
		return d.getReviews(ctx, c.Restaurant, "")
	case protocol.GetUserReviews:
		return d.getReviews(ctx, c.Restaurant, c.Username)
	case protocol.AddReview:
		return d.addReview(ctx, c)
	case protocol.UpdateReview:
		return d.updateReview(ctx, c)
	case protocol.DeleteReview:
		return d.deleteReview(ctx, c)
	case protocol.UpdateManagerResponse:
		return d.setManagerResponse(ctx, store.ReviewKey{
			Author: c.Username, Restaurant: c.Restaurant, Date: c.Date, Time: c.Time,
		}, c.Response)
	case protocol.DeleteManagerResponse:
		return d.setManagerResponse(ctx, store.ReviewKey{
			Author: c.Username, Restaurant: c.Restaurant, Date: c.Date, Time: c.Time,
		}, "")
	case protocol.Login:
		return d.login(ctx, c)
	case protocol.LoginSalted:
		return d.loginSalted(ctx, c)
	case protocol.Register:
		return d.register(ctx, c)
	case protocol.AddRestaurant:
		return d.addRestaurant(ctx, c)
	case protocol.UpdateRestaurant:
		return d.updateRestaurant(ctx, c)
	case protocol.DeleteRestaurant:
		return d.deleteRestaurant(ctx, c)
	case protocol.GetUserLocation:
		return d.getUserLocation(ctx, c)
	case protocol.CheckFavorite:
		return d.checkFavorite(ctx, c)
	case protocol.AddFavorite:
		return d.addFavorite(ctx, c)
	case protocol.RemoveFavorite:
		return d.removeFavorite(ctx, c)
	case protocol.Exit:
		return protocol.EncodeOK("bye")
	default:
		return protocol.EncodeError("unrecognized command")
	}
}

func (d *Dispatcher) searchRestaurants(ctx context.Context, c protocol.SearchRestaurants) string {
	restaurants, err := d.store.FindRestaurants(ctx, c.Filter)
	if err != nil {
		return d.internalError("search restaurants", err)
	}
	ratings, err := d.store.AggregateRatings(ctx)
	if err != nil {
		return d.internalError("aggregate ratings", err)
	}
	counts, err := d.store.AggregateReviewCounts(ctx)
	if err != nil {
		return d.internalError("aggregate review counts", err)
	}

	records := make([]protocol.RestaurantRecord, 0, len(restaurants))
	for _, r := range restaurants {
		records = append(records, protocol.RestaurantRecord{
			Restaurant:  r,
			AvgRating:   ratings[r.Name],
			ReviewCount: counts[r.Name],
		})
	}
	return protocol.EncodeOK(protocol.EncodeRestaurants(records))
}

func (d *Dispatcher) getReviews(ctx context.Context, restaurant, author string) string {
	var (
		reviews []store.Review
		err     error
	)
	if author == "" {
		reviews, err = d.store.FindReviews(ctx, restaurant)
	} else {
		reviews, err = d.store.FindReviewsByAuthor(ctx, restaurant, author)
	}
	if err != nil {
		return d.internalError("find reviews", err)
	}
	return protocol.EncodeOK(protocol.EncodeReviews(reviews))
}

func (d *Dispatcher) addReview(ctx context.Context, c protocol.AddReview) string {
	if c.Username == "" || c.Restaurant == "" || c.Text == "" {
		return protocol.EncodeError("username, restaurant and text are required")
	}
	if c.Stars < 1 || c.Stars > 5 {
		return protocol.EncodeError(fmt.Sprintf("stars must be between 1 and 5, got %d", c.Stars))
	}

	now := d.now()
	rev := store.Review{
		Author:     c.Username,
		Restaurant: c.Restaurant,
		Stars:      c.Stars,
		Text:       c.Text,
		Date:       now.Format("2006-01-02"),
		Time:       now.Format("15:04:05"),
	}
	if err := d.store.InsertReview(ctx, rev); err != nil {
		return d.internalError("insert review", err)
	}
	return protocol.EncodeOK("review added")
}

func (d *Dispatcher) updateReview(ctx context.Context, c protocol.UpdateReview) string {
	if c.Stars < 1 || c.Stars > 5 {
		return protocol.EncodeError(fmt.Sprintf("stars must be between 1 and 5, got %d", c.Stars))
	}

	key := store.ReviewKey{Author: c.Username, Restaurant: c.Restaurant, Date: c.Date, Time: c.Time}
	now := d.now()
	ok, err := d.store.UpdateReview(ctx, key, c.Stars, c.Text, now.Format("2006-01-02"), now.Format("15:04:05"))
	if err != nil {
		return d.internalError("update review", err)
	}
	if !ok {
		return protocol.EncodeError("review not found")
	}
	return protocol.EncodeOK("review updated")
}

func (d *Dispatcher) deleteReview(ctx context.Context, c protocol.DeleteReview) string {
	key := store.ReviewKey{Author: c.Username, Restaurant: c.Restaurant, Date: c.Date, Time: c.Time}
	ok, err := d.store.DeleteReview(ctx, key)
	if err != nil {
		return d.internalError("delete review", err)
	}
	if !ok {
		return protocol.EncodeError("review not found")
	}
	return protocol.EncodeOK("review deleted")
}

func (d *Dispatcher) setManagerResponse(ctx context.Context, key store.ReviewKey, response string) string {
	ok, err := d.store.SetManagerResponse(ctx, key, response)
	if err != nil {
		return d.internalError("set manager response", err)
	}
	if !ok {
		return protocol.EncodeError("review not found")
	}
	if response == "" {
		return protocol.EncodeOK("response removed")
	}
	return protocol.EncodeOK("response saved")
}

// login is the legacy path: the client sends an unsalted digest of the
// password. Accounts already migrated to salted storage cannot be verified
// here and fail closed; those clients must use LOGIN_SALTED.
func (d *Dispatcher) login(ctx context.Context, c protocol.Login) string {
	account, err := d.store.FindAccount(ctx, c.Username)
	if errors.Is(err, store.ErrNotFound) {
		return protocol.EncodeError(msgInvalidCredentials)
	}
	if err != nil {
		return d.internalError("find account", err)
	}

	ok, upgrade := d.verifier.VerifyDigestLogin(c.Digest, account.Password)
	if !ok {
		return protocol.EncodeError(msgInvalidCredentials)
	}
	d.applyUpgrade(ctx, account.Username, upgrade)
	return protocol.EncodeOK(loginPayload(account))
}

func (d *Dispatcher) loginSalted(ctx context.Context, c protocol.LoginSalted) string {
	account, err := d.store.FindAccount(ctx, c.Username)
	if errors.Is(err, store.ErrNotFound) {
		return protocol.EncodeError(msgInvalidCredentials)
	}
	if err != nil {
		return d.internalError("find account", err)
	}

	ok, upgrade := d.verifier.VerifyPlainLogin(c.Password, account.Password)
	if !ok {
		return protocol.EncodeError(msgInvalidCredentials)
	}
	d.applyUpgrade(ctx, account.Username, upgrade)
	return protocol.EncodeOK(loginPayload(account))
}

// applyUpgrade rewrites the stored credential in the stronger format. A
// failed write is logged and the login still succeeds.
func (d *Dispatcher) applyUpgrade(ctx context.Context, username string, up auth.Upgrade) {
	if !up.OK {
		return
	}
	if err := d.store.UpdatePassword(ctx, username, up.NewStored); err != nil {
		logger.Warn("credential upgrade for %s failed: %v", username, err)
	}
}

func loginPayload(a store.Account) string {
	role := a.Role
	if role == "" {
		role = store.RoleUser
	}
	return fmt.Sprintf("%s|%s|%s", a.Username, a.Location, role)
}

func (d *Dispatcher) register(ctx context.Context, c protocol.Register) string {
	if c.Username == "" || c.Email == "" || c.Password == "" {
		return protocol.EncodeError("username, email and password are required")
	}
	role := c.Role
	if role == "" {
		role = store.RoleUser
	}
	if role != store.RoleUser && role != store.RoleOwner {
		return protocol.EncodeError(fmt.Sprintf("unknown role %q", role))
	}

	for _, probe := range []string{c.Username, c.Email} {
		exists, err := d.store.AccountExists(ctx, probe)
		if err != nil {
			return d.internalError("check account uniqueness", err)
		}
		if exists {
			return protocol.EncodeError("username or email already registered")
		}
	}

	stored := c.Password
	if c.Salted {
		var err error
		stored, err = d.verifier.CreateSalted(c.Password)
		if err != nil {
			return d.internalError("salt password", err)
		}
	}

	ok, err := d.store.InsertAccount(ctx, store.Account{
		Username:  c.Username,
		GivenName: c.GivenName,
		Surname:   c.Surname,
		Email:     c.Email,
		Password:  stored,
		BirthDate: c.BirthDate,
		Location:  c.Location,
		Role:      role,
	})
	if err != nil {
		return d.internalError("insert account", err)
	}
	if !ok {
		return protocol.EncodeError("username or email already registered")
	}
	return protocol.EncodeOK("registered")
}

func (d *Dispatcher) addRestaurant(ctx context.Context, c protocol.AddRestaurant) string {
	if c.Restaurant.Name == "" {
		return protocol.EncodeError("restaurant name is required")
	}
	ok, err := d.store.InsertRestaurant(ctx, c.Restaurant)
	if err != nil {
		return d.internalError("insert restaurant", err)
	}
	if !ok {
		return protocol.EncodeError("restaurant could not be added")
	}
	return protocol.EncodeOK("restaurant added")
}

func (d *Dispatcher) updateRestaurant(ctx context.Context, c protocol.UpdateRestaurant) string {
	if c.Update.Name == "" {
		return protocol.EncodeError("restaurant name is required")
	}
	ok, err := d.store.UpdateRestaurant(ctx, c.OldName, c.Update)
	if err != nil {
		return d.internalError("update restaurant", err)
	}
	if !ok {
		return protocol.EncodeError("restaurant not found")
	}
	return protocol.EncodeOK("restaurant updated")
}

func (d *Dispatcher) deleteRestaurant(ctx context.Context, c protocol.DeleteRestaurant) string {
	ok, err := d.store.DeleteRestaurant(ctx, c.Name)
	if err != nil {
		return d.internalError("delete restaurant", err)
	}
	if !ok {
		return protocol.EncodeError("restaurant not found")
	}
	return protocol.EncodeOK("restaurant deleted")
}

func (d *Dispatcher) getUserLocation(ctx context.Context, c protocol.GetUserLocation) string {
	account, err := d.store.FindAccount(ctx, c.Username)
	if errors.Is(err, store.ErrNotFound) {
		return protocol.EncodeError("user not found")
	}
	if err != nil {
		return d.internalError("find account", err)
	}
	return protocol.EncodeOK(account.Location)
}

func (d *Dispatcher) checkFavorite(ctx context.Context, c protocol.CheckFavorite) string {
	is, err := d.store.IsFavorite(ctx, c.Favorite)
	if err != nil {
		return d.internalError("check favorite", err)
	}
	if is {
		return protocol.EncodeOK("true")
	}
	return protocol.EncodeOK("false")
}

func (d *Dispatcher) addFavorite(ctx context.Context, c protocol.AddFavorite) string {
	ok, err := d.store.AddFavorite(ctx, c.Favorite)
	if err != nil {
		return d.internalError("add favorite", err)
	}
	if !ok {
		return protocol.EncodeError("favorite could not be added")
	}
	return protocol.EncodeOK("favorite added")
}

func (d *Dispatcher) removeFavorite(ctx context.Context, c protocol.RemoveFavorite) string {
	ok, err := d.store.RemoveFavorite(ctx, c.Favorite)
	if err != nil {
		return d.internalError("remove favorite", err)
	}
	if !ok {
		return protocol.EncodeError("not a favorite")
	}
	return protocol.EncodeOK("favorite removed")
}

// internalError hides persistence failures behind a generic message; the
// detail goes to the server log only.
func (d *Dispatcher) internalError(op string, err error) string {
	logger.Error("%s: %v", op, err)
	return protocol.EncodeError(msgInternalError)
}
