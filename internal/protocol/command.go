// Package protocol implements the line-based wire codec: one request per
// line in the form VERB:field1|field2|..., one response per line prefixed
// with OK: or ERROR:. Decoding produces a closed set of Command variants so
// the dispatcher can switch exhaustively instead of re-parsing strings.
package protocol

import "github.com/mrosetti/forchetta/pkg/store"

// Command is a decoded client request. The set of implementations is closed;
// Verb returns the wire verb for logging and metrics labels.
type Command interface {
	Verb() string
}

// SearchRestaurants filters the directory. Empty filter fields widen the
// search.
type SearchRestaurants struct {
	Filter store.SearchFilter
}

// GetReviews lists all reviews for one restaurant, oldest first.
type GetReviews struct {
	Restaurant string
}

// GetUserReviews lists one author's reviews for one restaurant.
type GetUserReviews struct {
	Username   string
	Restaurant string
}

// AddReview creates a review stamped with the server's current date and time.
type AddReview struct {
	Username   string
	Restaurant string
	Stars      int
	Text       string
}

// UpdateReview rewrites an existing review's stars and text. The review is
// addressed by its original date/time and re-stamped to now.
type UpdateReview struct {
	Username   string
	Restaurant string
	Date       string
	Time       string
	Stars      int
	Text       string
}

// DeleteReview removes a review by its identity tuple.
type DeleteReview struct {
	Username   string
	Restaurant string
	Date       string
	Time       string
}

// UpdateManagerResponse attaches an owner reply to a review.
type UpdateManagerResponse struct {
	Username   string
	Restaurant string
	Date       string
	Time       string
	Response   string
}

// DeleteManagerResponse clears the owner reply on a review.
type DeleteManagerResponse struct {
	Username   string
	Restaurant string
	Date       string
	Time       string
}

// Login authenticates with a client-side unsalted digest of the password.
type Login struct {
	Username string
	Digest   string
}

// LoginSalted authenticates with the plaintext password so the server can
// verify (and upgrade) any stored format.
type LoginSalted struct {
	Username string
	Password string
}

// Register creates an account. Salted reports whether the password field is
// plaintext (to be stored salted) rather than a pre-hashed digest.
type Register struct {
	GivenName string
	Surname   string
	Username  string
	Email     string
	Password  string
	BirthDate string
	Location  string
	Role      string
	Salted    bool
}

// AddRestaurant creates a listing on behalf of Username.
type AddRestaurant struct {
	Restaurant store.Restaurant
	Username   string
}

// UpdateRestaurant rewrites a listing addressed by its current name.
type UpdateRestaurant struct {
	OldName string
	Update  store.RestaurantUpdate
}

// DeleteRestaurant removes a listing by name.
type DeleteRestaurant struct {
	Name string
}

// GetUserLocation returns the location an account registered with.
type GetUserLocation struct {
	Username string
}

// CheckFavorite asks whether the edge exists.
type CheckFavorite struct {
	Favorite store.Favorite
}

// AddFavorite creates the edge; adding twice is not an error.
type AddFavorite struct {
	Favorite store.Favorite
}

// RemoveFavorite deletes the edge.
type RemoveFavorite struct {
	Favorite store.Favorite
}

// Exit ends the connection after a final OK.
type Exit struct{}

func (SearchRestaurants) Verb() string     { return VerbSearchRestaurants }
func (GetReviews) Verb() string            { return VerbGetReviews }
func (GetUserReviews) Verb() string        { return VerbGetUserReviews }
func (AddReview) Verb() string             { return VerbAddReview }
func (UpdateReview) Verb() string          { return VerbUpdateReview }
func (DeleteReview) Verb() string          { return VerbDeleteReview }
func (UpdateManagerResponse) Verb() string { return VerbUpdateManagerResponse }
func (DeleteManagerResponse) Verb() string { return VerbDeleteManagerResponse }
func (Login) Verb() string                 { return VerbLogin }
func (LoginSalted) Verb() string           { return VerbLoginSalted }
func (c Register) Verb() string {
	if c.Salted {
		return VerbRegisterSalted
	}
	return VerbRegister
}
func (AddRestaurant) Verb() string    { return VerbAddRestaurant }
func (UpdateRestaurant) Verb() string { return VerbUpdateRestaurant }
func (DeleteRestaurant) Verb() string { return VerbDeleteRestaurant }
func (GetUserLocation) Verb() string  { return VerbGetUserLocation }
func (CheckFavorite) Verb() string    { return VerbCheckFavorite }
func (AddFavorite) Verb() string      { return VerbAddFavorite }
func (RemoveFavorite) Verb() string   { return VerbRemoveFavorite }
func (Exit) Verb() string             { return VerbExit }

// Wire verbs.
const (
	VerbSearchRestaurants     = "SEARCH_RESTAURANTS"
	VerbGetReviews            = "GET_REVIEWS"
	VerbGetUserReviews        = "GET_USER_REVIEWS"
	VerbAddReview             = "ADD_REVIEW"
	VerbUpdateReview          = "UPDATE_REVIEW"
	VerbDeleteReview          = "DELETE_REVIEW"
	VerbUpdateManagerResponse = "UPDATE_MANAGER_RESPONSE"
	VerbDeleteManagerResponse = "DELETE_MANAGER_RESPONSE"
	VerbLogin                 = "LOGIN"
	VerbLoginSalted           = "LOGIN_SALTED"
	VerbRegister              = "REGISTER"
	VerbRegisterSalted        = "REGISTER_SALTED"
	VerbAddRestaurant         = "ADD_RESTAURANT"
	VerbUpdateRestaurant      = "UPDATE_RESTAURANT"
	VerbDeleteRestaurant      = "DELETE_RESTAURANT"
	VerbGetUserLocation       = "GET_USER_LOCATION"
	VerbCheckFavorite         = "CHECK_FAVORITE"
	VerbAddFavorite           = "ADD_FAVORITE"
	VerbRemoveFavorite        = "REMOVE_FAVORITE"
	VerbExit                  = "EXIT"
)
