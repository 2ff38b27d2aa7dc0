package badger

import (
	"strings"

	"github.com/mrosetti/forchetta/pkg/store"
)

// Key Namespace Design
// ====================
//
// Badger is a flat key-value store, so data types are separated by key
// prefixes. Composite keys join their components with a NUL byte, which
// cannot appear in protocol fields (the wire codec strips control
// characters from a line before parsing).
//
// Data Type        Prefix  Key Format                                  Value
// ---------------------------------------------------------------------------
// Restaurant       "r:"    r:<uuid>                                    Restaurant (JSON)
// Review           "v:"    v:<author>\x00<rest>\x00<date>\x00<time>    Review (JSON)
// Account          "a:"    a:<username>                                Account (JSON)
// Identity index   "i:"    i:<lower(username or email)>                username (bytes)
// Favorite         "f:"    f:<user>\x00<rest>\x00<city>\x00<addr>      empty
//
// Restaurants are keyed by a random UUID rather than by name: duplicate
// names are observed upstream behavior and must remain representable. Name
// lookups scan the "r:" prefix, which is acceptable at directory scale.
//
// The identity index enforces the case-insensitive username/email
// uniqueness check at registration with two point lookups instead of a
// full account scan.

const (
	prefixRestaurant = "r:"
	prefixReview     = "v:"
	prefixAccount    = "a:"
	prefixIdentity   = "i:"
	prefixFavorite   = "f:"

	keySep = "\x00"
)

func restaurantKey(id string) []byte {
	return []byte(prefixRestaurant + id)
}

func reviewKey(k store.ReviewKey) []byte {
	return []byte(prefixReview + strings.Join([]string{k.Author, k.Restaurant, k.Date, k.Time}, keySep))
}

func accountKey(username string) []byte {
	return []byte(prefixAccount + username)
}

func identityKey(usernameOrEmail string) []byte {
	return []byte(prefixIdentity + strings.ToLower(usernameOrEmail))
}

func favoriteKey(f store.Favorite) []byte {
	return []byte(prefixFavorite + strings.Join([]string{f.Username, f.Restaurant, f.City, f.Address}, keySep))
}
