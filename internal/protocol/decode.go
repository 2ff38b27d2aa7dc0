package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mrosetti/forchetta/pkg/store"
)

// ErrUnknownVerb is returned for a verb outside the command set.
var ErrUnknownVerb = errors.New("unrecognized command")

// MalformedError reports a request whose argument list does not match the
// verb's shape. The connection is kept open; only this request fails.
type MalformedError struct {
	Verb  string
	Shape string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed %s request: expected %s", e.Verb, e.Shape)
}

// Decode parses one request line into a Command. Control characters are
// stripped before parsing, so decoded fields never contain NUL, CR or LF.
func Decode(line string) (Command, error) {
	line = scrub(line)

	verb, args, _ := strings.Cut(line, ":")
	verb = strings.TrimSpace(verb)

	switch verb {
	case VerbSearchRestaurants:
		return decodeSearch(args)
	case VerbGetReviews:
		if args == "" {
			return nil, &MalformedError{verb, "restaurant"}
		}
		return GetReviews{Restaurant: args}, nil
	case VerbGetUserReviews:
		f, err := splitExact(verb, args, 2, "username|restaurant")
		if err != nil {
			return nil, err
		}
		return GetUserReviews{Username: f[0], Restaurant: f[1]}, nil
	case VerbAddReview:
		f, err := splitExact(verb, args, 4, "username|restaurant|stars|text")
		if err != nil {
			return nil, err
		}
		stars, err := parseStars(f[2])
		if err != nil {
			return nil, err
		}
		return AddReview{Username: f[0], Restaurant: f[1], Stars: stars, Text: f[3]}, nil
	case VerbUpdateReview:
		f, err := splitExact(verb, args, 6, "username|restaurant|date|time|stars|text")
		if err != nil {
			return nil, err
		}
		stars, err := parseStars(f[4])
		if err != nil {
			return nil, err
		}
		return UpdateReview{
			Username: f[0], Restaurant: f[1],
			Date: f[2], Time: f[3],
			Stars: stars, Text: f[5],
		}, nil
	case VerbDeleteReview:
		f, err := splitExact(verb, args, 4, "username|restaurant|date|time")
		if err != nil {
			return nil, err
		}
		return DeleteReview{Username: f[0], Restaurant: f[1], Date: f[2], Time: f[3]}, nil
	case VerbUpdateManagerResponse:
		f, err := splitExact(verb, args, 5, "username|restaurant|date|time|response")
		if err != nil {
			return nil, err
		}
		return UpdateManagerResponse{
			Username: f[0], Restaurant: f[1],
			Date: f[2], Time: f[3], Response: f[4],
		}, nil
	case VerbDeleteManagerResponse:
		f, err := splitExact(verb, args, 4, "username|restaurant|date|time")
		if err != nil {
			return nil, err
		}
		return DeleteManagerResponse{Username: f[0], Restaurant: f[1], Date: f[2], Time: f[3]}, nil
	case VerbLogin:
		f, err := splitExact(verb, args, 2, "username|digest")
		if err != nil {
			return nil, err
		}
		return Login{Username: f[0], Digest: f[1]}, nil
	case VerbLoginSalted:
		f, err := splitExact(verb, args, 2, "username|password")
		if err != nil {
			return nil, err
		}
		return LoginSalted{Username: f[0], Password: f[1]}, nil
	case VerbRegister, VerbRegisterSalted:
		f, err := splitExact(verb, args, 8, "given|surname|username|email|password|birthdate|location|role")
		if err != nil {
			return nil, err
		}
		return Register{
			GivenName: f[0], Surname: f[1], Username: f[2], Email: f[3],
			Password: f[4], BirthDate: f[5], Location: f[6], Role: f[7],
			Salted: verb == VerbRegisterSalted,
		}, nil
	case VerbAddRestaurant:
		return decodeAddRestaurant(args)
	case VerbUpdateRestaurant:
		return decodeUpdateRestaurant(args)
	case VerbDeleteRestaurant:
		if args == "" {
			return nil, &MalformedError{verb, "name"}
		}
		return DeleteRestaurant{Name: args}, nil
	case VerbGetUserLocation:
		if args == "" {
			return nil, &MalformedError{verb, "username"}
		}
		return GetUserLocation{Username: args}, nil
	case VerbCheckFavorite:
		fav, err := decodeFavorite(verb, args)
		if err != nil {
			return nil, err
		}
		return CheckFavorite{Favorite: fav}, nil
	case VerbAddFavorite:
		fav, err := decodeFavorite(verb, args)
		if err != nil {
			return nil, err
		}
		return AddFavorite{Favorite: fav}, nil
	case VerbRemoveFavorite:
		fav, err := decodeFavorite(verb, args)
		if err != nil {
			return nil, err
		}
		return RemoveFavorite{Favorite: fav}, nil
	case VerbExit:
		return Exit{}, nil
	default:
		return nil, ErrUnknownVerb
	}
}

func decodeSearch(args string) (Command, error) {
	// All six fields optional; a bare SEARCH_RESTAURANTS: means no filter.
	f := strings.Split(args, "|")
	if len(f) > 6 {
		return nil, &MalformedError{VerbSearchRestaurants, "country|city|cuisine|priceTier|delivery|online"}
	}
	for len(f) < 6 {
		f = append(f, "")
	}

	delivery, err := parseOptionalBool(f[4], "delivery")
	if err != nil {
		return nil, err
	}
	online, err := parseOptionalBool(f[5], "online")
	if err != nil {
		return nil, err
	}

	return SearchRestaurants{Filter: store.SearchFilter{
		Country:   f[0],
		City:      f[1],
		Cuisine:   f[2],
		PriceTier: f[3],
		Delivery:  delivery,
		Online:    online,
	}}, nil
}

func decodeAddRestaurant(args string) (Command, error) {
	f, err := splitExact(VerbAddRestaurant, args, 9, "name|country|city|address|price|delivery|online|cuisine|username")
	if err != nil {
		return nil, err
	}
	price, err := parsePrice(f[4])
	if err != nil {
		return nil, err
	}
	delivery, err := parseBool(f[5], "delivery")
	if err != nil {
		return nil, err
	}
	online, err := parseBool(f[6], "online")
	if err != nil {
		return nil, err
	}
	return AddRestaurant{
		Restaurant: store.Restaurant{
			Name: f[0], Country: f[1], City: f[2], Address: f[3],
			Price: price, Delivery: delivery, Online: online, Cuisine: f[7],
		},
		Username: f[8],
	}, nil
}

func decodeUpdateRestaurant(args string) (Command, error) {
	f, err := splitExact(VerbUpdateRestaurant, args, 8, "oldName|newName|city|address|cuisine|price|delivery|online")
	if err != nil {
		return nil, err
	}
	price, err := parsePrice(f[5])
	if err != nil {
		return nil, err
	}
	delivery, err := parseBool(f[6], "delivery")
	if err != nil {
		return nil, err
	}
	online, err := parseBool(f[7], "online")
	if err != nil {
		return nil, err
	}
	return UpdateRestaurant{
		OldName: f[0],
		Update: store.RestaurantUpdate{
			Name: f[1], City: f[2], Address: f[3], Cuisine: f[4],
			Price: price, Delivery: delivery, Online: online,
		},
	}, nil
}

func decodeFavorite(verb, args string) (store.Favorite, error) {
	f, err := splitExact(verb, args, 4, "username|restaurant|city|address")
	if err != nil {
		return store.Favorite{}, err
	}
	return store.Favorite{Username: f[0], Restaurant: f[1], City: f[2], Address: f[3]}, nil
}

// splitExact splits args on | into exactly n fields. The split limit lets
// the final field carry free text containing | (review text, responses).
func splitExact(verb, args string, n int, shape string) ([]string, error) {
	if args == "" {
		return nil, &MalformedError{verb, shape}
	}
	f := strings.SplitN(args, "|", n)
	if len(f) != n {
		return nil, &MalformedError{verb, shape}
	}
	return f, nil
}

func parseStars(s string) (int, error) {
	stars, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid stars value %q", s)
	}
	return stars, nil
}

func parsePrice(s string) (float64, error) {
	price, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price value %q", s)
	}
	return price, nil
}

func parseBool(s, field string) (bool, error) {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, fmt.Errorf("invalid %s flag %q", field, s)
	}
	return b, nil
}

func parseOptionalBool(s, field string) (*bool, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	b, err := parseBool(s, field)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// scrub drops control characters (NUL, CR, stray LF, DEL) from a request
// line so they can never reach field values or storage keys.
func scrub(line string) string {
	if !strings.ContainsFunc(line, isControl) {
		return line
	}
	return strings.Map(func(r rune) rune {
		if isControl(r) {
			return -1
		}
		return r
	}, line)
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}
