package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mrosetti/forchetta/pkg/store"
)

const (
	okPrefix    = "OK:"
	errorPrefix = "ERROR:"

	fieldSep  = "|"
	recordSep = "||"
)

// RestaurantRecord is a directory entry annotated with its review aggregates
// for the search payload.
type RestaurantRecord struct {
	store.Restaurant
	AvgRating   float64
	ReviewCount int
}

// EncodeOK builds a success response line. The payload is flattened to a
// single line; responses never contain a raw newline.
func EncodeOK(payload string) string {
	return okPrefix + flatten(payload)
}

// EncodeError builds a failure response line.
func EncodeError(message string) string {
	return errorPrefix + flatten(message)
}

// EncodeRestaurants serializes search results, one record per restaurant
// joined by ||. Restaurants with no reviews report a rating of 0.0.
func EncodeRestaurants(records []RestaurantRecord) string {
	parts := make([]string, 0, len(records))
	for _, rec := range records {
		rating := "0.0"
		if rec.ReviewCount > 0 {
			rating = fmt.Sprintf("%.2f", rec.AvgRating)
		}
		parts = append(parts, strings.Join([]string{
			rec.Name,
			rec.Country,
			rec.City,
			rec.Address,
			rec.Cuisine,
			strconv.FormatFloat(rec.Price, 'f', -1, 64),
			strconv.FormatBool(rec.Delivery),
			strconv.FormatBool(rec.Online),
			rating,
			strconv.Itoa(rec.ReviewCount),
		}, fieldSep))
	}
	return strings.Join(parts, recordSep)
}

// EncodeReviews serializes a review list. The manager response field is
// appended only when present.
func EncodeReviews(reviews []store.Review) string {
	parts := make([]string, 0, len(reviews))
	for _, rev := range reviews {
		fields := []string{
			rev.Author,
			rev.Restaurant,
			strconv.Itoa(rev.Stars),
			rev.Text,
			rev.Date,
			rev.Time,
		}
		if rev.Response != "" {
			fields = append(fields, rev.Response)
		}
		parts = append(parts, strings.Join(fields, fieldSep))
	}
	return strings.Join(parts, recordSep)
}

// flatten replaces newlines smuggled in via free text (review bodies,
// manager responses) so one response always occupies exactly one line.
func flatten(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", " ")
}
