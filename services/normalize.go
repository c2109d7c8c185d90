package services

import (
	"fmt"
	"strings"
	"time"
)

// NormalizedFlight is the UI-ready view of one offer.
//
// Only the first itinerary is read, and within it only the first and last
// segments, so round-trip offers show their outbound leg only.
//
// IsHiddenCity is a heuristic, not a guarantee: it flags connecting
// itineraries whose final airport is not one the traveler asked for, i.e.
// the traveler would leave the trip before its ticketed end.
type NormalizedFlight struct {
	ID              string `json:"id"`
	AirlineCode     string `json:"airlineCode"`
	AirlineName     string `json:"airlineName"`
	FlightNumber    string `json:"flightNumber,omitempty"`
	DepartureTime   string `json:"departureTime"`
	ArrivalTime     string `json:"arrivalTime"`
	Origin          string `json:"origin"`
	Destination     string `json:"destination"`
	DurationISO8601 string `json:"durationIso8601"`
	DurationText    string `json:"durationText,omitempty"`
	Price           string `json:"price"`
	Currency        string `json:"currency"`
	StopCount       int    `json:"stopCount"`
	IsHiddenCity    bool   `json:"isHiddenCity"`
	BookingLink     string `json:"bookingLink"`
}

// Route is what the traveler searched for.
type Route struct {
	Destinations []string
	Date         string // YYYY-MM-DD
}

// NormalizeOffers maps every offer, using the response's carrier dictionary
// for airline names. It never returns nil.
func NormalizeOffers(resp *FlightOffersResponse, route Route) []NormalizedFlight {
	if resp == nil {
		return []NormalizedFlight{}
	}
	flights := make([]NormalizedFlight, 0, len(resp.Data))
	for _, offer := range resp.Data {
		flights = append(flights, NormalizeOffer(offer, route, resp.Dictionaries.Carriers))
	}
	return flights
}

// NormalizeOffer never fails: missing fields come out empty.
func NormalizeOffer(offer FlightOffer, route Route, carriers map[string]string) NormalizedFlight {
	f := NormalizedFlight{
		ID:       offer.ID,
		Price:    offer.Price.Total,
		Currency: offer.Price.Currency,
	}

	var segments []Segment
	if len(offer.Itineraries) > 0 {
		outbound := offer.Itineraries[0]
		segments = outbound.Segments
		f.DurationISO8601 = outbound.Duration
		f.DurationText = parseDuration(outbound.Duration)
	}

	if len(segments) > 0 {
		first := segments[0]
		last := segments[len(segments)-1]

		f.AirlineCode = first.CarrierCode
		f.DepartureTime = first.Departure.At
		f.ArrivalTime = last.Arrival.At
		f.Origin = first.Departure.IataCode
		f.Destination = last.Arrival.IataCode
		f.StopCount = len(segments) - 1
		if first.CarrierCode != "" && first.Number != "" {
			f.FlightNumber = first.CarrierCode + first.Number
		}
		f.IsHiddenCity = len(segments) > 1 && !containsCode(route.Destinations, last.Arrival.IataCode)
	}

	if f.AirlineCode == "" && len(offer.ValidatingAirlineCodes) > 0 {
		f.AirlineCode = offer.ValidatingAirlineCodes[0]
	}
	f.AirlineName = carriers[f.AirlineCode]
	if f.AirlineName == "" {
		f.AirlineName = f.AirlineCode
	}

	f.BookingLink = BookingLink(f.Origin, f.Destination, route.Date)
	return f
}

// BookingLink builds a search link on a public flight search site. It is
// derived from the route only and is not a provider deep link.
func BookingLink(origin, destination, date string) string {
	if origin == "" || destination == "" || date == "" {
		return ""
	}
	day := strings.ReplaceAll(date, "-", "")
	if t, err := time.Parse("2006-01-02", date); err == nil {
		day = t.Format("060102")
	}
	return fmt.Sprintf("https://www.skyscanner.net/transport/flights/%s/%s/%s/",
		strings.ToLower(origin), strings.ToLower(destination), day)
}

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if strings.EqualFold(c, code) {
			return true
		}
	}
	return false
}

// parseDuration converts ISO 8601 duration (PT5H30M) to human readable (5h 30m)
func parseDuration(iso string) string {
	if !strings.HasPrefix(iso, "PT") {
		return ""
	}
	iso = strings.TrimPrefix(iso, "PT")
	result := ""
	if hIdx := strings.Index(iso, "H"); hIdx >= 0 {
		result = iso[:hIdx] + "h"
		iso = iso[hIdx+1:]
	}
	if mIdx := strings.Index(iso, "M"); mIdx >= 0 {
		if result != "" {
			result += " "
		}
		result += iso[:mIdx] + "m"
	}
	return result
}
