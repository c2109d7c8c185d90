package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"flightfinder/airports"
	"flightfinder/metrics"
	"flightfinder/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) SearchFlights(ctx context.Context, origins, destinations []string, departureDate string) (*services.FlightOffersResponse, error) {
	args := m.Called(ctx, origins, destinations, departureDate)
	resp, _ := args.Get(0).(*services.FlightOffersResponse)
	return resp, args.Error(1)
}

func testDirectory(t *testing.T) *airports.Directory {
	t.Helper()
	dir, err := airports.New(map[string][]string{
		"London":   {"LHR", "LGW", "STN"},
		"New York": {"JFK", "EWR"},
		"Berlin":   {"BER"},
		"Paris":    {"CDG", "ORY"},
	})
	require.NoError(t, err)
	return dir
}

func newTestRouter(t *testing.T, gw FlightSearcher) (*gin.Engine, *metrics.Metrics) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	m := metrics.New()
	r := gin.New()
	r.Use(RequestLogger())
	NewHandler(testDirectory(t), gw, m).Register(r)
	return r, m
}

func doRequest(r http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func twoLegOffer() services.FlightOffer {
	return services.FlightOffer{
		ID:    "1",
		Price: services.OfferPrice{Total: "412.30", Currency: "EUR"},
		Itineraries: []services.Itinerary{{
			Duration: "PT9H5M",
			Segments: []services.Segment{
				{
					Departure:   services.SegmentEndpoint{IataCode: "LHR", At: "2025-06-01T08:00:00"},
					Arrival:     services.SegmentEndpoint{IataCode: "DUB", At: "2025-06-01T09:20:00"},
					CarrierCode: "EI",
					Number:      "151",
				},
				{
					Departure:   services.SegmentEndpoint{IataCode: "DUB", At: "2025-06-01T11:00:00"},
					Arrival:     services.SegmentEndpoint{IataCode: "JFK", At: "2025-06-01T13:05:00"},
					CarrierCode: "EI",
					Number:      "105",
				},
			},
		}},
	}
}

func TestSearch_Success(t *testing.T) {
	gw := new(mockGateway)
	resp := &services.FlightOffersResponse{Data: []services.FlightOffer{twoLegOffer()}}
	resp.Dictionaries.Carriers = map[string]string{"EI": "AER LINGUS"}
	gw.On("SearchFlights", mock.Anything, []string{"LHR", "LGW", "STN"}, []string{"JFK", "EWR"}, "2025-06-01").
		Return(resp, nil).Once()

	r, m := newTestRouter(t, gw)
	w := doRequest(r, http.MethodGet, "/search?fromCity=%20london%20&toCity=NEW+YORK&date=2025-06-01")

	require.Equal(t, http.StatusOK, w.Code)
	var body SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Flights, 1)
	assert.Equal(t, 1, body.Usage)
	assert.Empty(t, body.Message)

	f := body.Flights[0]
	assert.Equal(t, "LHR", f.Origin)
	assert.Equal(t, "JFK", f.Destination)
	assert.Equal(t, "412.30", f.Price)
	assert.Equal(t, "EUR", f.Currency)
	assert.Equal(t, "AER LINGUS", f.AirlineName)
	assert.Equal(t, 1, f.StopCount)
	assert.False(t, f.IsHiddenCity)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchRequests.WithLabelValues("ok")))
	gw.AssertExpectations(t)
}

func TestSearch_APIPrefix(t *testing.T) {
	gw := new(mockGateway)
	gw.On("SearchFlights", mock.Anything, []string{"BER"}, []string{"CDG", "ORY"}, "2025-07-14").
		Return(&services.FlightOffersResponse{}, nil).Once()

	r, _ := newTestRouter(t, gw)
	w := doRequest(r, http.MethodGet, "/api/search?fromCity=Berlin&toCity=Paris&date=2025-07-14")

	assert.Equal(t, http.StatusOK, w.Code)
	gw.AssertExpectations(t)
}

func TestSearch_EmptyResultIsSuccess(t *testing.T) {
	gw := new(mockGateway)
	gw.On("SearchFlights", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&services.FlightOffersResponse{}, nil).Once()

	r, m := newTestRouter(t, gw)
	w := doRequest(r, http.MethodGet, "/search?fromCity=Berlin&toCity=London&date=2025-06-01")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"flights":[]`)

	var body SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Empty(t, body.Flights)
	assert.Equal(t, 0, body.Usage)
	assert.Contains(t, body.Message, "No flights found")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchRequests.WithLabelValues("empty")))
}

func TestSearch_MethodNotAllowed(t *testing.T) {
	gw := new(mockGateway)
	r, _ := newTestRouter(t, gw)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		for _, path := range []string{"/search", "/api/search", "/search/pdf"} {
			w := doRequest(r, method, path+"?fromCity=Berlin&toCity=Paris&date=2025-06-01")
			assert.Equal(t, http.StatusMethodNotAllowed, w.Code, "%s %s", method, path)
			assert.Equal(t, "GET", w.Header().Get("Allow"), "%s %s", method, path)
		}
	}
	gw.AssertNotCalled(t, "SearchFlights", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSearch_MissingParams(t *testing.T) {
	tests := []struct {
		query   string
		message string
	}{
		{"", "Missing required query parameters: fromCity, toCity, date"},
		{"?toCity=Paris&date=2025-06-01", "Missing required query parameters: fromCity"},
		{"?fromCity=Berlin&date=2025-06-01", "Missing required query parameters: toCity"},
		{"?fromCity=Berlin&toCity=Paris", "Missing required query parameters: date"},
		{"?date=2025-06-01", "Missing required query parameters: fromCity, toCity"},
		{"?toCity=Paris", "Missing required query parameters: fromCity, date"},
		{"?fromCity=Berlin", "Missing required query parameters: toCity, date"},
		{"?fromCity=%20%20&toCity=Paris&date=2025-06-01", "Missing required query parameters: fromCity"},
	}

	gw := new(mockGateway)
	r, m := newTestRouter(t, gw)

	for _, tt := range tests {
		t.Run(tt.message+tt.query, func(t *testing.T) {
			w := doRequest(r, http.MethodGet, "/search"+tt.query)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.message, decodeError(t, w).Message)
		})
	}
	assert.Equal(t, float64(len(tests)), testutil.ToFloat64(m.SearchRequests.WithLabelValues("bad_request")))
	gw.AssertNotCalled(t, "SearchFlights", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSearch_InvalidDate(t *testing.T) {
	gw := new(mockGateway)
	r, _ := newTestRouter(t, gw)

	w := doRequest(r, http.MethodGet, "/search?fromCity=Berlin&toCity=Paris&date=01/06/2025")

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Message, "YYYY-MM-DD")
}

func TestSearch_UnresolvedCities(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		names   []string
		absent  []string
		details string
	}{
		{"origin", "fromCity=Atlantis&toCity=Paris", []string{`"Atlantis"`}, []string{"Paris"}, "Unresolved: fromCity"},
		{"destination", "fromCity=Berlin&toCity=El+Dorado", []string{`"El Dorado"`}, []string{"Berlin"}, "Unresolved: toCity"},
		{"both", "fromCity=Atlantis&toCity=El+Dorado", []string{`"Atlantis"`, `"El Dorado"`}, nil, "Unresolved: fromCity, toCity"},
	}

	gw := new(mockGateway)
	r, _ := newTestRouter(t, gw)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, http.MethodGet, "/search?"+tt.query+"&date=2025-06-01")
			require.Equal(t, http.StatusBadRequest, w.Code)

			body := decodeError(t, w)
			for _, n := range tt.names {
				assert.Contains(t, body.Message, n)
			}
			for _, n := range tt.absent {
				assert.NotContains(t, body.Message, n)
			}
			assert.Equal(t, tt.details, body.Details)
		})
	}
	gw.AssertNotCalled(t, "SearchFlights", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSearch_GatewayFailures(t *testing.T) {
	validation := json.RawMessage(`[{"status":400,"code":477,"title":"INVALID FORMAT","detail":"departureDate is in the past"}]`)

	tests := []struct {
		name       string
		err        error
		status     int
		message    string
		details    any
		hasDetails bool
	}{
		{
			name:       "auth",
			err:        &services.GatewayError{Kind: services.KindAuth, ProviderStatus: 401, Err: errors.New("token rejected")},
			status:     http.StatusUnauthorized,
			message:    "credentials",
			hasDetails: false,
		},
		{
			name:       "validation",
			err:        &services.GatewayError{Kind: services.KindValidation, ProviderStatus: 400, Detail: validation, Err: errors.New("bad request")},
			status:     http.StatusBadRequest,
			message:    "BER -> CDG,ORY on 2025-06-01",
			details:    []any{map[string]any{"status": float64(400), "code": float64(477), "title": "INVALID FORMAT", "detail": "departureDate is in the past"}},
			hasDetails: true,
		},
		{
			name:    "rate limited",
			err:     &services.GatewayError{Kind: services.KindRateLimited, ProviderStatus: 429, Err: errors.New("slow down")},
			status:  http.StatusTooManyRequests,
			message: "Too many requests",
		},
		{
			name:    "network",
			err:     &services.GatewayError{Kind: services.KindNetwork, Err: errors.New("dial tcp: connection refused")},
			status:  http.StatusServiceUnavailable,
			message: "unreachable",
		},
		{
			name:    "timeout",
			err:     &services.GatewayError{Kind: services.KindTimeout, Err: context.DeadlineExceeded},
			status:  http.StatusGatewayTimeout,
			message: "in time",
		},
		{
			name:       "unknown with detail",
			err:        &services.GatewayError{Kind: services.KindUnknown, ProviderStatus: 500, Detail: "upstream exploded", Err: errors.New("server error")},
			status:     http.StatusInternalServerError,
			message:    "An error occurred",
			details:    "upstream exploded",
			hasDetails: true,
		},
		{
			name:       "unclassified error",
			err:        errors.New("boom"),
			status:     http.StatusInternalServerError,
			message:    "An error occurred",
			details:    "amadeus unknown error: boom",
			hasDetails: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := new(mockGateway)
			gw.On("SearchFlights", mock.Anything, []string{"BER"}, []string{"CDG", "ORY"}, "2025-06-01").
				Return(nil, tt.err).Once()

			r, _ := newTestRouter(t, gw)
			w := doRequest(r, http.MethodGet, "/search?fromCity=Berlin&toCity=Paris&date=2025-06-01")

			require.Equal(t, tt.status, w.Code)
			body := decodeError(t, w)
			assert.Contains(t, body.Message, tt.message)
			if tt.hasDetails {
				assert.Equal(t, tt.details, body.Details)
			} else {
				assert.Nil(t, body.Details)
			}
			gw.AssertExpectations(t)
		})
	}
}

func TestSearch_AuthFailureNeverEchoesCredentials(t *testing.T) {
	gw := new(mockGateway)
	gw.On("SearchFlights", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &services.GatewayError{
			Kind:           services.KindAuth,
			ProviderStatus: 401,
			Detail:         json.RawMessage(`{"error":"invalid_client","error_description":"Client credentials are invalid"}`),
			Err:            errors.New("token request rejected"),
		}).Once()

	r, _ := newTestRouter(t, gw)
	w := doRequest(r, http.MethodGet, "/search?fromCity=Berlin&toCity=Paris&date=2025-06-01")

	require.Equal(t, http.StatusUnauthorized, w.Code)
	body := decodeError(t, w)
	assert.Contains(t, body.Message, "misconfigured")
	assert.Equal(t, map[string]any{"error": "invalid_client", "error_description": "Client credentials are invalid"}, body.Details)
}

func TestSearchPDF(t *testing.T) {
	gw := new(mockGateway)
	gw.On("SearchFlights", mock.Anything, []string{"LHR", "LGW", "STN"}, []string{"JFK", "EWR"}, "2025-06-01").
		Return(&services.FlightOffersResponse{Data: []services.FlightOffer{twoLegOffer()}}, nil).Once()

	r, _ := newTestRouter(t, gw)
	w := doRequest(r, http.MethodGet, "/api/search/pdf?fromCity=London&toCity=New+York&date=2025-06-01")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="flights-london-new-york-2025-06-01.pdf"`, w.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))
}

func TestSearchPDF_FailureIsJSON(t *testing.T) {
	gw := new(mockGateway)
	r, _ := newTestRouter(t, gw)

	w := doRequest(r, http.MethodGet, "/search/pdf?fromCity=Atlantis&toCity=Paris&date=2025-06-01")

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Message, "Atlantis")
}

func TestMissingFields(t *testing.T) {
	assert.Nil(t, missingFields(SearchQuery{FromCity: "a", ToCity: "b", Date: "c"}))
	assert.Equal(t, []string{"fromCity", "toCity", "date"}, missingFields(SearchQuery{}))
}
