package handlers

import (
	"context"
	"net/http"

	"flightfinder/metrics"
	"flightfinder/services"

	"github.com/gin-gonic/gin"
)

// FlightSearcher is the provider gateway. Every error it returns is, or wraps,
// a *services.GatewayError.
type FlightSearcher interface {
	SearchFlights(ctx context.Context, origins, destinations []string, departureDate string) (*services.FlightOffersResponse, error)
}

// CityDirectory resolves city names to airport codes.
type CityDirectory interface {
	Resolve(city string) ([]string, bool)
	Suggest(input string, limit int) []string
	Len() int
}

type Handler struct {
	airports CityDirectory
	gateway  FlightSearcher
	metrics  *metrics.Metrics
}

// NewHandler wires the search pipeline. m may be nil.
func NewHandler(airports CityDirectory, gateway FlightSearcher, m *metrics.Metrics) *Handler {
	return &Handler{airports: airports, gateway: gateway, metrics: m}
}

// Register mounts every route. The search endpoints also answer under /api,
// the path the browser form calls.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/", FormHandler)
	r.GET("/health", h.Health)
	r.GET("/cities", h.Cities)

	for _, prefix := range []string{"", "/api"} {
		r.Any(prefix+"/search", h.Search)
		r.Any(prefix+"/search/pdf", h.SearchPDF)
	}

	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"service":  "Flight Finder API",
		"airports": h.airports.Len(),
	})
}

func (h *Handler) record(outcome string) {
	if h.metrics != nil {
		h.metrics.IncSearch(outcome)
	}
}
