package handlers

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"flightfinder/services"

	"github.com/gin-gonic/gin"
)

type SearchQuery struct {
	FromCity string `form:"fromCity"`
	ToCity   string `form:"toCity"`
	Date     string `form:"date"`
}

type SearchResponse struct {
	Flights []services.NormalizedFlight `json:"flights"`
	// Usage is the number of raw offers the provider returned.
	Usage   int    `json:"usage"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type searchResult struct {
	query   SearchQuery
	flights []services.NormalizedFlight
	usage   int
}

func (h *Handler) Search(c *gin.Context) {
	res, ok := h.runSearch(c)
	if !ok {
		return
	}

	resp := SearchResponse{Flights: res.flights, Usage: res.usage}
	if len(res.flights) == 0 {
		resp.Message = fmt.Sprintf("No flights found from %s to %s on %s.", res.query.FromCity, res.query.ToCity, res.query.Date)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) SearchPDF(c *gin.Context) {
	res, ok := h.runSearch(c)
	if !ok {
		return
	}

	pdfBytes, err := services.RenderFlightsPDF(services.FlightsPDF{
		FromCity: res.query.FromCity,
		ToCity:   res.query.ToCity,
		Date:     res.query.Date,
		Flights:  res.flights,
	})
	if err != nil {
		log.Printf("❌ [%s] PDF generation failed: %v", RequestID(c), err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Failed to generate PDF"})
		return
	}

	filename := fmt.Sprintf("flights-%s-%s-%s.pdf",
		slug(res.query.FromCity), slug(res.query.ToCity), res.query.Date)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}

// runSearch takes one request through validation, code resolution, the
// provider call and normalization. On failure it has already written the
// response and returns false.
func (h *Handler) runSearch(c *gin.Context) (*searchResult, bool) {
	if c.Request.Method != http.MethodGet {
		c.Header("Allow", http.MethodGet)
		c.JSON(http.StatusMethodNotAllowed, ErrorResponse{Message: "Method not allowed. Use GET"})
		return nil, false
	}

	// ── Validating ───────────────────────────────────────────
	var q SearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, ErrorResponse{Message: "Invalid query parameters", Details: err.Error()})
		return nil, false
	}
	q.FromCity = strings.TrimSpace(q.FromCity)
	q.ToCity = strings.TrimSpace(q.ToCity)
	q.Date = strings.TrimSpace(q.Date)

	if missing := missingFields(q); len(missing) > 0 {
		h.badRequest(c, ErrorResponse{Message: "Missing required query parameters: " + strings.Join(missing, ", ")})
		return nil, false
	}
	if _, err := time.Parse("2006-01-02", q.Date); err != nil {
		h.badRequest(c, ErrorResponse{Message: "Invalid date format. Use YYYY-MM-DD"})
		return nil, false
	}

	// ── Resolving codes ──────────────────────────────────────
	origins, okFrom := h.airports.Resolve(q.FromCity)
	destinations, okTo := h.airports.Resolve(q.ToCity)
	if !okFrom || !okTo {
		var unknown, fields []string
		if !okFrom {
			unknown = append(unknown, fmt.Sprintf("%q", q.FromCity))
			fields = append(fields, "fromCity")
		}
		if !okTo {
			unknown = append(unknown, fmt.Sprintf("%q", q.ToCity))
			fields = append(fields, "toCity")
		}
		h.badRequest(c, ErrorResponse{
			Message: "Could not find airports for city: " + strings.Join(unknown, ", "),
			Details: "Unresolved: " + strings.Join(fields, ", "),
		})
		return nil, false
	}

	// ── Searching ────────────────────────────────────────────
	raw, err := h.gateway.SearchFlights(c.Request.Context(), origins, destinations, q.Date)
	if err != nil {
		h.gatewayFailure(c, err, origins, destinations, q.Date)
		return nil, false
	}

	// ── Normalizing ──────────────────────────────────────────
	flights := services.NormalizeOffers(raw, services.Route{Destinations: destinations, Date: q.Date})
	usage := 0
	if raw != nil {
		usage = len(raw.Data)
	}
	outcome := "ok"
	if len(flights) == 0 {
		outcome = "empty"
	}
	h.record(outcome)
	log.Printf("✅ [%s] %s -> %s on %s: %d flights", RequestID(c),
		strings.Join(origins, ","), strings.Join(destinations, ","), q.Date, len(flights))

	return &searchResult{query: q, flights: flights, usage: usage}, true
}

// gatewayFailure maps every provider failure kind to a status.
func (h *Handler) gatewayFailure(c *gin.Context, err error, origins, destinations []string, date string) {
	gwErr := services.AsGatewayError(err)
	log.Printf("⚠️  [%s] flight search %s -> %s on %s failed (%s): %v detail=%s", RequestID(c),
		strings.Join(origins, ","), strings.Join(destinations, ","), date, gwErr.Kind, gwErr, describeDetail(gwErr.Detail))
	h.record(gwErr.Kind.String())

	switch gwErr.Kind {
	case services.KindAuth:
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "Flight provider authentication failed. The API credentials are missing or misconfigured.",
			Details: gwErr.Detail,
		})
	case services.KindValidation:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: fmt.Sprintf("The flight provider rejected the search (%s -> %s on %s)",
				strings.Join(origins, ","), strings.Join(destinations, ","), date),
			Details: gwErr.Detail,
		})
	case services.KindRateLimited:
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Message: "Too many requests to the flight provider. Please try again shortly."})
	case services.KindNetwork:
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Message: "The flight provider is unreachable. Please try again later."})
	case services.KindTimeout:
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Message: "The flight provider did not answer in time."})
	default: // KindUnknown
		details := gwErr.Detail
		if details == nil {
			details = gwErr.Error()
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "An error occurred while searching for flights.", Details: details})
	}
}

func (h *Handler) badRequest(c *gin.Context, body ErrorResponse) {
	h.record("bad_request")
	c.JSON(http.StatusBadRequest, body)
}

func missingFields(q SearchQuery) []string {
	var missing []string
	if q.FromCity == "" {
		missing = append(missing, "fromCity")
	}
	if q.ToCity == "" {
		missing = append(missing, "toCity")
	}
	if q.Date == "" {
		missing = append(missing, "date")
	}
	return missing
}

func describeDetail(detail any) string {
	if detail == nil {
		return "-"
	}
	return fmt.Sprintf("%s", detail)
}

func slug(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
}
