package services

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

type FlightsPDF struct {
	FromCity string
	ToCity   string
	Date     string
	Flights  []NormalizedFlight
}

// RenderFlightsPDF lays the search results out on A4 pages and returns the raw bytes.
func RenderFlightsPDF(data FlightsPDF) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 25)

	// ── Footer ────────────────────────────────────────────────
	pdf.SetFooterFunc(func() {
		pdf.SetY(-18)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(150, 150, 150)
		pdf.CellFormat(0, 8,
			"Generated "+time.Now().UTC().Format("02 Jan 2006, 15:04 UTC")+" - Not a booking confirmation",
			"", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	// ── Header Bar ───────────────────────────────────────────
	pdf.SetFillColor(13, 24, 37)
	pdf.Rect(0, 0, 210, 28, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetXY(20, 8)
	pdf.CellFormat(100, 10, "Flight Finder", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(212, 168, 67)
	pdf.SetXY(20, 18)
	pdf.CellFormat(170, 6, tr(fmt.Sprintf("%s to %s, %s", data.FromCity, data.ToCity, fmtDateReadable(data.Date))), "", 1, "L", false, 0, "")

	pdf.SetY(35)

	// ── Disclaimer ───────────────────────────────────────────
	pdf.SetFillColor(255, 248, 225)
	pdf.SetDrawColor(212, 168, 67)
	pdf.SetTextColor(130, 90, 20)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetLineWidth(0.4)
	y := pdf.GetY()
	pdf.Rect(20, y, 170, 12, "FD")
	pdf.SetXY(23, y+2)
	pdf.MultiCell(164, 4,
		"This is NOT a booking confirmation. Prices come from the provider at search time and may change. "+
			"Hidden-city flags are a heuristic.", "", "C", false)

	pdf.SetTextColor(0, 0, 0)
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.2)
	pdf.Ln(6)

	// ── Results ──────────────────────────────────────────────
	pdf.SetFillColor(13, 24, 37)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(170, 8, fmt.Sprintf("  %d flight(s)", len(data.Flights)), "", 1, "L", true, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(2)

	if len(data.Flights) == 0 {
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(170, 5, "No flights were found for this route and date.", "", "L", false)
	}

	widths := []float64{28, 22, 50, 22, 28, 20}
	headers := []string{"Airline", "Route", "Departs / Arrives", "Stops", "Price", "Duration"}
	if len(data.Flights) > 0 {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(235, 235, 235)
		for i, h := range headers {
			pdf.CellFormat(widths[i], 7, h, "B", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.SetFont("Helvetica", "", 9)
	for _, f := range data.Flights {
		stops := "Direct"
		if f.StopCount > 0 {
			stops = fmt.Sprintf("%d stop(s)", f.StopCount)
		}
		if f.IsHiddenCity {
			stops += "*"
		}
		cells := []string{
			tr(f.AirlineName),
			f.Origin + "-" + f.Destination,
			formatFlightLeg(f.DepartureTime, f.ArrivalTime),
			stops,
			f.Price + " " + f.Currency,
			f.DurationText,
		}
		for i, c := range cells {
			pdf.CellFormat(widths[i], 7, c, "B", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if hasHiddenCity(data.Flights) {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(100, 100, 100)
		pdf.MultiCell(170, 4, "* Connecting itinerary ending away from the requested destination (possible hidden-city fare).", "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("PDF output failed: %w", err)
	}
	return buf.Bytes(), nil
}

func hasHiddenCity(flights []NormalizedFlight) bool {
	for _, f := range flights {
		if f.IsHiddenCity {
			return true
		}
	}
	return false
}

func fmtDateReadable(iso string) string {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	return t.Format("02 Jan 2006 (Mon)")
}

// formatFlightLeg accepts the provider's local timestamps, which carry no offset.
func formatFlightLeg(dep, arr string) string {
	depT, err1 := time.Parse("2006-01-02T15:04:05", dep)
	arrT, err2 := time.Parse("2006-01-02T15:04:05", arr)
	if err1 != nil || err2 != nil {
		if dep != "" && arr != "" {
			return dep + " - " + arr
		}
		return "N/A"
	}
	return fmt.Sprintf("%s - %s", depT.Format("02 Jan 15:04"), arrT.Format("02 Jan 15:04"))
}
