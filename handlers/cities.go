package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const maxSuggestions = 10

// Cities serves the autocomplete list for the search form.
func (h *Handler) Cities(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"cities": h.airports.Suggest(c.Query("q"), maxSuggestions),
	})
}
