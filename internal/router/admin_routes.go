package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wellness-admin/internal/handler"
)

// RegisterAdmin mounts the center-scoped list screens and direct actions.
// cache wraps the list GETs; mutations through any route drop the center's
// cached entries in the service layer.
func RegisterAdmin(g *echo.Group, h *handler.AdminHandler, cache echo.MiddlewareFunc) {
	c := g.Group("/centers/:centerId")

	c.GET("/tickets", h.Tickets, cache)
	c.GET("/members", h.Members, cache)
	c.GET("/lectures", h.Lectures, cache)
	c.GET("/lectures/:lectureId/reservations", h.LectureReservations, cache)

	c.GET("/issuances/:id", h.GetIssuance)
	c.PUT("/issuances/:id", h.UpdateIssuance)
	c.DELETE("/reservations/:id", h.CancelReservation)

	c.GET("/journal", h.Journal)
	c.GET("/journal/:id", h.JournalEntry)
}
