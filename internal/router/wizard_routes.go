package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wellness-admin/internal/handler"
)

// RegisterWizards mounts both wizards. Opening is center-scoped; every
// later call addresses the wizard by its id only.
func RegisterWizards(g *echo.Group, iw *handler.IssuanceWizardHandler, rw *handler.ReservationWizardHandler) {
	g.POST("/centers/:centerId/members/:memberId/issuance-wizards", iw.Open)
	i := g.Group("/issuance-wizards/:id")
	i.GET("", iw.Get)
	i.DELETE("", iw.Close)
	i.POST("/product", iw.SelectProduct)
	i.POST("/advance", iw.Advance)
	i.POST("/back", iw.Back)
	i.PATCH("/configuration", iw.Configure)
	i.POST("/issue", iw.Issue)

	g.POST("/centers/:centerId/lectures/:lectureId/reservation-wizards", rw.Open)
	r := g.Group("/reservation-wizards/:id")
	r.GET("", rw.Get)
	r.DELETE("", rw.Close)
	r.GET("/members", rw.Members)
	r.POST("/member", rw.SelectMember)
	r.POST("/ticket", rw.ChooseTicket)
	r.POST("/advance", rw.Advance)
	r.POST("/back", rw.Back)
}
