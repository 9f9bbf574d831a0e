package sharing

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/healthshare/healthshare/internal/domain/consent"
	"github.com/healthshare/healthshare/internal/domain/observation"
	"github.com/healthshare/healthshare/internal/platform/fhir"
	"github.com/healthshare/healthshare/pkg/fhirmodels"
	"github.com/healthshare/healthshare/pkg/pagination"
)

type Handler struct {
	svc     *Service
	shareMW []echo.MiddlewareFunc
}

// NewHandler builds the handler. shareMW wraps POST /share only.
func NewHandler(svc *Service, shareMW ...echo.MiddlewareFunc) *Handler {
	return &Handler{svc: svc, shareMW: shareMW}
}

func (h *Handler) RegisterRoutes(api *echo.Group, _ *echo.Group) {
	api.POST("/share", h.Share, h.shareMW...)
	api.GET("/share/preview", h.Preview)
	api.GET("/history", h.ListHistory)
	api.DELETE("/history", h.ClearHistory)
}

func (h *Handler) Share(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	out, err := h.svc.Share(c.Request().Context(), req)
	if err != nil {
		var rerr *RequestError
		switch {
		case errors.As(err, &rerr):
			return c.JSON(http.StatusUnprocessableEntity, fhir.ValidationOutcome("recipient", rerr.Err.Error()))
		case errors.Is(err, ErrNothingToShare):
			return c.JSON(http.StatusUnprocessableEntity, fhir.SuppressedOutcome(err.Error()))
		}
		return consent.ErrorResponse(c, err)
	}
	if out.Item.Status == StatusFailed {
		return c.JSON(http.StatusBadGateway, out)
	}
	return c.JSON(http.StatusOK, out)
}

// Preview returns the bundle a share would send. ?types= narrows it with a
// comma-separated list of data types.
func (h *Handler) Preview(c echo.Context) error {
	var types []observation.DataType
	for _, t := range strings.Split(c.QueryParam("types"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, observation.DataType(t))
		}
	}
	bundle, err := h.svc.Preview(c.Request().Context(), types)
	if err != nil {
		if errors.Is(err, ErrNothingToShare) {
			return c.JSON(http.StatusUnprocessableEntity, fhir.SuppressedOutcome(err.Error()))
		}
		return consent.ErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentType, fhirmodels.MediaTypeFHIRJSON)
	return c.JSON(http.StatusOK, bundle)
}

func (h *Handler) ListHistory(c echo.Context) error {
	items := h.svc.History(c.Request().Context())
	return c.JSON(http.StatusOK, pagination.Page(items, pagination.FromContext(c)))
}

func (h *Handler) ClearHistory(c echo.Context) error {
	if err := h.svc.ClearHistory(c.Request().Context()); err != nil {
		return consent.ErrorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
