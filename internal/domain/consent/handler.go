package consent

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/healthshare/healthshare/internal/domain/observation"
	"github.com/healthshare/healthshare/internal/platform/fhir"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	api.GET("/data-types", h.ListDataTypes)
	api.GET("/consent", h.GetConsent)
	api.PUT("/consent", h.SaveConsent)
	api.DELETE("/consent", h.RevokeConsent)
	api.GET("/dashboard", h.GetDashboard)
	api.GET("/observations", h.ListObservations)

	fhirGroup.GET("/metadata", h.Metadata)
	fhirGroup.GET("/Observation", h.SearchObservationsFHIR)
}

// SelectionRequest is the body of PUT /consent.
type SelectionRequest struct {
	DataTypes []observation.DataType `json:"dataTypes"`
}

type dataTypeInfo struct {
	DataType    observation.DataType `json:"dataType"`
	DisplayName string               `json:"displayName"`
	Code        string               `json:"code"`
	Display     string               `json:"display"`
	Unit        string               `json:"unit"`
	Consented   bool                 `json:"consented"`
}

func (h *Handler) ListDataTypes(c echo.Context) error {
	r := h.svc.Current(c.Request().Context())
	out := make([]dataTypeInfo, 0, len(observation.KnownDataTypes))
	for _, t := range observation.KnownDataTypes {
		entry := observation.CodeFor(t)
		out = append(out, dataTypeInfo{
			DataType:    t,
			DisplayName: t.DisplayName(),
			Code:        entry.Code,
			Display:     entry.Display,
			Unit:        entry.Unit,
			Consented:   r.Includes(t),
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetConsent(c echo.Context) error {
	r := h.svc.Current(c.Request().Context())
	if r == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) SaveConsent(c echo.Context) error {
	var req SelectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.DataTypes == nil {
		return c.JSON(http.StatusUnprocessableEntity, fhir.ValidationOutcome("dataTypes", "is required"))
	}
	result, err := h.svc.Save(c.Request().Context(), req.DataTypes)
	if err != nil {
		return ErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) RevokeConsent(c echo.Context) error {
	if err := h.svc.Revoke(c.Request().Context()); err != nil {
		return ErrorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetDashboard(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Dashboard(c.Request().Context()))
}

type observationView struct {
	DataType    observation.DataType    `json:"dataType"`
	DisplayName string                  `json:"displayName"`
	Formatted   string                  `json:"formatted"`
	Observation observation.Observation `json:"observation"`
}

func (h *Handler) ListObservations(c echo.Context) error {
	allowed, obs := h.svc.Observations(c.Request().Context())
	out := make([]observationView, 0, len(obs))
	for _, t := range allowed {
		o, ok := obs[t]
		if !ok {
			continue
		}
		out = append(out, observationView{
			DataType:    t,
			DisplayName: t.DisplayName(),
			Formatted:   observation.Format(t, o),
			Observation: o,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) SearchObservationsFHIR(c echo.Context) error {
	var codes []string
	if v := c.QueryParam("code"); v != "" {
		for _, code := range strings.Split(v, ",") {
			// Accept system|code tokens.
			if i := strings.LastIndex(code, "|"); i >= 0 {
				code = code[i+1:]
			}
			if code = strings.TrimSpace(code); code != "" {
				codes = append(codes, code)
			}
		}
	}
	res, err := h.svc.Resources(c.Request().Context(), codes)
	if err != nil {
		return ErrorResponse(c, err)
	}
	bundle := observation.Bundle(res).WithSelfLink(c.Request().URL.String())
	return c.JSON(http.StatusOK, bundle)
}

func (h *Handler) Metadata(c echo.Context) error {
	base := c.Scheme() + "://" + c.Request().Host + "/fhir"
	return c.JSON(http.StatusOK, fhir.NewCapabilityStatement(base, time.Now()))
}

// ErrorResponse maps domain errors to HTTP responses with an
// OperationOutcome body. Storage failures are retryable.
func ErrorResponse(c echo.Context, err error) error {
	var verr *observation.ValidationError
	var serr *SelectionError
	var stErr *StorageError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusUnprocessableEntity, fhir.ValidationOutcome(verr.Field, verr.Error()))
	case errors.As(err, &serr):
		return c.JSON(http.StatusUnprocessableEntity, fhir.ValidationOutcome("dataTypes", serr.Error()))
	case errors.As(err, &stErr):
		c.Response().Header().Set("Retry-After", "1")
		return c.JSON(http.StatusServiceUnavailable, fhir.TransientOutcome(stErr.Error()))
	default:
		return c.JSON(http.StatusInternalServerError, fhir.InternalErrorOutcome(err.Error()))
	}
}
