package availability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/secreapi/secre/internal/platform/apperr"
	"github.com/secreapi/secre/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/doctors/availability", h.CreateWindow)
	api.GET("/doctors/availability", h.ListWindows)
	api.GET("/doctors/availability/:id", h.GetWindow)
	api.PUT("/doctors/availability/:id", h.UpdateWindow)
	api.POST("/doctors/availability/:id/deactivate", h.DeactivateWindow)
	api.DELETE("/doctors/availability/:id", h.DeleteWindow)

	api.POST("/doctors/blocked-times", h.CreateBlocked)
	api.GET("/doctors/blocked-times", h.ListBlocked)
	api.DELETE("/doctors/blocked-times/:id", h.DeleteBlocked)

	api.GET("/doctors/time-slots", h.GetTimeSlots)
	api.GET("/doctors/check-availability", h.CheckAvailability)
}

// doctorFromQuery extracts the document pair every doctor endpoint keys on.
func doctorFromQuery(c echo.Context) (int, string, error) {
	docNumber := c.QueryParam("doctor_document_number")
	if docNumber == "" {
		return 0, "", echo.NewHTTPError(http.StatusBadRequest, "doctor_document_number is required")
	}
	docType, err := strconv.Atoi(c.QueryParam("doctor_document_type_id"))
	if err != nil || docType <= 0 {
		return 0, "", echo.NewHTTPError(http.StatusBadRequest, "doctor_document_type_id is required")
	}
	return docType, docNumber, nil
}

func (h *Handler) CreateWindow(c echo.Context) error {
	var w Window
	if err := c.Bind(&w); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	w.Active = true
	if err := h.svc.CreateWindow(c.Request().Context(), &w); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, w)
}

func (h *Handler) GetWindow(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	w, err := h.svc.GetWindow(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) UpdateWindow(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var w Window
	if err := c.Bind(&w); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	w.ID = id
	if err := h.svc.UpdateWindow(c.Request().Context(), &w); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) DeactivateWindow(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeactivateWindow(c.Request().Context(), id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteWindow(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteWindow(c.Request().Context(), id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListWindows(c echo.Context) error {
	docType, docNumber, err := doctorFromQuery(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListWindows(c.Request().Context(), docType, docNumber, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) CreateBlocked(c echo.Context) error {
	var b BlockedInterval
	if err := c.Bind(&b); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateBlocked(c.Request().Context(), &b); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) ListBlocked(c echo.Context) error {
	docType, docNumber, err := doctorFromQuery(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListBlocked(c.Request().Context(), docType, docNumber, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) DeleteBlocked(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteBlocked(c.Request().Context(), id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetTimeSlots(c echo.Context) error {
	docType, docNumber, err := doctorFromQuery(c)
	if err != nil {
		return err
	}
	date := c.QueryParam("date")
	if date == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date is required")
	}

	slots, err := h.svc.GetTimeSlots(c.Request().Context(), docType, docNumber, date)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"date":  date,
		"slots": slots,
	})
}

func (h *Handler) CheckAvailability(c echo.Context) error {
	docType, docNumber, err := doctorFromQuery(c)
	if err != nil {
		return err
	}
	start, err := time.Parse(time.RFC3339, c.QueryParam("start"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid start timestamp")
	}
	end, err := time.Parse(time.RFC3339, c.QueryParam("end"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid end timestamp")
	}

	available, err := h.svc.CheckAvailability(c.Request().Context(), docType, docNumber, start, end)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"available": available,
	})
}
