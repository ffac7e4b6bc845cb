package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"verbapost/internal/dto"
	"verbapost/internal/service"
)

type FulfillmentHandler struct {
	fulfillmentService service.FulfillmentService
}

func NewFulfillmentHandler(fulfillmentService service.FulfillmentService) *FulfillmentHandler {
	return &FulfillmentHandler{
		fulfillmentService: fulfillmentService,
	}
}

func itemIDFromPath(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("itemID"), 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}
	return uint(id), nil
}

func (h *FulfillmentHandler) Pending(c echo.Context) error {
	ctx := c.Request().Context()

	items, err := h.fulfillmentService.Pending(ctx)
	if err != nil {
		return httpError(err)
	}

	resp := make([]*dto.FulfillmentItemResponse, len(items))
	for i, item := range items {
		resp[i] = &dto.FulfillmentItemResponse{
			ID:            item.ID,
			OrderID:       item.OrderID,
			RecipientName: item.RecipientName,
			Status:        item.Status,
			CreatedAt:     item.CreatedAt.Format(time.RFC3339),
		}
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *FulfillmentHandler) Document(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := itemIDFromPath(c)
	if err != nil {
		return err
	}

	document, err := h.fulfillmentService.Document(ctx, id)
	if err != nil {
		return httpError(err)
	}

	return c.Blob(http.StatusOK, "application/pdf", document)
}

func (h *FulfillmentHandler) MarkSent(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := itemIDFromPath(c)
	if err != nil {
		return err
	}

	if err := h.fulfillmentService.MarkSent(ctx, id); err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "sent"})
}
