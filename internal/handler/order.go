package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"verbapost/internal/dto"
	"verbapost/internal/model"
	"verbapost/internal/service"
)

type OrderHandler struct {
	orderService service.OrderService
}

func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

// httpError maps the error taxonomy onto response codes. Validation errors
// surface inline; collaborator failures are recoverable 5xx.
func httpError(err error) error {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusBadRequest, verr.Error())
	case errors.Is(err, model.ErrDraftNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	case errors.Is(err, model.ErrPaymentUnverified):
		return echo.NewHTTPError(http.StatusPaymentRequired, "payment not verified")
	case errors.Is(err, model.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrLookupEmpty):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "no representatives found, check your address")
	case errors.Is(err, model.ErrTranscriptionFailed):
		return echo.NewHTTPError(http.StatusBadGateway, "transcription failed, please retry")
	case errors.Is(err, model.ErrProviderUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "service temporarily unavailable, please retry")
	}
	return err
}

func (h *OrderHandler) CreateDraft(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.DraftRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	order, err := h.orderService.CreateDraft(ctx, &req)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, dto.NewOrderResponse(order))
}

func (h *OrderHandler) UpdateDraft(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.DraftRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	order, err := h.orderService.UpdateDraft(ctx, c.Param("orderID"), &req)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, dto.NewOrderResponse(order))
}

func (h *OrderHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	order, err := h.orderService.Get(ctx, c.Param("orderID"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, dto.NewOrderResponse(order))
}

func (h *OrderHandler) BeginCheckout(c echo.Context) error {
	ctx := c.Request().Context()

	resp, err := h.orderService.BeginCheckout(ctx, c.Param("orderID"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, resp)
}

// HandleReturn is the redirect-return entry point from the checkout
// provider. On success it redirects to a clean URL carrying only the order
// id, so a reload cannot replay the verification.
func (h *OrderHandler) HandleReturn(c echo.Context) error {
	ctx := c.Request().Context()

	sessionID := c.QueryParam("session_id")
	orderID := c.QueryParam("order_id")
	if sessionID == "" || orderID == "" {
		return c.String(http.StatusBadRequest, "missing session or order reference")
	}

	result, err := h.orderService.Reconcile(ctx, sessionID, orderID)
	if err != nil {
		if errors.Is(err, model.ErrPaymentUnverified) {
			return c.HTML(http.StatusPaymentRequired,
				`<html><body><h2>Payment not confirmed yet</h2>`+
					`<p>If you completed the payment, return to your letter and use "I've paid, recheck".</p></body></html>`)
		}
		return httpError(err)
	}
	// A replayed session id verifies without an order when the order id in
	// the URL does not resolve.
	if result.Order == nil {
		return httpError(model.ErrDraftNotFound)
	}

	return c.Redirect(http.StatusFound, fmt.Sprintf("/?order_id=%s", result.Order.ID))
}

func (h *OrderHandler) RecheckPayment(c echo.Context) error {
	ctx := c.Request().Context()

	result, err := h.orderService.RecheckPayment(ctx, c.Param("orderID"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, dto.NewOrderResponse(result.Order))
}

func (h *OrderHandler) SubmitRecording(c echo.Context) error {
	ctx := c.Request().Context()

	file, err := c.FormFile("audio")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing audio file")
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable audio file")
	}
	defer src.Close()

	audio, err := io.ReadAll(src)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable audio file")
	}

	order, err := h.orderService.SubmitRecording(ctx, c.Param("orderID"), audio)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, dto.NewOrderResponse(order))
}

func (h *OrderHandler) AcceptOverage(c echo.Context) error {
	ctx := c.Request().Context()

	order, err := h.orderService.AcceptOverage(ctx, c.Param("orderID"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, dto.NewOrderResponse(order))
}

func (h *OrderHandler) UpdateContent(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.ContentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	order, err := h.orderService.UpdateContent(ctx, c.Param("orderID"), req.Content)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, dto.NewOrderResponse(order))
}

func (h *OrderHandler) PolishContent(c echo.Context) error {
	ctx := c.Request().Context()

	order, err := h.orderService.PolishContent(ctx, c.Param("orderID"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, dto.NewOrderResponse(order))
}

func (h *OrderHandler) AttachSignature(c echo.Context) error {
	ctx := c.Request().Context()

	file, err := c.FormFile("signature")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing signature image")
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable signature image")
	}
	defer src.Close()

	image, err := io.ReadAll(src)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable signature image")
	}

	order, err := h.orderService.AttachSignature(ctx, c.Param("orderID"), image)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, dto.NewOrderResponse(order))
}

func (h *OrderHandler) Approve(c echo.Context) error {
	ctx := c.Request().Context()

	summary, err := h.orderService.Approve(ctx, c.Param("orderID"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, summary)
}

func (h *OrderHandler) Cancel(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.orderService.Cancel(ctx, c.Param("orderID")); err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *OrderHandler) Document(c echo.Context) error {
	ctx := c.Request().Context()

	document, contentType, err := h.orderService.Document(ctx, c.Param("orderID"))
	if err != nil {
		return httpError(err)
	}

	return c.Blob(http.StatusOK, contentType, document)
}
