package handlers

import (
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/example/translator-checkout/internal/services"
)

// CheckoutHandler serves the checkout page and the order lifecycle endpoints.
type CheckoutHandler struct {
	checkout *services.CheckoutService
	clientID string
}

// NewCheckoutHandler constructs a CheckoutHandler.
func NewCheckoutHandler(checkout *services.CheckoutService, clientID string) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, clientID: clientID}
}

type checkoutRequest struct {
	SecureToken string `json:"secureToken"`
}

// Home renders the checkout page with the processor client id and a fresh
// client token for the hosted card fields.
func (h *CheckoutHandler) Home(c *fiber.Ctx) error {
	token, err := h.checkout.ClientToken(c.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate client token")
	}

	return c.Render("checkout", fiber.Map{
		"ClientID":    h.clientID,
		"ClientToken": token,
	})
}

// CreateOrder starts a checkout by opening an order at the processor for the
// amount the secure token resolves to.
func (h *CheckoutHandler) CreateOrder(c *fiber.Ctx) error {
	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.checkout.CreateOrder(c.Context(), req.SecureToken)
	if err != nil {
		return h.writeCheckoutError(c, err, "Failed to create order.")
	}

	return c.Status(result.HTTPStatus).Type("json").Send(result.Raw)
}

// CaptureOrder finalizes the payment for a previously created order.
func (h *CheckoutHandler) CaptureOrder(c *fiber.Ctx) error {
	orderID := c.Params("orderID")
	if orderID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing order id")
	}

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.checkout.CaptureOrder(c.Context(), orderID, req.SecureToken)
	if err != nil {
		return h.writeCheckoutError(c, err, "Failed to capture order.")
	}

	if result.Status != services.CaptureStatusCompleted {
		return c.Status(result.HTTPStatus).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to capture transaction. Payment status: %s", result.Status),
		})
	}

	return c.Status(result.HTTPStatus).Type("json").Send(result.Raw)
}

// Webhook receives the processor's asynchronous capture notifications.
func (h *CheckoutHandler) Webhook(c *fiber.Ctx) error {
	var event services.WebhookEvent
	if err := c.BodyParser(&event); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.checkout.HandleWebhook(c.Context(), event); err != nil {
		if errors.Is(err, services.ErrTransactionNotFound) {
			// Expected when the webhook outruns the capture path's
			// transaction record; the processor will redeliver.
			return fiber.NewError(fiber.StatusBadRequest, "unknown transaction")
		}
		return err
	}

	return c.JSON(fiber.Map{"message": "Webhook processed"})
}

// writeCheckoutError maps service errors onto the response contract: invalid
// tokens are user-correctable 400s, processor rejections are relayed with the
// processor's own status and body, anything else is a generic 500.
func (h *CheckoutHandler) writeCheckoutError(c *fiber.Ctx, err error, fallback string) error {
	if errors.Is(err, services.ErrTokenNotFound) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid token or no data found",
		})
	}

	var apiErr *services.APIError
	if errors.As(err, &apiErr) {
		return c.Status(apiErr.Status).Type("json").Send(apiErr.Body)
	}

	log.Printf("[Checkout] %s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": fallback})
}
