package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/translator-checkout/internal/config"
	"github.com/example/translator-checkout/internal/handlers"
	"github.com/example/translator-checkout/internal/middleware"
	"github.com/example/translator-checkout/internal/services"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	store := services.NewPaymentStore(db)
	processor := services.NewPayPalClient(cfg.PayPalClientID, cfg.PayPalSecret, cfg.PayPalBaseURL)
	forms := services.NewFormsClient(cfg.FormsBaseURL, cfg.FormsUsername, cfg.FormsAppPassword)
	mailer := services.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom, cfg.SellerEmail)
	notifier := services.NewNotifier(forms, mailer)
	checkout := services.NewCheckoutService(store, processor, notifier)

	checkoutHandler := handlers.NewCheckoutHandler(checkout, cfg.PayPalClientID)
	adminHandler := handlers.NewAdminHandler(db, cfg)

	app.Get("/", checkoutHandler.Home)

	api := app.Group("/api")

	api.Post("/orders", checkoutHandler.CreateOrder)
	api.Post("/orders/:orderID/capture", checkoutHandler.CaptureOrder)
	api.Post("/paypal/webhook", checkoutHandler.Webhook)

	api.Post("/auth/login", adminHandler.Login)

	// Protected routes
	protected := api.Group("", middleware.AuthMiddleware(cfg))
	protected.Get("/auth/me", adminHandler.Me)
	protected.Get("/payments", adminHandler.ListPayments)
	protected.Get("/payments/:entryID", adminHandler.GetPayment)
}
