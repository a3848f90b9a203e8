// Command ticketbot wires together the event-ticket booking concierge:
// a PocketBase-backed app exposing a small webhook surface that drives a
// chat conversation through catalog browsing, payment, and ticket
// delivery. Structured the way the teacher's main.go wires its
// queue/seat/payment services: load config, construct collaborators,
// register migrations, bind routes.
package main

import (
	"log"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/redis/go-redis/v9"

	"ticketbot/internal/booking"
	"ticketbot/internal/catalog"
	"ticketbot/internal/config"
	"ticketbot/internal/convo"
	"ticketbot/internal/customer"
	"ticketbot/internal/handlers"
	"ticketbot/internal/lock"
	"ticketbot/internal/messaging"
	"ticketbot/internal/monitoring"
	"ticketbot/internal/payment/hosted"
	"ticketbot/internal/payment/stk"
	"ticketbot/internal/session"
	"ticketbot/internal/webhook"

	_ "ticketbot/migrations"
)

const lockTTL = 10 * time.Minute

func main() {
	app := pocketbase.New()
	cfg := config.LoadConfig()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	monitoring.NewMonitor(redisClient)

	sessions := session.NewRedisStore(redisClient, cfg.SessionTTL)
	locks := lock.NewRegistry(redisClient, lockTTL)

	cat := catalog.New(app)
	customers := customer.New(app)
	bookings := booking.New(app)

	stkAdapter := stk.New(stk.Config{
		PublishableKey: cfg.STKPublishableKey,
		SecretKey:      cfg.STKSecretKey,
		IsTest:         cfg.STKIsTest,
	})
	hostedAdapter := hosted.New(hosted.Config{
		BaseURL:        cfg.HostedBaseURL,
		ConsumerKey:    cfg.HostedConsumerKey,
		ConsumerSecret: cfg.HostedConsumerSecret,
		CallbackURL:    cfg.HostedCallbackURL,
	})

	messagingClient := messaging.NewPubNubClient(cfg.PubNubPublishKey, cfg.PubNubSubscribeKey)

	controller := convo.New(sessions, locks, cat, customers, bookings, stkAdapter, hostedAdapter, messagingClient, cfg.MaxQuantity)
	ingress := webhook.New(controller, bookings, cat, hostedAdapter, messagingClient)
	webhookHandler := handlers.NewWebhookHandler(ingress, cfg.MessagingVerifyTok)

	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		e.Router.GET("/webhook/messaging", webhookHandler.VerifyMessagingWebhook)
		e.Router.POST("/webhook/messaging", webhookHandler.ReceiveMessage)

		e.Router.POST("/webhook/stk", webhookHandler.ReceiveSTKWebhook)

		e.Router.GET("/webhook/hosted", webhookHandler.ReceiveHostedValidationPing)
		e.Router.POST("/webhook/hosted", webhookHandler.ReceiveHostedNotification)

		e.Router.GET("/health", func(e *core.RequestEvent) error {
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("ticketbot routes registered")
		return e.Next()
	})

	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}
