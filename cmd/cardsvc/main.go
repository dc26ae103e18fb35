package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"

	config "github.com/abenezer/gymcard-services/configs"
	"github.com/abenezer/gymcard-services/internal/cardsvc/broker"
	"github.com/abenezer/gymcard-services/internal/cardsvc/cache"
	"github.com/abenezer/gymcard-services/internal/cardsvc/db"
	"github.com/abenezer/gymcard-services/internal/cardsvc/handlers"
	"github.com/abenezer/gymcard-services/internal/cardsvc/scan"
	"github.com/abenezer/gymcard-services/internal/cardsvc/service"
	"github.com/abenezer/gymcard-services/internal/cardsvc/store"
	"github.com/abenezer/gymcard-services/internal/cardsvc/ws"
	nats "github.com/abenezer/gymcard-services/internal/nats"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "card"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	// pg connection
	dbpool, err := db.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer dbpool.Close()
	log.Printf("pg connection established successfully")

	cardStore := store.NewCardStore(dbpool)

	// Connect to NATS
	n, err := nats.Connect()
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(0)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// read-through cache, optional
	cardCache, err := cache.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	if cardCache == nil {
		log.Info("REDIS_URL not set, read-through cache disabled")
	}
	defer cardCache.Close()

	// fan-out hub, passed by reference to every writer and connection
	hub := broker.NewHub()

	cardService := service.NewCardService(cardStore, hub, cardCache, nats.NewSource(n.Conn))
	if v := os.Getenv("PAIRING_TIMEOUT"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("Invalid PAIRING_TIMEOUT value: %v", err)
		}
		cardService.PairingTimeout = time.Duration(seconds) * time.Second
	}

	// check-in scans from the reader bridge
	consumer := scan.NewConsumer(n.Conn, cardService)
	sub, err := consumer.Subscribe()
	if err != nil {
		log.Errorf("Error: unable to subscribe to check-in topic %v", err)
		os.Exit(0)
	}

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(c.Handler)

	// to protect the service api from any over requests
	rateLimitStr := os.Getenv("RATE_LIMIT")
	rateLimit, err := strconv.Atoi(rateLimitStr)
	if err != nil {
		log.Fatalf("Invalid RATE_LIMIT value: %v", err)
	}
	r.Use(httprate.LimitByIP(rateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(cardService)
	gw := ws.NewGateway(hub)
	handlers.SetRoutes(r, h, gw)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + os.Getenv("CARD_SERVICE_PORT"),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
