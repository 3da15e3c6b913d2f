// Command backendstub serves a fake courier backend with one seeded account
// per identity, for running the portal locally.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/spec-kit/courier-portal/internal/backendstub"
	"github.com/spec-kit/courier-portal/internal/domain"
)

type seed struct {
	userType domain.IdentityType
	login    string
	password string
	name     string
}

var seeds = []seed{
	{domain.IdentityAdmin, "admin", "admin123", "Portal Admin"},
	{domain.IdentityStaff, "staff@courier.test", "staff123", "Dispatch Staff"},
	{domain.IdentityCustomer, "customer@courier.test", "customer123", "Demo Customer"},
	{domain.IdentityDeliveryAgent, "agent@courier.test", "agent123", "Demo Rider"},
}

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", envOr("STUB_ADDR", "127.0.0.1:5000"), "listen address")
	prefix := flag.String("prefix", envOr("STUB_PREFIX", "/api"), "route prefix")
	secret := flag.String("secret", os.Getenv("STUB_SECRET"), "token signing secret")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	stub := backendstub.New(backendstub.Options{Secret: *secret})
	for _, s := range seeds {
		if _, err := stub.AddAccount(s.userType, s.login, s.password, s.name); err != nil {
			logger.Fatal("seed account", zap.String("login", s.login), zap.Error(err))
		}
		logger.Info("seeded account",
			zap.String("user_type", string(s.userType)),
			zap.String("login", s.login),
			zap.String("password", s.password))
	}

	app := fiber.New(fiber.Config{AppName: "courier-backend-stub"})
	app.Mount(*prefix, stub.App())

	go func() {
		if err := app.Listen(*addr); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))

	_ = app.Shutdown()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
