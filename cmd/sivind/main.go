package main

import (
	"context"
	"log"
	"os"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/sivind/sivind-backend/app/controllers"
	"github.com/sivind/sivind-backend/internal/pkg/billing"
	"github.com/sivind/sivind-backend/internal/pkg/cache"
	"github.com/sivind/sivind-backend/internal/pkg/config"
	"github.com/sivind/sivind-backend/internal/pkg/database"
	"github.com/sivind/sivind-backend/internal/pkg/env"
	"github.com/sivind/sivind-backend/internal/pkg/metrics/counter"
	"github.com/sivind/sivind-backend/internal/pkg/middleware"
	"github.com/sivind/sivind-backend/internal/pkg/notify"
	"github.com/sivind/sivind-backend/internal/pkg/router"
	"github.com/sivind/sivind-backend/internal/pkg/security"
)

func main() {
	env.SetupEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Refusing to start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := NewApplication(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}

	log.Printf("SivInd backend listening on %s", cfg.Addr())
	log.Fatal(app.Listen(cfg.Addr()))
}

// NewApplication builds every component once from cfg and installs the routes.
func NewApplication(ctx context.Context, cfg *config.Config) (*fiber.App, error) {
	// identity
	jwks, err := security.NewIdentityKeySet(ctx, cfg.IdentityJWKSURL, cfg.ExternalCallTimeout)
	if err != nil {
		return nil, err
	}
	identities, err := security.NewIdentityVerifier(jwks.Keyfunc, cfg.FirebaseProjectID)
	if err != nil {
		return nil, err
	}

	// widget tokens
	issuer, err := security.NewWidgetTokenIssuer(cfg.WidgetSecret, cfg.WidgetTokenTTL)
	if err != nil {
		return nil, err
	}
	widgets, err := security.NewWidgetTokenVerifier(cfg.WidgetSecret)
	if err != nil {
		return nil, err
	}

	// billing
	events, err := billing.NewEventAuthenticator(cfg.StripeWebhookSecret, cfg.StripeWebhookTolerance)
	if err != nil {
		return nil, err
	}

	var repo billing.Repository
	if cfg.UsesDatabase() {
		db, err := database.SetupDatabase(cfg.Database, cfg.IsDev())
		if err != nil {
			return nil, err
		}
		repo = billing.NewRepository(db)
	} else {
		log.Println("No database configured, keeping subscriptions in memory")
		repo = billing.NewMemoryRepository()
	}

	redisClient, cacheErr := cache.SetupCache(cfg.Cache)
	notifier := notify.NewRedisNotifier(redisClient)
	usage := counter.New(redisClient)

	processor := billing.NewStripeProcessor(cfg.StripeSecretKey, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL)
	service := billing.NewService(repo, processor, cfg.PlanCatalog,
		billing.WithNotifier(notifier),
		billing.WithCallTimeout(cfg.ExternalCallTimeout),
	)

	var limiterStorage fiber.Storage
	if cacheErr == nil {
		limiterStorage = cache.NewLimiterStorage(cfg.Cache)
	}

	app := fiber.New(middleware.ClientIPConfig(fiber.Config{
		AppName:   "sivind-backend",
		BodyLimit: 1 << 20,
	}, cfg.ProxyHeader, cfg.TrustedProxies))

	// recovery and logging
	app.Use(recover.New(), requestid.New(requestid.Config{Generator: uuid.NewString}), logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New())

	// fiber metrics
	if cfg.MetricsUser != "" && cfg.MetricsPassword != "" {
		app.Get("/metrics", basicauth.New(basicauth.Config{
			Users: map[string]string{
				cfg.MetricsUser: cfg.MetricsPassword,
			},
		}), monitor.New())
	}

	// SWAGGER / OPENAPI
	if docs, ok := docsPath(); ok {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: docs,
			Path:     "v1",
		}))
	}

	// ROUTER
	router.InstallRouter(app, router.Handlers{
		Widget:        controllers.NewWidgetController(issuer).WithUsage(usage),
		Billing:       controllers.NewBillingController(events, service, service),
		Dashboard:     controllers.NewDashboardController(service).WithUsage(usage),
		Events:        controllers.NewEventsController(notifier),
		IdentityGate:  middleware.RequireIdentity(identities, security.SubjectStoreResolver{}),
		WidgetGate:    middleware.RequireWidgetToken(widgets),
		WidgetLimiter: middleware.WidgetRateLimiter(limiterStorage, cfg.WidgetRateMax),
	})

	go func() {
		<-ctx.Done()
		jwks.EndBackground()
	}()

	return app, nil
}

func docsPath() (string, bool) {
	for _, path := range []string{"./", "../../", "../../../"} {
		candidate := path + "public/docs/v1/openapi.yml"
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}
