package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/linemk/toff-shop/internal/app"
	"github.com/linemk/toff-shop/internal/app/handlers"
	"github.com/linemk/toff-shop/internal/config"
	"github.com/linemk/toff-shop/internal/idempotency"
	"github.com/linemk/toff-shop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/toff-shop/internal/lib/logger"
	"github.com/linemk/toff-shop/internal/lib/logger/handlers/urllog"
	"github.com/linemk/toff-shop/internal/metrics"
	"github.com/linemk/toff-shop/internal/notification"
	"github.com/linemk/toff-shop/internal/payment"
	"github.com/linemk/toff-shop/internal/service"
	"github.com/linemk/toff-shop/internal/storage"
	"github.com/pkg/errors"
)

func main() {
	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app")

	// загружаем объект приложения, конфигом и подключением к БД
	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.DB.Close()

	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	// реализация слоев по работе с БД по каждому направлению
	userRepo := storage.NewUserRepository(application.DB)
	productRepo := storage.NewProductRepository(application.DB)
	catalogRepo := storage.NewCatalogRepository(application.DB)
	couponRepo := storage.NewCouponRepository(application.DB)
	orderRepo := storage.NewOrderRepository(application.DB)
	cartRepo := storage.NewCartRepository(application.DB)
	outboxRepo := storage.NewOutboxRepository(application.DB)
	favoriteRepo := storage.NewFavoriteRepository(application.DB)
	addressRepo := storage.NewAddressRepository(application.DB)

	gateway, err := setupGateway(log, cfg.Payment)
	if err != nil {
		panic(errors.Wrap(err, "failed to initialize payment gateway"))
	}

	idem, err := setupIdempotency(ctx, log, cfg.Redis)
	if err != nil {
		panic(errors.Wrap(err, "failed to initialize idempotency store"))
	}
	if c, ok := idem.(io.Closer); ok {
		defer c.Close()
	}

	sender := setupSender(log, cfg.Notifications)
	if c, ok := sender.(io.Closer); ok {
		defer c.Close()
	}
	dispatcher := notification.NewDispatcher(log, outboxRepo, sender, application.Metrics, notification.DispatcherConfig{
		PollInterval: cfg.Notifications.PollInterval,
		BatchSize:    cfg.Notifications.BatchSize,
		MaxAttempts:  cfg.Notifications.MaxAttempts,
		ClaimTimeout: cfg.Notifications.ClaimTimeout,
	})
	dispatcher.Start(ctx)

	authService := service.NewAuthService(log, userRepo, time.Duration(cfg.JWT.TokenTTL)*time.Minute)
	catalogService := service.NewCatalogService(log, productRepo, catalogRepo)
	couponService := service.NewCouponService(log, couponRepo)
	cartService := service.NewCartService(log, cartRepo, productRepo)
	favoriteService := service.NewFavoriteService(log, favoriteRepo, productRepo)
	addressService := service.NewAddressService(log, addressRepo)
	accountService := service.NewAccountService(log, userRepo, outboxRepo, dispatcher, service.AccountConfig{
		PasswordResetURL: cfg.Account.PasswordResetURL,
		PasswordResetTTL: cfg.Account.PasswordResetTTL,
		ShopInbox:        cfg.Notifications.ShopInbox,
	})
	orderService := service.NewOrderService(log, application.DB, orderRepo, outboxRepo, dispatcher)
	checkoutService := service.NewCheckoutService(log, application.DB, service.CheckoutRepos{
		Users:    userRepo,
		Products: productRepo,
		Coupons:  couponRepo,
		Orders:   orderRepo,
		Carts:    cartRepo,
		Outbox:   outboxRepo,
	}, gateway, idem, application.Metrics, dispatcher, service.CheckoutConfig{
		PaymentTimeout: cfg.Payment.Timeout,
		LockTimeout:    cfg.Checkout.LockTimeout,
		IdempotencyTTL: cfg.Checkout.IdempotencyTTL,
	})

	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(application.Metrics.Middleware)

	router.Get("/health", handlers.HealthHandler(log, application.DB))
	router.Handle("/metrics", metrics.Handler(application.Registry))

	// эндпоинты для аутентификации
	router.Post("/api/auth", handlers.AuthHandler(log, authService))
	router.Post("/api/auth/register", handlers.RegisterHandler(log, authService))
	router.Post("/api/auth/forgot-password", handlers.ForgotPasswordHandler(log, accountService))
	router.Post("/api/auth/reset-password", handlers.ResetPasswordHandler(log, accountService))
	router.Post("/api/contact", handlers.ContactHandler(log, accountService))

	// каталог и купоны доступны без токена
	router.Get("/api/products", handlers.ProductsHandler(log, catalogService))
	router.Get("/api/products/{id}", handlers.ProductHandler(log, catalogService))
	router.Get("/api/categories", handlers.CategoriesHandler(log, catalogService))
	router.Get("/api/collections", handlers.CollectionsHandler(log, catalogService))
	router.Post("/api/coupons/validate", handlers.ValidateCouponHandler(log, couponService))

	// оформление заказа: токен необязателен, без него заказ гостевой
	router.With(jwtmiddleware.NewOptionalJWTMiddleware()).
		Post("/api/orders/create", handlers.CreateOrderHandler(log, checkoutService))

	router.Group(func(r chi.Router) {
		r.Use(jwtmiddleware.NewJWTMiddleware())

		r.Get("/api/orders", handlers.OrdersHandler(log, orderService))
		r.Get("/api/orders/{id}", handlers.OrderHandler(log, orderService))
		r.With(jwtmiddleware.RequireAdmin).
			Patch("/api/orders/{id}/status", handlers.UpdateOrderStatusHandler(log, orderService))

		r.Get("/api/cart", handlers.CartHandler(log, cartService))
		r.Post("/api/cart/items", handlers.AddCartItemHandler(log, cartService))
		r.Patch("/api/cart/items/{id}", handlers.UpdateCartItemHandler(log, cartService))
		r.Delete("/api/cart/items/{id}", handlers.RemoveCartItemHandler(log, cartService))

		r.Get("/api/favorites", handlers.FavoritesHandler(log, favoriteService))
		r.Post("/api/favorites", handlers.AddFavoriteHandler(log, favoriteService))
		r.Delete("/api/favorites/{productID}", handlers.RemoveFavoriteHandler(log, favoriteService))

		r.Get("/api/addresses", handlers.AddressesHandler(log, addressService))
		r.Post("/api/addresses", handlers.CreateAddressHandler(log, addressService))
		r.Put("/api/addresses/{id}", handlers.UpdateAddressHandler(log, addressService))
		r.Delete("/api/addresses/{id}", handlers.DeleteAddressHandler(log, addressService))
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout + cfg.Payment.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.Any("error", err))
			stopSignals()
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	log.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		log.Error("notification dispatcher stop failed", slog.Any("error", err))
	}
	log.Info("server gracefully stopped")
}

func setupGateway(log *slog.Logger, cfg config.PaymentConfig) (payment.Gateway, error) {
	switch cfg.Provider {
	case "sandbox", "":
		log.Warn("using sandbox payment gateway")
		return payment.NewSandboxGateway(log, cfg.DeclineCards), nil
	case "http":
		if cfg.BaseURL == "" || cfg.APIKey == "" || cfg.SecretKey == "" {
			return nil, errors.New("payment.base_url, payment.api_key and PAYMENT_SECRET_KEY are required for the http provider")
		}
		return payment.NewHTTPGateway(log, cfg.BaseURL, cfg.APIKey, cfg.SecretKey, cfg.Currency, cfg.Timeout), nil
	default:
		return nil, errors.Errorf("unknown payment provider %q", cfg.Provider)
	}
}

// setupIdempotency — без адреса Redis ключи живут в памяти процесса,
// что годится только для одного экземпляра сервиса
func setupIdempotency(ctx context.Context, log *slog.Logger, cfg config.RedisConfig) (idempotency.Store, error) {
	if cfg.Address == "" {
		log.Warn("redis address is empty, idempotency keys are kept in memory")
		return idempotency.NewMemoryStore(), nil
	}
	store, err := idempotency.NewRedisStore(ctx, cfg.Address, cfg.Password, cfg.DB)
	if err != nil {
		return nil, errors.Wrap(err, "redis")
	}
	return store, nil
}

func setupSender(log *slog.Logger, cfg config.NotificationsConfig) notification.Sender {
	switch cfg.Driver {
	case "smtp":
		return notification.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.From)
	case "kafka":
		return notification.NewKafkaSender(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	default:
		return notification.NewLogSender(log)
	}
}
