package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cabinet-backend/internal/auth"
	"cabinet-backend/internal/availability"
	"cabinet-backend/internal/booking"
	"cabinet-backend/internal/cache"
	"cabinet-backend/internal/calendar"
	"cabinet-backend/internal/config"
	"cabinet-backend/internal/db"
	"cabinet-backend/internal/handlers"
	"cabinet-backend/internal/middleware"
	"cabinet-backend/internal/notifications"
	"cabinet-backend/internal/schedule"
	"cabinet-backend/internal/validation"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("mongo connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("mongo connected")
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		logger.Error("index creation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var cacheStore cache.Cache = cache.NewNoop()
	if cfg.RedisURL != "" || cfg.RedisAddr != "" {
		var redisCache *cache.RedisCache
		var err error
		if cfg.RedisURL != "" {
			redisCache, err = cache.NewRedisFromURL(cfg.RedisURL)
		} else {
			redisCache = cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		}
		if err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := redisCache.Ping(ctx); err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("redis connected")
		cacheStore = redisCache
	}

	var jwtManager *auth.Manager
	if cfg.JWTSecret != "" {
		jwtManager = &auth.Manager{
			Secret:     []byte(cfg.JWTSecret),
			AccessTTL:  time.Duration(cfg.AccessTTLMinutes) * time.Minute,
			RefreshTTL: time.Duration(cfg.RefreshTTLMinutes) * time.Minute,
			Issuer:     "cabinet-backend",
		}
	}

	mailer := notifications.NewBrevoClient(cfg.BrevoAPIKey, cfg.BrevoSenderEmail, cfg.BrevoSenderName, cfg.BrevoSandbox)
	if mailer == nil {
		logger.Info("brevo mailer disabled")
	} else {
		logger.Info("brevo mailer enabled", slog.String("sender", cfg.BrevoSenderEmail), slog.Bool("sandbox", cfg.BrevoSandbox))
	}

	cycle := schedule.DefaultCycle(cfg.ReferenceMonday)

	calendarProvider := calendar.NewProvider(
		cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword, cfg.CalDAVCalendarPath,
		cycle.DayEndMinutes(), cfg.Timezone, logger,
	)
	if calendarProvider == nil {
		logger.Info("caldav calendar disabled")
	} else {
		logger.Info("caldav calendar enabled", slog.String("url", cfg.CalDAVURL))
	}

	bookings := booking.NewMongoStore(cols.Appointments, cols.ReservationBlocks)

	resolver := &availability.Resolver{
		Cycle:           cycle,
		Loc:             cfg.Timezone,
		Bookings:        bookings,
		Log:             logger,
		CalendarTimeout: time.Duration(cfg.CalDAVTimeoutMS) * time.Millisecond,
	}
	if calendarProvider != nil {
		resolver.Calendar = calendarProvider
	}

	guard := &booking.Guard{
		Cycle: cycle,
		Loc:   cfg.Timezone,
		Store: bookings,
	}

	server := &handlers.Server{
		Cfg:      cfg,
		Cols:     cols,
		Val:      validation.New(),
		Log:      logger,
		Cache:    cacheStore,
		Bookings: bookings,
		Guard:    guard,
		Resolver: resolver,
		Calendar: calendarProvider,
	}
	// Assign through the interface only when the client exists, so nil checks
	// in the handlers stay meaningful.
	if mailer != nil {
		server.Mailer = mailer
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.FrontendOrigin))
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	appointmentsLimiter := middleware.NewRateLimiter(cfg.RateLimitAppointments, time.Duration(cfg.RateLimitWindowSec)*time.Second)
	contactLimiter := middleware.NewRateLimiter(cfg.RateLimitContact, time.Duration(cfg.RateLimitWindowSec)*time.Second)

	r.Route("/api", func(api chi.Router) {
		api.Get("/services", server.GetServices)
		api.Get("/availability", server.GetAvailability)
		api.Get("/availability/month", server.GetMonthAvailability)
		api.Get("/availability/next", server.GetNextAvailability)
		api.With(appointmentsLimiter.Middleware).Post("/appointments", server.CreateAppointment)
		api.Post("/appointments/lookup", server.LookupAppointment)
		api.Get("/appointments/{id}", server.GetAppointment)
		api.With(contactLimiter.Middleware).Post("/contact", server.CreateContact)

		api.Route("/admin", func(admin chi.Router) {
			admin.Post("/register", server.AdminRegister)
			admin.Post("/login", server.AdminLogin)
			admin.Post("/refresh", server.AdminRefresh)
			admin.Post("/logout", server.AdminLogout)

			// Important (chi): middlewares must be attached before defining routes.
			// Login/refresh/logout stay public, the rest goes through a sub-router.
			admin.Group(func(protected chi.Router) {
				protected.Use(middleware.AdminAuth(cfg.AdminAPIKey, jwtManager))
				protected.Post("/services", server.AdminCreateService)
				protected.Put("/services/{id}", server.AdminUpdateService)
				protected.Delete("/services/{id}", server.AdminDeleteService)
				protected.Post("/blocks", server.AdminCreateBlock)
				protected.Delete("/blocks/{id}", server.AdminDeleteBlock)
				protected.Post("/users", server.AdminCreateUser)
				protected.Patch("/users/{id}/password", server.AdminUpdateUserPassword)
				protected.Get("/appointments", server.AdminListAppointments)
				protected.Patch("/appointments/{id}/status", server.AdminUpdateAppointmentStatus)
				protected.Get("/contacts", server.AdminListContacts)
			})
		})
	})

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: r,
	}

	go func() {
		logger.Info("server started", slog.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	appointmentsLimiter.Stop()
	contactLimiter.Stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
}
