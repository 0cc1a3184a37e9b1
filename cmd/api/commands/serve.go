package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	redis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"kerno/docs"
	"kerno/internal/action"
	"kerno/internal/database"
	"kerno/internal/database/migration"
	"kerno/internal/email"
	"kerno/internal/health"
	handlers "kerno/internal/http/handler"
	"kerno/internal/http/middleware"
	"kerno/internal/http/web"
	"kerno/internal/kerno"
	"kerno/internal/otel"
	"kerno/internal/queue"
	"kerno/internal/repository/postgres"
	"kerno/internal/service"
	"kerno/internal/session"
	"kerno/internal/storage"
)

// DefaultUserHeader carries the email of the user authenticated by the proxy.
const DefaultUserHeader = "X-Remote-User"

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the queue workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	shutdownTracing, err := otel.Init(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Error("tracing shutdown", "error", err)
		}
	}()

	settings, err := readSettings()
	if err != nil {
		return err
	}
	// The PostgreSQL pool is the "database" utility; the documents
	// extension builds the repositories on it.
	eko, err := kerno.NewEko(withDefaults(settings))
	if err != nil {
		return err
	}
	k := eko.Kerno
	db, err := database.FromKerno(k)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	if err := migration.EnsureMigrated(ctx, db, cfg.Database.Host); err != nil {
		return err
	}

	// Initialize reusable S3-compatible object storage client (MinIO-supported)
	objStore, err := storage.NewMinIO(ctx, cfg.MinIO)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	actionMetrics, err := action.NewMetrics(reg)
	if err != nil {
		return err
	}
	httpMetrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return err
	}

	docSvc, err := service.NewDocumentService(objStore, actionMetrics)
	if err != nil {
		return err
	}

	var rdb *redis.Client
	var flashes session.Store = session.NewMemoryStore(0)
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		flashes = session.NewRedisStore(rdb, 0)
	} else {
		slog.Warn("REDIS_ADDR is not set; flash messages stay in this process and are lost on restart")
	}
	checker := health.NewChecker(rdb, db, &health.Config{
		RedisCheckInterval: 10 * time.Second,
		DBCheckInterval:    10 * time.Second,
		ID:                 instanceID(),
	})

	var q *queue.Queue
	if cfg.AMQP.URL != "" {
		q = queue.New(&queue.Config{
			URL:               cfg.AMQP.URL,
			ReconnectInterval: cfg.AMQP.ReconnectInterval,
			ConnectTimeout:    cfg.AMQP.ConnectTimeout,
		})
		q.RegisterWorker(queue.Declare(cfg.AMQP.EventsRoutingKey))
		if err := queue.Forward[service.DocumentUploaded](k.Events, q, cfg.AMQP.EventsRoutingKey); err != nil {
			return err
		}
	}
	if err := setupEmail(k, q); err != nil {
		return err
	}

	userHeader := DefaultUserHeader
	if h, ok := settings.Get("documents", "user_header"); ok && h != "" {
		userHeader = h
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: web.ErrorHandler(),
	})

	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger())
	app.Use(httpMetrics.Handler())
	app.Use(web.Sessions(flashes))
	app.Use(web.Bind(k))
	app.Use(web.Authenticate(handlers.Identify(userHeader)))

	handlers.RegisterRoutes(app, handlers.Deps{
		Documents: docSvc,
		Health:    checker,
		Gatherer:  reg,
	})

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		checker.Run(ctx)
		return nil
	})

	if q != nil {
		g.Go(func() error {
			if err := q.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		if err := app.Listen(":" + cfg.Port); err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Debug("received a graceful shutdown request")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil {
		slog.Error("kerno exited with an error", "error", err)
		return err
	}
	return nil
}

// setupEmail emails the SMTP notify list about uploads. With a queue the
// messages are delivered by a worker instead of during the request.
func setupEmail(k *kerno.Kerno, q *queue.Queue) error {
	if cfg.SMTP.Host == "" || len(cfg.SMTP.Notify) == 0 {
		return nil
	}
	recipients := make([]email.Address, 0, len(cfg.SMTP.Notify))
	for _, addr := range cfg.SMTP.Notify {
		a, err := email.NewAddress(addr, "")
		if err != nil {
			return fmt.Errorf("SMTP_NOTIFY: %w", err)
		}
		recipients = append(recipients, a)
	}

	smtp := email.NewSMTPSender(&cfg.SMTP)
	var sender email.Sender = smtp
	if q != nil {
		q.RegisterWorker(email.Worker(cfg.AMQP.EmailQueue, smtp))
		sender = email.NewQueueSender(q, cfg.AMQP.EmailQueue)
	}
	return service.NotifyUploads(k.Events, sender, cfg.SMTP.Sender, recipients)
}

// withDefaults registers the PostgreSQL pool and includes the documents
// extension unless the settings already do.
func withDefaults(s kerno.Settings) kerno.Settings {
	if s == nil {
		s = kerno.Settings{}
	}
	for _, section := range []string{"kerno", "kerno utilities"} {
		if s[section] == nil {
			s[section] = map[string]string{}
		}
	}
	if _, ok := s.Get("kerno utilities", database.Utility); !ok {
		s["kerno utilities"][database.Utility] = database.Ref
	}
	if includes := s.List("kerno", "includes"); !slices.Contains(includes, postgres.Extension) {
		s["kerno"]["includes"] = strings.Join(append(includes, postgres.Extension), "\n")
	}
	return s
}

func instanceID() string {
	if id := os.Getenv("POD_NAME"); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil {
		return "kerno"
	}
	return host
}
