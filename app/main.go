package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sushihentaime/emerald/internal/blogservice"
	"github.com/sushihentaime/emerald/internal/bookingservice"
	"github.com/sushihentaime/emerald/internal/common"
	"github.com/sushihentaime/emerald/internal/feed"
	"github.com/sushihentaime/emerald/internal/mailservice"
	"github.com/sushihentaime/emerald/internal/mediaservice"
	"github.com/sushihentaime/emerald/internal/userservice"
)

type application struct {
	config         *Config
	logger         *slog.Logger
	db             *sql.DB
	userService    *userservice.UserService
	blogService    *blogservice.BlogService
	bookingService *bookingservice.BookingService
	mediaService   *mediaservice.MediaService
	mailService    *mailservice.MailService
	broker         *common.MessageBroker
	hub            *feed.Hub
	// uploadDir is served at /uploads/ when files are stored locally.
	uploadDir string
}

func main() {
	envFile := flag.String("env", ".env", "path to the env file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := loadConfig(*envFile)
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	err = run(cfg, logger)
	if err != nil {
		logger.Error("application stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *Config, logger *slog.Logger) error {
	m, err := common.Migrate(common.DSN(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName))
	if err != nil {
		return err
	}
	m.Close()

	db, err := common.NewDB(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBMaxIdleTime)
	if err != nil {
		return fmt.Errorf("failed to connect to the database: %w", err)
	}
	defer common.CloseDB(db)

	broker, err := common.NewMessageBroker(cfg.rabbitURI())
	if err != nil {
		return fmt.Errorf("failed to connect to the message broker: %w", err)
	}
	defer broker.Close()

	err = common.SetupExchanges(broker)
	if err != nil {
		return fmt.Errorf("failed to setup exchanges: %w", err)
	}

	cache, err := newCache(cfg)
	if err != nil {
		return err
	}
	defer cache.Close()

	app, err := newApplication(cfg, logger, db, broker, cache)
	if err != nil {
		return err
	}

	err = app.mailService.Start()
	if err != nil {
		return fmt.Errorf("failed to start mail consumers: %w", err)
	}
	defer app.mailService.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := broker.Subscribe(common.BlogExchange)
	if err != nil {
		return fmt.Errorf("failed to subscribe to blog events: %w", err)
	}
	go app.hub.Run(ctx, events)

	scheduler, err := app.newScheduler()
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	return app.serve(":" + cfg.Port)
}

func newCache(cfg *Config) (common.Cache, error) {
	if cfg.RedisURL == "" {
		return common.NewMemoryCache(5*time.Minute, 10*time.Minute), nil
	}

	c, err := common.NewRedisCache(cfg.RedisURL, "emerald:")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return c, nil
}

func newBlobStore(cfg *Config) (mediaservice.BlobStore, string, error) {
	if cfg.BlobBackend == "s3" {
		store, err := mediaservice.NewS3Store(mediaservice.S3Options{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
		return store, "", err
	}

	store, err := mediaservice.NewLocalStore(cfg.UploadDir)
	if err != nil {
		return nil, "", err
	}

	return store, store.Root(), nil
}

// newApplication wires every service. It is shared by main and the tests.
func newApplication(cfg *Config, logger *slog.Logger, db *sql.DB, broker *common.MessageBroker, cache common.Cache) (*application, error) {
	mailService := mailservice.NewMailService(broker, mailservice.Options{
		Host:       cfg.MailHost,
		Port:       cfg.MailPort,
		Username:   cfg.MailUser,
		Password:   cfg.MailPassword,
		Sender:     cfg.MailSender,
		StaffEmail: cfg.StaffEmail,
		SiteURL:    cfg.SiteURL,
	}, logger)

	var verifier userservice.IdentityVerifier
	if cfg.GoogleClientID != "" {
		verifier = userservice.NewGoogleVerifier(cfg.GoogleClientID, userservice.NewCertSource(userservice.GoogleCertsURL, cache))
	}

	bookingService, err := bookingservice.NewBookingService(db, broker, &mailRelay{mail: mailService}, bookingservice.DeliveryMode(cfg.BookingDelivery), logger)
	if err != nil {
		return nil, err
	}

	store, uploadDir, err := newBlobStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up blob storage: %w", err)
	}

	blogService := blogservice.NewBlogService(db, cache, broker, logger)

	hub := feed.NewHub(logger)
	hub.Observe(blogService.HandleEvent)

	return &application{
		config:         cfg,
		logger:         logger,
		db:             db,
		userService:    userservice.NewUserService(db, broker, verifier, cfg.AdminEmail, logger),
		blogService:    blogService,
		bookingService: bookingService,
		mediaService:   mediaservice.NewMediaService(store, cfg.UploadMaxBytes, logger),
		mailService:    mailService,
		broker:         broker,
		hub:            hub,
		uploadDir:      uploadDir,
	}, nil
}
