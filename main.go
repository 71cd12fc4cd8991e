package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "waiting-backend/cmd/api"
	authUsecase "waiting-backend/internal/auth/usecase"
	"waiting-backend/internal/notification"
	"waiting-backend/internal/waiting/cache"
	"waiting-backend/internal/waiting/collab"
	waitingDelivery "waiting-backend/internal/waiting/delivery"
	"waiting-backend/internal/waiting/domain"
	"waiting-backend/internal/waiting/repository"
	"waiting-backend/internal/waiting/usecase"
	"waiting-backend/pkg/config"
	"waiting-backend/pkg/database"
	"waiting-backend/pkg/fcm"
	"waiting-backend/pkg/gmail"
	"waiting-backend/pkg/graph"
	"waiting-backend/pkg/imap"
	"waiting-backend/pkg/sse"
)

func main() {
	issueToken := flag.String("issue-token", "", "print a bearer token for the given email and exit")
	flag.Parse()

	// Load configuration
	cfg := config.Load()

	authUsecaseInstance := authUsecase.NewAuthUsecase(cfg.JWTSecret, cfg.JWTExpiry, nil)
	if *issueToken != "" {
		token, err := authUsecaseInstance.IssueToken(*issueToken, *issueToken)
		if err != nil {
			log.Fatal("Failed to issue token:", err)
		}
		fmt.Println(token)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage, falling back to process memory without a database
	var stateStore repository.StateStore
	var deviceTokenRepo repository.DeviceTokenRepository
	db, err := database.NewPostgresConnection(cfg)
	switch {
	case errors.Is(err, database.ErrNoDatabaseURL):
		log.Printf("[WARN] DATABASE_URL not set, dismiss/snooze state and devices are kept in memory")
		stateStore = repository.NewMemoryStateStore()
		deviceTokenRepo = repository.NewMemoryDeviceTokenRepository()
	case err != nil:
		log.Fatal("Failed to connect to database:", err)
	default:
		if err := db.AutoMigrate(&domain.StateBlob{}, &domain.DeviceToken{}); err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		stateStore = repository.NewStateRepository(db)
		deviceTokenRepo = repository.NewDeviceTokenRepository(db)
	}

	// Collaboration API and the caches in front of it
	graphClient := graph.NewClient(ctx, cfg.GraphBaseURL, graph.Credentials{
		TenantID:     cfg.AzureTenantID,
		ClientID:     cfg.AzureClientID,
		ClientSecret: cfg.AzureClientSecret,
		AccessToken:  cfg.GraphAccessToken,
		RefreshToken: cfg.GraphRefreshToken,
	})
	directory := collab.NewDirectory(graphClient)
	relationships := cache.NewRelationshipCache(directory, cfg.RelationshipCacheTTL, nil)
	avatars := cache.NewAvatarCache(collab.NewPhotoFetcher(graphClient), cfg.AvatarBatchDelay)

	sources := usecase.Sources{
		Email:   newEmailSource(ctx, cfg, graphClient),
		Chat:    collab.NewChatSource(graphClient),
		Channel: collab.NewChannelSource(graphClient),
		Mention: collab.NewMentionSource(graphClient),
	}

	aggregator := usecase.NewAggregator(directory, relationships, collab.NewUserLookup(graphClient), avatars, sources, nil)
	aggregator.SetSLATargets(slaTargets(cfg.SLATargets))

	defaultFilter := domain.DefaultWaitingFilter()
	defaultFilter.MinStaleDurationHours = cfg.MinStaleHours
	defaultFilter.MaxResults = cfg.MaxResults

	waitingUsecaseInstance := usecase.NewWaitingUsecase(
		aggregator,
		usecase.NewPersistenceStore(stateStore, nil),
		usecase.NewTrendEstimator(stateStore, nil, nil),
		defaultFilter,
		nil,
	)

	// Initialize SSE Manager
	sseManager := sse.NewManager()
	go sseManager.Run()
	defer sseManager.Stop()

	listeners := []usecase.RefreshListener{notification.NewSSEPublisher(sseManager, nil)}
	if cfg.FirebaseCredentials != "" {
		fcmClient, err := fcm.NewClient(ctx, cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("[WARN] Failed to initialize FCM client (push notifications disabled): %v", err)
		} else {
			listeners = append(listeners, notification.NewCriticalNotifier(fcmClient, deviceTokenRepo))
		}
	} else {
		log.Printf("[WARN] No Firebase credentials configured, push notifications disabled")
	}

	refresher := usecase.NewAutoRefresher(waitingUsecaseInstance, cfg.AutoRefreshInterval, listeners...)
	refresher.Start()
	defer refresher.Stop()

	// Mailbox change notifications trigger an immediate refresh
	if cfg.GoogleProjectID != "" && cfg.GooglePubSubTopic != "" {
		listener, err := notification.NewListener(ctx, cfg.GoogleProjectID, cfg.GooglePubSubTopic, cfg.GooglePubSubSubscription, cfg.GoogleCredentials, refresher)
		if err != nil {
			log.Printf("[ERROR] Failed to initialize Pub/Sub listener: %v", err)
		} else {
			go listener.Start(ctx)
			defer listener.Close()
		}
	} else {
		log.Printf("[WARN] Pub/Sub not configured, relying on periodic refresh")
	}

	waitingHandler := waitingDelivery.NewWaitingHandler(waitingUsecaseInstance, refresher)
	waitingHandler.SetTrendDays(cfg.TrendDays)

	handler := api.NewHandler(api.Routes{
		Auth:     authUsecaseInstance,
		Waiting:  waitingHandler,
		Devices:  waitingDelivery.NewDeviceHandler(deviceTokenRepo),
		Settings: api.NewSettingsHandler(waitingUsecaseInstance, refresher),
		SSE:      sseManager,
	})
	srv := handler.Server(":" + cfg.Port)

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[ERROR] Server shutdown: %v", err)
	}
}

// newEmailSource picks the email stream for EMAIL_PROVIDER
func newEmailSource(ctx context.Context, cfg *config.Config, graphClient *graph.Client) collab.Source {
	switch cfg.EmailProvider {
	case config.EmailProviderGmail:
		gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret)
		source := collab.NewGmailSource(gmailService, cfg.GoogleAccessToken, cfg.GoogleRefreshToken)
		if cfg.GooglePubSubTopic != "" {
			if err := source.Watch(ctx, gmailService, cfg.GooglePubSubTopic); err != nil {
				log.Printf("[WARN] Gmail watch failed, inbox changes will wait for the next refresh: %v", err)
			}
		}
		log.Println("Email source: Gmail")
		return source

	case config.EmailProviderIMAP:
		log.Printf("Email source: IMAP %s", cfg.IMAPServer)
		return collab.NewIMAPSource(imap.NewService(imap.Config{
			Server:   cfg.IMAPServer,
			Port:     cfg.IMAPPort,
			Username: cfg.IMAPUsername,
			Password: cfg.IMAPPassword,
		}))

	default:
		if cfg.EmailProvider != config.EmailProviderGraph {
			log.Printf("[WARN] Unknown EMAIL_PROVIDER %q, using graph", cfg.EmailProvider)
		}
		return collab.NewEmailSource(graphClient)
	}
}

func slaTargets(targets []config.SLATarget) []domain.ResponseTimeSLA {
	slas := make([]domain.ResponseTimeSLA, 0, len(targets))
	for _, t := range targets {
		rel, ok := domain.ParseRelationship(t.Relationship)
		if !ok {
			log.Printf("[WARN] Ignoring SLA target for unknown relationship %q", t.Relationship)
			continue
		}
		slas = append(slas, domain.ResponseTimeSLA{Relationship: rel, MaxHours: t.MaxHours})
	}
	return slas
}
