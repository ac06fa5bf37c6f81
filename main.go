package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"groupchat-service/internal/auth"
	"groupchat-service/internal/blob"
	"groupchat-service/internal/broker"
	"groupchat-service/internal/config"
	"groupchat-service/internal/db"
	"groupchat-service/internal/grpcserver"
	"groupchat-service/internal/handlers"
	"groupchat-service/internal/jobs"
	"groupchat-service/internal/logging"
	"groupchat-service/internal/middleware"
	"groupchat-service/internal/observability"
	"groupchat-service/internal/rabbitmq"
	"groupchat-service/internal/repositories"
	"groupchat-service/internal/repositories/memory"
	"groupchat-service/internal/services"
	"groupchat-service/internal/telemetry"
	"groupchat-service/internal/ws"
)

type stores struct {
	chats      repositories.ChatRepository
	messages   repositories.MessageRepository
	directory  repositories.DirectoryRepository
	categories repositories.CategoryRepository
	streaks    repositories.StreakRepository
	close      func() error
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("info", "json", "groupchat-service", "unknown")
		boot.Fatal().Err(err).Msg("load config")
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName, cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.ServiceName, cfg.Environment, cfg.OTLPEndpoint, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init tracing")
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open store")
	}

	var fanout broker.Broker
	hub := broker.NewHub(cfg.SubscriptionBuffer, logger)
	fanout = hub
	var bridge *broker.RedisBridge
	if cfg.RedisURL != "" {
		bridge, err = broker.NewRedisBridge(cfg.RedisURL, hub, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect redis")
		}
		fanout = bridge
		go func() {
			if err := bridge.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("redis bridge stopped")
			}
		}()
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	logger.Info().
		Str("mode", rabbitmq.PublisherMode(publisher)).
		Str("reason", rabbitmq.PublisherNoopReason(publisher)).
		Msg("event publisher ready")
	observability.SetPublisher(publisher, cfg.ServiceName)
	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment, logger)

	var signer services.AttachmentSigner
	presigner, err := blob.NewS3Presigner(ctx, blob.Options{
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3User,
		SecretKey: cfg.S3Password,
	})
	switch {
	case errors.Is(err, blob.ErrDisabled):
		logger.Info().Msg("attachment uploads disabled")
	case err != nil:
		logger.Fatal().Err(err).Msg("init blob store")
	default:
		signer = presigner
	}

	runner := jobs.NewRunner(cfg.JobQueueSize, cfg.JobWorkers, 10*time.Minute, logger)
	runner.Start(ctx)

	retry := services.DefaultRetryPolicy()
	retry.MaxRetries = cfg.StoreRetries
	clock := services.Clock(time.Now)

	directory := services.NewDirectoryService(st.directory, clock, logger)
	chats := services.NewChatService(st.chats, directory, fanout, retry, clock, logger)
	messages := services.NewMessageService(st.chats, st.messages, directory, fanout, signer, cfg.SubscriptionBuffer, retry, clock, logger)
	categories := services.NewCategoryService(st.categories, runner, cfg.CategoryChunkSize, retry, clock, logger)
	streaks := services.NewStreakService(st.streaks, cfg.StreakLocation(), retry, clock, logger)

	scheduler := jobs.NewScheduler(10*time.Minute, logger)
	if err := scheduler.Add(cfg.CategorySweepCron, jobs.Job{
		Name: "category_sweep",
		Run: func(ctx context.Context) error {
			_, err := categories.Sweep(ctx)
			return err
		},
	}); err != nil {
		logger.Fatal().Err(err).Msg("schedule category sweep")
	}
	go func() { _ = scheduler.Run(ctx) }()

	verifier := auth.NewVerifier(cfg.JWTSecret)

	chatHandler := handlers.NewChatHandler(chats, messages, audit)
	groupHandler := handlers.NewGroupHandler(chats, audit)
	categoryHandler := handlers.NewCategoryHandler(categories, audit)
	streakHandler := handlers.NewStreakHandler(streaks)
	directoryHandler := handlers.NewDirectoryHandler(directory)
	chatWS := ws.NewChatWebSocketHandler(messages, logger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		gin.Recovery(),
		otelgin.Middleware(cfg.ServiceName),
		middleware.RequestID(),
		logging.Middleware(logger),
		observability.HTTPMetricsMiddleware(),
	)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/", middleware.AuthMiddleware(verifier, directory, logger))

	api.POST("/chats/direct", chatHandler.StartDirect)
	api.GET("/chats", chatHandler.ListChats)
	api.GET("/chats/:chat_id", chatHandler.GetChat)
	api.GET("/chats/:chat_id/members", chatHandler.ListMembers)
	api.POST("/chats/:chat_id/clear", chatHandler.ClearChat)
	api.GET("/chats/:chat_id/messages", chatHandler.GetMessages)
	api.POST("/chats/:chat_id/messages", chatHandler.PostMessage)
	api.POST("/chats/:chat_id/attachments", chatHandler.PresignAttachment)

	api.POST("/groups", groupHandler.CreateGroup)
	api.POST("/groups/join", groupHandler.JoinGroup)
	api.PATCH("/groups/:chat_id", groupHandler.RenameGroup)
	api.DELETE("/groups/:chat_id", groupHandler.DeleteGroup)
	api.DELETE("/groups/:chat_id/members/:user_id", groupHandler.RemoveMember)
	api.POST("/groups/:chat_id/leave", groupHandler.LeaveGroup)

	api.POST("/categories", categoryHandler.Create)
	api.PATCH("/categories/:category_id", categoryHandler.Rename)
	api.DELETE("/categories/:category_id", categoryHandler.Delete)
	api.PUT("/notes/:note_id", categoryHandler.UpsertNote)
	api.GET("/notes/:note_id", categoryHandler.GetNote)

	api.POST("/streak/activity", streakHandler.RecordActivity)
	api.GET("/streak", streakHandler.Get)

	api.PUT("/directory/me", directoryHandler.UpsertMe)
	api.GET("/directory", directoryHandler.Lookup)
	api.GET("/directory/:user_id", directoryHandler.Get)

	api.GET("/ws/chats/:chat_id", chatWS.Handle)

	handlers.RegisterDebugRoutes(api, audit, cfg.DebugRoutes)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcSrv := grpcserver.New(cfg.ServiceName, logger)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.GRPCAddr).Msg("listen grpc")
	}
	go func() {
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error().Err(err).Msg("grpc server stopped")
		}
	}()

	go func() {
		logger.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	grpcSrv.Stop(shutdownCtx)
	hub.Close()
	runner.Stop()
	if bridge != nil {
		_ = bridge.Close()
	}
	if err := publisher.Close(); err != nil {
		logger.Warn().Err(err).Msg("close event publisher")
	}
	if err := st.close(); err != nil {
		logger.Warn().Err(err).Msg("close store")
	}
	_ = shutdownTracing(shutdownCtx)
}

func openStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (stores, error) {
	if cfg.StoreDriver == "memory" {
		logger.Warn().Msg("using in-memory store; data is lost on restart")
		mem := memory.New()
		return stores{
			chats:      mem.Chats(),
			messages:   mem.Messages(),
			directory:  mem.Directory(),
			categories: mem.Categories(),
			streaks:    mem.Streaks(),
			close:      func() error { return nil },
		}, nil
	}

	conn, err := db.Connect(ctx, cfg.DBDSN, db.Options{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLife,
	}, logger)
	if err != nil {
		return stores{}, err
	}
	return stores{
		chats:      repositories.NewChatRepo(conn),
		messages:   repositories.NewMessageRepo(conn),
		directory:  repositories.NewDirectoryRepo(conn),
		categories: repositories.NewCategoryRepo(conn),
		streaks:    repositories.NewStreakRepo(conn),
		close:      conn.Close,
	}, nil
}
