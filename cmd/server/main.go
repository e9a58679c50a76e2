package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tyemirov/ticketauth/internal/authkit"
	"github.com/tyemirov/ticketauth/internal/authkitpg"
	"github.com/tyemirov/ticketauth/internal/web"
	"go.uber.org/zap"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "ticketauth",
		Short:   "Reservation auth service with JWT access/refresh tokens and Redis-backed revocation",
		PreRunE: prepareServerConfig,
		RunE:    runServer,
	}

	rootCmd.Flags().String("listen_addr", ":8080", "HTTP listen address")
	rootCmd.Flags().String("jwt_signing_key", "", "HS256 signing secret for access and refresh tokens")
	rootCmd.Flags().String("jwt_issuer", defaultJWTIssuer, "Issuer claim stamped on and required of every token")
	rootCmd.Flags().Duration("access_ttl", 30*time.Minute, "Access token TTL")
	rootCmd.Flags().Duration("refresh_ttl", 14*24*time.Hour, "Refresh token TTL")
	rootCmd.Flags().String("redis_addr", "", "Redis address for the revocation store (empty for in-memory)")
	rootCmd.Flags().String("redis_password", "", "Redis password")
	rootCmd.Flags().Int("redis_db", 0, "Redis database number")
	rootCmd.Flags().String("redis_key_prefix", "ticketauth:", "Prefix applied to every revocation key")
	rootCmd.Flags().Duration("store_timeout", 2*time.Second, "Upper bound for each revocation or credential store call")
	rootCmd.Flags().String("database_url", "", "Database URL for credentials (postgres:// or sqlite://; leave empty for in-memory store)")
	rootCmd.Flags().String("credential_driver", credentialDriverGORM, "Credential store driver for database_url: gorm or pgx")
	rootCmd.Flags().Int("bcrypt_cost", 0, "bcrypt cost for password hashes (0 selects the library default)")
	rootCmd.Flags().Bool("enable_cors", false, "Enable CORS for cross-origin clients")
	rootCmd.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled; a lone * admits every origin")
	rootCmd.Flags().StringSlice("public_path_prefixes", authkit.DefaultPublicPathPrefixes, "Path prefixes that skip bearer token inspection")

	for _, name := range []string{
		"listen_addr", "jwt_signing_key", "jwt_issuer", "access_ttl", "refresh_ttl",
		"redis_addr", "redis_password", "redis_db", "redis_key_prefix", "store_timeout",
		"database_url", "credential_driver", "bcrypt_cost", "enable_cors", "cors_allowed_origins",
		"public_path_prefixes",
	} {
		_ = viper.BindPFlag(name, rootCmd.Flags().Lookup(name))
	}

	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()

	return rootCmd
}

const (
	defaultJWTIssuer     = "ticketauth"
	credentialDriverGORM = "gorm"
	credentialDriverPGX  = "pgx"

	configCodeMissingJWTSigningKey    = "config.missing_jwt_signing_key"
	configCodeInvalidAccessTTL        = "config.invalid_access_ttl"
	configCodeInvalidRefreshTTL       = "config.invalid_refresh_ttl"
	configCodeInvalidStoreTimeout     = "config.invalid_store_timeout"
	configCodeInvalidCredentialDriver = "config.invalid_credential_driver"
	configCodeUninitializedServerConf = "config.uninitialized_server_config"
	configCodeRevocationStoreInit     = "config.revocation_store_init"
	configCodeCredentialStoreInit     = "config.credential_store_init"
)

type contextKey string

const serverConfigContextKey contextKey = "serverConfig"

func prepareServerConfig(command *cobra.Command, arguments []string) error {
	serverConfig, loadErr := LoadServerConfig()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, serverConfigContextKey, serverConfig))
	return nil
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

// LoadServerConfig reads and validates the token and gate settings from viper.
func LoadServerConfig() (authkit.ServerConfig, error) {
	jwtSigningKey := viper.GetString("jwt_signing_key")
	if jwtSigningKey == "" {
		return authkit.ServerConfig{}, configError(configCodeMissingJWTSigningKey, "jwt_signing_key must be provided")
	}

	accessTTL := viper.GetDuration("access_ttl")
	if accessTTL <= 0 {
		return authkit.ServerConfig{}, configError(configCodeInvalidAccessTTL, "access_ttl must be greater than zero")
	}

	refreshTTL := viper.GetDuration("refresh_ttl")
	if refreshTTL <= accessTTL {
		return authkit.ServerConfig{}, configError(configCodeInvalidRefreshTTL, "refresh_ttl must be greater than access_ttl")
	}

	storeTimeout := viper.GetDuration("store_timeout")
	if storeTimeout <= 0 {
		return authkit.ServerConfig{}, configError(configCodeInvalidStoreTimeout, "store_timeout must be greater than zero")
	}

	issuer := strings.TrimSpace(viper.GetString("jwt_issuer"))
	if issuer == "" {
		issuer = defaultJWTIssuer
	}

	publicPrefixes := viper.GetStringSlice("public_path_prefixes")
	if len(publicPrefixes) == 0 {
		publicPrefixes = authkit.DefaultPublicPathPrefixes
	}

	return authkit.ServerConfig{
		JWTSigningKey:      []byte(jwtSigningKey),
		JWTIssuer:          issuer,
		AccessTTL:          accessTTL,
		RefreshTTL:         refreshTTL,
		StoreTimeout:       storeTimeout,
		PublicPathPrefixes: publicPrefixes,
	}, nil
}

func runServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	commandContext := command.Context()
	var contextValue any
	if commandContext != nil {
		contextValue = commandContext.Value(serverConfigContextKey)
	}
	serverConfig, ok := contextValue.(authkit.ServerConfig)
	if !ok {
		return configError(configCodeUninitializedServerConf, "server configuration not prepared; PreRunE must execute before RunE")
	}

	listenAddr := viper.GetString("listen_addr")
	enableCORS := viper.GetBool("enable_cors")
	corsAllowedOrigins := viper.GetStringSlice("cors_allowed_origins")

	revocations, closeRevocations, revocationErr := buildRevocationStore(commandContext, serverConfig, logger)
	if revocationErr != nil {
		return fmt.Errorf("%s: %w", configCodeRevocationStoreInit, revocationErr)
	}
	defer closeRevocations()

	credentials, closeCredentials, credentialErr := buildCredentialStore(commandContext, logger)
	if credentialErr != nil {
		return credentialErr
	}
	defer closeCredentials()

	passwords, hasherErr := authkit.NewBcryptHasher(viper.GetInt("bcrypt_cost"))
	if hasherErr != nil {
		return configError("config.invalid_bcrypt_cost", hasherErr.Error())
	}

	codec, codecErr := authkit.NewTokenCodec(serverConfig, nil)
	if codecErr != nil {
		return configError("config.token_codec_init", codecErr.Error())
	}

	metricsRecorder := authkit.NewCounterMetrics()
	sessionService, serviceErr := authkit.NewSessionService(authkit.SessionServiceDependencies{
		Codec:        codec,
		Revocations:  revocations,
		Credentials:  credentials,
		Passwords:    passwords,
		Logger:       logger,
		Metrics:      metricsRecorder,
		StoreTimeout: serverConfig.StoreTimeout,
	})
	if serviceErr != nil {
		return serviceErr
	}
	authenticator := authkit.NewRequestAuthenticator(serverConfig, codec, revocations, logger, metricsRecorder)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(zapLoggerMiddleware(logger))

	if enableCORS {
		corsMiddleware, corsErr := web.ConfigureCORS(logger, corsAllowedOrigins)
		if corsErr != nil {
			return corsErr
		}
		router.Use(corsMiddleware)
	}
	router.Use(authenticator.Middleware())

	authkit.MountAuthRoutes(router, sessionService, logger)

	protected := router.Group("/api")
	protected.Use(authkit.RequirePrincipal())
	protected.GET("/me", web.HandleWhoAmI(logger, credentials))
	protected.GET("/admin/metrics", authkit.RequireRole(authkit.RoleAdmin), func(contextGin *gin.Context) {
		contextGin.JSON(http.StatusOK, metricsRecorder.Snapshot())
	})

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(stopSignals)
		select {
		case <-stopSignals:
		case <-shutdownCtx.Done():
			return
		}
		graceCtx, graceCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", listenAddr))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}

func buildRevocationStore(ctx context.Context, serverConfig authkit.ServerConfig, logger *zap.Logger) (authkit.RevocationStore, func(), error) {
	redisAddr := strings.TrimSpace(viper.GetString("redis_addr"))
	if redisAddr == "" {
		logger.Info("using in-memory revocation store")
		return authkit.NewMemoryRevocationStore(nil), func() {}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := authkit.NewRedisClient(ctx, authkit.RedisOptions{
		Addr:     redisAddr,
		Password: viper.GetString("redis_password"),
		DB:       viper.GetInt("redis_db"),
		Timeout:  serverConfig.StoreTimeout,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using redis revocation store", zap.String("addr", redisAddr))
	store := authkit.NewRedisRevocationStore(client, viper.GetString("redis_key_prefix"), serverConfig.StoreTimeout)
	return store, func() { _ = client.Close() }, nil
}

func buildCredentialStore(ctx context.Context, logger *zap.Logger) (authkit.CredentialStore, func(), error) {
	databaseURL := strings.TrimSpace(viper.GetString("database_url"))
	driver := strings.ToLower(strings.TrimSpace(viper.GetString("credential_driver")))
	if driver == "" {
		driver = credentialDriverGORM
	}
	if driver != credentialDriverGORM && driver != credentialDriverPGX {
		return nil, nil, configError(configCodeInvalidCredentialDriver, "credential_driver must be gorm or pgx")
	}
	if databaseURL == "" {
		logger.Info("using in-memory credential store")
		return authkit.NewMemoryCredentialStore(), func() {}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if driver == credentialDriverPGX {
		if !isPostgresURL(databaseURL) {
			return nil, nil, configError(configCodeInvalidCredentialDriver, "credential_driver pgx requires a postgres database_url")
		}
		pool, poolErr := authkitpg.BuildPool(ctx, databaseURL)
		if poolErr != nil {
			return nil, nil, fmt.Errorf("%s: %w", configCodeCredentialStoreInit, poolErr)
		}
		if schemaErr := authkitpg.EnsureSchema(ctx, pool); schemaErr != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("%s: %w", configCodeCredentialStoreInit, schemaErr)
		}
		logger.Info("using postgres credential store", zap.String("driver", credentialDriverPGX))
		return authkitpg.NewPostgresCredentialStore(pool), pool.Close, nil
	}

	store, storeErr := authkit.NewDatabaseCredentialStore(ctx, databaseURL)
	if storeErr != nil {
		return nil, nil, fmt.Errorf("%s: %w", configCodeCredentialStoreInit, storeErr)
	}
	logger.Info("using persistent credential store", zap.String("driver", store.Driver()))
	return store, func() {}, nil
}

func isPostgresURL(databaseURL string) bool {
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	return scheme == "postgres" || scheme == "postgresql"
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		duration := time.Since(startTime)
		logger.Info("http",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("ip", contextGin.ClientIP()),
			zap.Duration("elapsed", duration),
		)
	}
}
