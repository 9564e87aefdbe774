package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	authclient "github.com/vibast-solutions/lib-go-auth/client"
	authmiddleware "github.com/vibast-solutions/lib-go-auth/middleware"
	authlibservice "github.com/vibast-solutions/lib-go-auth/service"
	"google.golang.org/grpc"

	"github.com/vibast-solutions/ms-go-payment-links/app/controller"
	paymentgrpc "github.com/vibast-solutions/ms-go-payment-links/app/grpc"
	"github.com/vibast-solutions/ms-go-payment-links/app/metrics"
	"github.com/vibast-solutions/ms-go-payment-links/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  "Start the HTTP (Echo) server with the payment request and webhook endpoints, and the read-only gRPC record server.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// internalAuth holds the optional lib-go-auth middlewares. Both are nil when
// no auth service address is configured.
type internalAuth struct {
	echo *authmiddleware.EchoInternalAuthMiddleware
	grpc *authmiddleware.GRPCInternalAuthMiddleware
}

func runServe(_ *cobra.Command, _ []string) {
	rt := mustCreateRuntime()
	defer rt.Close()
	cfg := rt.cfg

	paymentController := controller.NewPaymentController(rt.paymentService)
	grpcPaymentServer := paymentgrpc.NewServer(rt.paymentService)

	auth := internalAuth{}
	if cfg.InternalEndpoints.AuthGRPCAddr != "" {
		authGRPCClient, err := authclient.NewGRPCClientFromAddr(context.Background(), cfg.InternalEndpoints.AuthGRPCAddr)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to initialize auth gRPC client")
		}
		defer authGRPCClient.Close()

		internalAuthService := authlibservice.NewInternalAuthService(authGRPCClient)
		auth.echo = authmiddleware.NewEchoInternalAuthMiddleware(internalAuthService)
		auth.grpc = authmiddleware.NewGRPCInternalAuthMiddleware(internalAuthService)
	} else {
		logrus.Warn("AUTH_SERVICE_GRPC_ADDR is empty, internal endpoints are not authenticated")
	}

	e := setupHTTPServer(cfg, paymentController, rt.metrics, auth)
	grpcSrv, lis := setupGRPCServer(cfg, grpcPaymentServer, auth)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	go func() {
		logrus.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
		if err := grpcSrv.Serve(lis); err != nil {
			logrus.WithError(err).Fatal("gRPC server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	grpcSrv.GracefulStop()

	logrus.Info("Server stopped")
}

func setupHTTPServer(
	cfg *config.Config,
	paymentController *controller.PaymentController,
	m *metrics.Metrics,
	auth internalAuth,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.CORS.AllowOrigins,
	}))

	e.GET("/health", paymentController.Health)
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	// Webhook deliveries are authenticated by their signature only.
	e.POST("/webhook", paymentController.Webhook)

	var internalMiddleware []echo.MiddlewareFunc
	if auth.echo != nil {
		internalMiddleware = append(internalMiddleware, auth.echo.RequireInternalAccess(cfg.App.ServiceName))
	}
	e.POST("/create-link", paymentController.CreateLink, internalMiddleware...)
	e.POST("/create-order", paymentController.CreateOrder, internalMiddleware...)
	e.GET("/status/:requestId", paymentController.GetStatus, internalMiddleware...)
	e.GET("/records", paymentController.ListRecords, internalMiddleware...)
	e.GET("/unlinked-captures", paymentController.ListUnlinkedCaptures, internalMiddleware...)

	return e
}

func setupGRPCServer(
	cfg *config.Config,
	paymentServer *paymentgrpc.Server,
	auth internalAuth,
) (*grpc.Server, net.Listener) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	interceptors := []grpc.UnaryServerInterceptor{
		paymentgrpc.RecoveryInterceptor(),
		paymentgrpc.RequestIDInterceptor(),
		paymentgrpc.LoggingInterceptor(),
	}
	if auth.grpc != nil {
		interceptors = append(interceptors, auth.grpc.UnaryRequireInternalAccess(cfg.App.ServiceName))
	}

	grpcSrv := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	paymentgrpc.RegisterPaymentRecordsServer(grpcSrv, paymentServer)

	return grpcSrv, lis
}
