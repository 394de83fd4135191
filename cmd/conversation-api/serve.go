package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/soheilhy/cmux"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	conversation_routers "github.com/shiraai/api/conversation-api/router"
	"github.com/shiraai/pkg/commons"
	"github.com/shiraai/pkg/middlewares"
	"github.com/shiraai/pkg/utils"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	var migrateOnStart bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the http, websocket and grpc health listeners on one port",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app := &AppRunner{}
			if err := app.ResolveConfig(); err != nil {
				return err
			}
			if err := app.Logging(); err != nil {
				return err
			}
			if err := app.Init(ctx); err != nil {
				return err
			}
			defer app.Close(context.Background())

			if migrateOnStart {
				if err := runMigration(ctx, app, "up"); err != nil {
					return err
				}
			}
			return app.Serve(ctx)
		},
	}
	cmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "apply pending schema migrations before serving")
	return cmd
}

func (app *AppRunner) Engine() *gin.Engine {
	if utils.FromEnvironmentStr(app.Cfg.Env) == utils.PRODUCTION {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowOrigins: app.Cfg.AllowedOrigins(),
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			utils.HEADER_AUTH_KEY,
			utils.HEADER_CLIENT_INFO_KEY,
			utils.HEADER_APIKEY_KEY,
			utils.HEADER_CONTENT_TYPE,
			utils.HEADER_API_KEY,
		},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))
	engine.Use(middlewares.NewRequestLoggerMiddleware(app.Cfg.Name, app.Logger, app.Metrics))

	conversation_routers.HealthCheckRoutes(app.Cfg, engine, app.Logger, app.Metrics, app.Connectors()...)
	conversation_routers.LiveSessionApiRoute(app.Cfg, engine, app.Logger, app.Postgres, app.Metrics)
	conversation_routers.TalkApiRoute(app.Cfg, engine, app.Logger, app.Postgres, app.Storage, app.Metrics)
	return engine
}

// GrpcServer exposes the standard grpc health service so orchestrators can
// probe over http2 on the same port.
func (app *AppRunner) GrpcServer() (*grpc.Server, *health.Server) {
	logOpts := []logging.Option{logging.WithLogOnEvents(logging.FinishCall)}
	recoveryOpts := []recovery.Option{
		recovery.WithRecoveryHandler(func(p any) error {
			app.Logger.Errorf("recovered from grpc panic: %v", p)
			return status.Errorf(codes.Internal, "internal error")
		}),
	}
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			recovery.UnaryServerInterceptor(recoveryOpts...),
			logging.UnaryServerInterceptor(grpcLogger(app.Logger), logOpts...),
		),
		grpc.ChainStreamInterceptor(
			recovery.StreamServerInterceptor(recoveryOpts...),
			logging.StreamServerInterceptor(grpcLogger(app.Logger), logOpts...),
		),
	)
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, hs)
	return s, hs
}

func grpcLogger(l commons.Logger) logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		switch lvl {
		case logging.LevelDebug:
			l.Debugw(msg, fields...)
		case logging.LevelInfo:
			l.Infow(msg, fields...)
		case logging.LevelWarn:
			l.Warnw(msg, fields...)
		default:
			l.Errorw(msg, fields...)
		}
	})
}

func (app *AppRunner) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", app.Cfg.Host, app.Cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := cmux.New(listener)
	grpcListener := mux.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpListener := mux.Match(cmux.Any())

	grpcServer, healthServer := app.GrpcServer()
	httpServer := &http.Server{Handler: app.Engine(), ReadHeaderTimeout: 10 * time.Second}
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return grpcServer.Serve(grpcListener) })
	g.Go(func() error {
		if err := httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, cmux.ErrListenerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := mux.Serve(); err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		app.Logger.Infof("shutting down %s", app.Cfg.Name)
		healthServer.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			app.Logger.Errorf("http shutdown: %v", err)
		}
		grpcServer.GracefulStop()
		mux.Close()
		return nil
	})

	app.Logger.Infof("%s %s listening on %s", app.Cfg.Name, app.Cfg.Version, addr)
	return g.Wait()
}
