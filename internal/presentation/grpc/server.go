package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"recharge-server/internal/infrastructure/config"
	otelinfra "recharge-server/internal/infrastructure/observability/otel"
	"recharge-server/internal/presentation/grpc/handler"
	"recharge-server/internal/presentation/grpc/interceptor"
)

// Server gRPCサーバー
type Server struct {
	server   *grpc.Server
	listener net.Listener
	port     int
	logger   *otelinfra.Logger
}

// NewServer 新しいgRPCサーバーを作成（REST APIのポート+1で待ち受ける）
func NewServer(
	cfg *config.Config,
	logger *otelinfra.Logger,
	settler handler.Settler,
	ledger handler.BalanceLedger,
) (*Server, error) {
	port := cfg.Server.Port + 1
	address := fmt.Sprintf(":%d", port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	return NewServerWithListener(cfg, logger, settler, ledger, listener, port), nil
}

// NewServerWithListener リスナーを指定してgRPCサーバーを作成
func NewServerWithListener(
	cfg *config.Config,
	logger *otelinfra.Logger,
	settler handler.Settler,
	ledger handler.BalanceLedger,
	listener net.Listener,
	port int,
) *Server {
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			interceptor.AuthInterceptor(&cfg.JWT, logger, interceptor.ForService(handler.SettlementServiceName)),
			interceptor.APIKeyInterceptor(&cfg.AdminAPI, logger, interceptor.ForService(handler.AdminServiceName)),
		),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     15 * time.Second,
			MaxConnectionAge:      30 * time.Second,
			MaxConnectionAgeGrace: 5 * time.Second,
			Time:                  5 * time.Second,
			Timeout:               1 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	}

	grpcServer := grpc.NewServer(opts...)
	handler.RegisterSettlementServiceServer(grpcServer, handler.NewSettlementHandler(settler, ledger))
	handler.RegisterAdminServiceServer(grpcServer, handler.NewAdminHandler(ledger))

	// リフレクション（開発環境のみ）
	if cfg.Environment == "development" {
		reflection.Register(grpcServer)
	}

	return &Server{
		server:   grpcServer,
		listener: listener,
		port:     port,
		logger:   logger,
	}
}

// Start サーバーを起動
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "gRPC server starting", map[string]interface{}{"port": s.port})
	if err := s.server.Serve(s.listener); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Stop サーバーを停止（ctx の期限までに終わらなければ強制停止）
func (s *Server) Stop(ctx context.Context) error {
	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		s.logger.Info(ctx, "gRPC server stopped", nil)
		return nil
	case <-ctx.Done():
		s.logger.Warn(ctx, "gRPC server shutdown timeout, forcing stop", nil)
		s.server.Stop()
		return ctx.Err()
	}
}

// Port サーバーのポート番号を返す
func (s *Server) Port() int {
	return s.port
}
