package main

import (
	"context"
	"log/slog"
	"net"

	"github.com/smartbook-ai/smartbook/libs/config"
	"github.com/smartbook-ai/smartbook/libs/grpcx"
)

// startGrpcServer serves the standard health service so orchestrators and
// slotctl can probe the service over gRPC. It reports NOT_SERVING on shutdown.
func startGrpcServer(ctx context.Context, logger *slog.Logger, service string) error {
	port, err := config.Port("GRPC_PORT", "9090")
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}

	srv, health := grpcx.NewServer(logger, service)

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		health.Shutdown()
		srv.GracefulStop()
	}()

	return nil
}
