package main

import (
	"github.com/decred/slog"
	"google.golang.org/grpc"

	"github.com/wirefec/ccat/internal/env"
)

// registerExperiment binds the experiment service onto the gRPC server. The
// default is a no-op so the binary builds before protoc has generated stubs;
// the grpcproto build tag swaps in the real registration.
var registerExperiment = func(*grpc.Server, *env.Server, slog.Logger) {}
