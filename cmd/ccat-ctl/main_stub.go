//go:build !grpcproto

package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "ccat-ctl requires generated gRPC stubs; run protoc on proto/ccatsim.proto and rebuild with -tags grpcproto")
	os.Exit(1)
}
