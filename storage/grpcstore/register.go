package grpcstore

import (
	"flag"
	"fmt"
	"time"

	"github.com/macterra/artx-market/storage"
	"github.com/macterra/artx-market/storage/registry"
)

var (
	flagTarget  string
	flagTimeout time.Duration
)

func init() {
	registry.MustRegister(registry.Backend{
		Name:        "grpc",
		Description: "Remote block store over gRPC (artx-casd)",
		Usage:       registry.UsageCLI | registry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagTarget, "grpc-target", "", "block store gRPC target (for -backend=grpc)")
			fs.DurationVar(&flagTimeout, "grpc-timeout", 10*time.Second, "per-RPC timeout (for -backend=grpc)")
		},
		Open: func(config map[string]string) (storage.BlockStore, func() error, error) {
			target := flagTarget
			if v, ok := config["grpc-target"]; ok {
				target = v
			}
			timeout := flagTimeout
			if v, ok := config["grpc-timeout"]; ok {
				d, err := time.ParseDuration(v)
				if err != nil {
					return nil, nil, fmt.Errorf("invalid grpc-timeout %q: %w", v, err)
				}
				timeout = d
			}
			if target == "" {
				return nil, nil, fmt.Errorf("missing -grpc-target")
			}
			c, err := Dial(target, DialOptions{Timeout: timeout})
			if err != nil {
				return nil, nil, err
			}
			c.Timeout = timeout
			return c, c.Close, nil
		},
	})
}
