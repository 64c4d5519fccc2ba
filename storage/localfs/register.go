package localfs

import (
	"flag"
	"fmt"

	"github.com/macterra/artx-market/storage"
	"github.com/macterra/artx-market/storage/registry"
)

var flagLocalDir string

func init() {
	registry.MustRegister(registry.Backend{
		Name:        "localfs",
		Description: "Local filesystem block store (directory)",
		Usage:       registry.UsageCLI | registry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagLocalDir, "localfs-dir", "", "block store directory (for -backend=localfs)")
		},
		Open: func(config map[string]string) (storage.BlockStore, func() error, error) {
			dir := flagLocalDir
			if v, ok := config["localfs-dir"]; ok {
				dir = v
			}
			if dir == "" {
				return nil, nil, fmt.Errorf("missing -localfs-dir")
			}
			store, err := New(dir)
			return store, nil, err
		},
	})
}
