// Package cloudrun selects a kvs backend for Cloud Run.
// Detects Cloud Run via the K_SERVICE env var and tries Datastore first,
// falling back to local files if unavailable.
package cloudrun

import (
	"context"
	"os"

	"github.com/codeGROOVE-dev/kvs/internal/logging"
	"github.com/codeGROOVE-dev/kvs/pkg/store/compress"
	"github.com/codeGROOVE-dev/kvs/pkg/store/datastore"
	"github.com/codeGROOVE-dev/kvs/pkg/store/localfs"
)

var logger = logging.For("cloudrun")

// New returns a backend for the given namespace.
// In Cloud Run it tries Datastore (database = namespace) and falls back to local
// files under the OS cache directory on error. Outside Cloud Run it uses local files.
// The result is a *datastore.Store or a *localfs.Store; pass it to kvs.New.
func New(ctx context.Context, namespace string, c ...compress.Compressor) (any, error) {
	if svc := os.Getenv("K_SERVICE"); svc != "" {
		s, err := datastore.New(ctx, namespace, c...)
		if err == nil {
			return s, nil
		}
		logger.Warn("datastore unavailable, falling back to local files", "service", svc, "error", err)
	}
	s, err := localfs.New(namespace, "", c...)
	if err != nil {
		return nil, err
	}
	return s, nil
}
