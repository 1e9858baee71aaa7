package vectorstore

import (
	"context"
	"fmt"
	"time"

	"opskb/internal/config"
	"opskb/pkg/logger"
)

const milvusDialTimeout = 10 * time.Second

// Open selects the vector store backend once, at startup. When Milvus is
// configured but cannot be opened, the service falls back to the embedded
// store instead of refusing to start; the returned degraded flag lets callers
// surface that mode in health reporting. The degraded store serves reads and
// writes normally but holds data the Milvus deployment will never see, so
// recovery is an operator action, not an automatic re-sync.
func Open(ctx context.Context, cfg *config.VectorStoreConfig, dim int, log *logger.Logger) (Store, bool, error) {
	switch cfg.Backend {
	case "milvus":
		dialCtx, cancel := context.WithTimeout(ctx, milvusDialTimeout)
		ms, err := OpenMilvus(dialCtx, &cfg.Milvus, dim, log)
		cancel()
		if err == nil {
			log.WithField("collection", cfg.Milvus.Collection).Info("vector store backend: milvus")
			return ms, false, nil
		}
		log.WithError(err).Warn("milvus unavailable, falling back to embedded vector store")
		ls, lerr := NewLocal(cfg.Local.Path, dim, log)
		if lerr != nil {
			return nil, false, fmt.Errorf("milvus unavailable and embedded fallback failed: %w", lerr)
		}
		return ls, true, nil

	case "local", "":
		ls, err := NewLocal(cfg.Local.Path, dim, log)
		if err != nil {
			return nil, false, err
		}
		log.WithField("path", cfg.Local.Path).Info("vector store backend: local")
		return ls, false, nil

	default:
		return nil, false, fmt.Errorf("unknown vector store backend %q", cfg.Backend)
	}
}
