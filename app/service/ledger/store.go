package ledger

import (
	"context"
	"medremind/app/config"

	"github.com/samber/do"
	"github.com/samber/oops"
)

// Store persists the whole ledger document. A missing or corrupt document
// loads as an empty ledger; Load fails only when the store cannot be read.
type Store interface {
	Load(ctx context.Context) (*Ledger, error)
	Save(ctx context.Context, l *Ledger) error
	Close() error
}

// storeHandle lets the injector close the store on shutdown.
type storeHandle struct {
	Store
}

var _ do.Shutdownable = (*storeHandle)(nil)

func (h *storeHandle) Shutdown() error {
	return h.Close()
}

func NewStore(di *do.Injector) (Store, error) {
	cfg := do.MustInvoke[*config.Config](di)

	switch cfg.Storage.Driver {
	case "json":
		return &storeHandle{NewJSONStore(cfg.Files.Ledger)}, nil
	case "sqlite":
		store, err := NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &storeHandle{store}, nil
	default:
		return nil, oops.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
