package sync

import (
	"context"

	"go.uber.org/zap"

	"github.com/matheus3301/microchat/internal/chatsync"
	"github.com/matheus3301/microchat/internal/store"
)

// CachedNames resolves display names through the server and falls back to
// the names archived from earlier runs when the lookup fails.
type CachedNames struct {
	fetcher chatsync.NameFetcher
	db      *store.DB
	logger  *zap.Logger
}

// NewCachedNames wraps fetcher with the peer cache in db.
func NewCachedNames(fetcher chatsync.NameFetcher, db *store.DB, logger *zap.Logger) *CachedNames {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedNames{fetcher: fetcher, db: db, logger: logger}
}

// FetchName implements chatsync.NameFetcher.
func (c *CachedNames) FetchName(ctx context.Context, key chatsync.ChatKey) (string, error) {
	name, err := c.fetcher.FetchName(ctx, key)
	if err == nil {
		if perr := c.db.UpsertPeer(&store.Peer{PeerID: key.PeerID, ChatKind: int(key.Kind), Name: name}); perr != nil {
			c.logger.Warn("failed to cache peer", zap.Stringer("chat", key), zap.Error(perr))
		}
		return name, nil
	}
	p, cerr := c.db.GetPeer(key.PeerID, int(key.Kind))
	if cerr != nil || p == nil {
		return "", err
	}
	c.logger.Debug("name served from cache", zap.Stringer("chat", key), zap.Error(err))
	return p.Name, nil
}
