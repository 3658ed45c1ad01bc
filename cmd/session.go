package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mezonai/powchain/config"
	"github.com/mezonai/powchain/db"
	"github.com/mezonai/powchain/exception"
	"github.com/mezonai/powchain/logx"
	"github.com/mezonai/powchain/monitoring"
	"github.com/mezonai/powchain/pow"
	"github.com/mezonai/powchain/store"
)

const metricsShutdownTimeout = 3 * time.Second

// session is everything a single command invocation needs: resolved config,
// an open database and, optionally, the metrics endpoint.
type session struct {
	node     *config.NodeConfig
	mining   *config.MiningConfig
	provider db.IterableProvider
	metrics  *http.Server
}

func (o *rootOptions) loadConfig() (*config.NodeConfig, *config.MiningConfig, error) {
	node, err := config.LoadNodeConfig(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.dataDir != "" {
		node.DataDir = o.dataDir
	}
	if o.database != "" {
		node.Database = o.database
	}
	if err := node.Validate(); err != nil {
		return nil, nil, err
	}

	mining, err := config.LoadMiningConfig(o.miningConfigPath)
	if err != nil {
		return nil, nil, err
	}
	return node, mining, nil
}

func (o *rootOptions) newSession() (*session, error) {
	node, mining, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	provider, err := store.CreateProvider(node.StoreConfig())
	if err != nil {
		logx.Error("CMD", "Failed to open ", node.Database, " database at ", node.DataDir, ": ", err)
		return nil, err
	}

	s := &session{node: node, mining: mining, provider: provider}
	if node.MetricsAddr != "" {
		monitoring.InitMetrics()
		srv := monitoring.NewServer(node.MetricsAddr)
		exception.SafeGo("metrics-server", func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logx.Error("CMD", "Metrics server stopped: ", err)
			}
		})
		s.metrics = srv
		logx.Info("CMD", "Serving metrics on ", node.MetricsAddr)
	}
	return s, nil
}

func (s *session) miner() *pow.Miner {
	return pow.NewMiner(s.mining.MinerOptions()...)
}

func (s *session) openStore() (store.BlockStore, error) {
	return store.Open(s.provider, store.WithMiner(s.miner()))
}

func (s *session) close() {
	if s.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := s.metrics.Shutdown(ctx); err != nil {
			logx.Warn("CMD", "Metrics server shutdown: ", err)
		}
	}
	if err := s.provider.Close(); err != nil {
		logx.Error("CMD", "Failed to close database: ", err)
	}
}
