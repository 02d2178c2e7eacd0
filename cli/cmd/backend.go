package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/cohelm/brrr/audit"
	"github.com/cohelm/brrr/internal/config"
	"github.com/cohelm/brrr/lode"
	"github.com/cohelm/brrr/log"
	"github.com/cohelm/brrr/queue"
	"github.com/cohelm/brrr/queue/memqueue"
	"github.com/cohelm/brrr/queue/redisqueue"
	"github.com/cohelm/brrr/store"
	"github.com/cohelm/brrr/store/memstore"
	"github.com/cohelm/brrr/store/s3store"
)

// Backends bundles the store/queue/audit wiring every command builds from
// a loaded Config, so worker/server/schedule/monitor/reset all construct
// their dependencies the same way.
type Backends struct {
	Store    store.Store
	Queue    queue.Queue
	Recorder *audit.Recorder
	Logger   *log.SugaredLogger
	Config   *config.Config
}

// LoadBackends reads the config file named by ctx's --config flag and
// constructs the store, queue, and (if enabled) audit recorder it
// describes.
func LoadBackends(ctx *cli.Context, workerID string) (*Backends, error) {
	cfg, err := config.Load(ctx.String(ConfigFlag.Name))
	if err != nil {
		return nil, err
	}
	return backendsFromConfig(cfg, workerID)
}

func backendsFromConfig(cfg *config.Config, workerID string) (*Backends, error) {
	s, err := buildStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	q, err := buildQueue(cfg.Queue)
	if err != nil {
		return nil, err
	}

	backend := fmt.Sprintf("%s+%s", cfg.Store.Backend, cfg.Queue.Backend)
	logger := log.NewLogger(log.WorkerMeta{WorkerID: workerID, Backend: backend}).Sugar()

	rec, err := buildRecorder(cfg.Audit, logger)
	if err != nil {
		return nil, err
	}

	return &Backends{Store: s, Queue: q, Recorder: rec, Logger: logger, Config: cfg}, nil
}

func buildStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return memstore.New(), nil
	case "s3":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s3store.New(ctx, s3store.Config{
			Bucket:       cfg.S3.Bucket,
			Prefix:       cfg.S3.Prefix,
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("cmd: unknown store backend %q", cfg.Backend)
	}
}

func buildQueue(cfg config.QueueConfig) (queue.Queue, error) {
	switch cfg.Backend {
	case "", "memory":
		return memqueue.New(), nil
	case "redis":
		return redisqueue.New(redisqueue.Config{
			URL:         cfg.Redis.URL,
			Key:         cfg.Redis.Key,
			PollTimeout: cfg.Redis.PollTimeout.Duration,
		})
	default:
		return nil, fmt.Errorf("cmd: unknown queue backend %q", cfg.Backend)
	}
}

func buildRecorder(cfg config.AuditConfig, logger audit.Logger) (*audit.Recorder, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	root := cfg.Path
	if root == "" {
		root = "./brrr-audit"
	}
	client, err := lode.NewLodeClient(lode.Config{Dataset: lode.DefaultDataset}, root)
	if err != nil {
		return nil, fmt.Errorf("cmd: building audit recorder: %w", err)
	}

	rec, err := audit.NewRecorder(client, audit.DefaultConfig(lode.DefaultDataset))
	if err != nil {
		return nil, fmt.Errorf("cmd: building audit recorder: %w", err)
	}
	return rec.WithLogger(logger), nil
}

// Close releases b's queue and flushes/stops its audit recorder. Store
// backends (memstore, s3store) hold no closable resources of their own.
func (b *Backends) Close(ctx context.Context) error {
	var firstErr error
	if b.Recorder != nil {
		if err := b.Recorder.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := b.Queue.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
