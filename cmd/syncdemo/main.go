// Command syncdemo is a small runnable demonstration of the primitives in
// this module: a bounded job channel, a worker pool gated by a semaphore,
// and a results map guarded by an rwlock. It is not a library entry point —
// nothing under the package roots imports it — it exists to exercise every
// package from one real call site, the way cmd/golang-demo does for the
// teacher's internal/http and internal/postgres packages.
package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"github.com/concurrency-kit/syncx/channel"
	"github.com/concurrency-kit/syncx/errgroup"
	"github.com/concurrency-kit/syncx/rwlock"
	"github.com/concurrency-kit/syncx/semaphore"
)

type variables struct {
	Workers       int    `required:"false" envconfig:"workers"`
	QueueCapacity int    `required:"false" envconfig:"queue_capacity"`
	Jobs          int    `required:"false" envconfig:"jobs"`
	LogLevel      string `required:"false" envconfig:"log_level"`
}

func main() {
	v := variables{Workers: 4, QueueCapacity: 16, Jobs: 50, LogLevel: "info"}
	if err := envconfig.Process("syncdemo", &v); err != nil {
		fmt.Fprintln(os.Stderr, "syncdemo: failed to read environment:", err)
		os.Exit(1)
	}

	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(v.LogLevel)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, "syncdemo: failed to build logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("syncdemo starting",
		zap.Int("workers", v.Workers),
		zap.Int("queue_capacity", v.QueueCapacity),
		zap.Int("jobs", v.Jobs),
	)

	run(logger, v)
}

func run(logger *zap.Logger, v variables) {
	group, ctx := errgroup.WithContext(context.Background())

	sender, receiver := channel.Bounded[int](v.QueueCapacity, channel.WithLogger(logger))
	results := rwlock.New(map[int]int{})
	pool := semaphore.New(uint64(v.Workers), semaphore.WithLogger(logger))

	group.Go(func() error {
		defer sender.Close()
		for i := 0; i < v.Jobs; i++ {
			if err := sender.Send(ctx, i); err != nil {
				return err
			}
		}
		return nil
	})

	group.Go(func() error {
		defer receiver.Close()
		var workers sync.WaitGroup
		defer workers.Wait()
		for {
			job, err := receiver.Recv(ctx)
			if err != nil {
				return nil // disconnected: producer is done, not a failure
			}

			permit, err := pool.Acquire(ctx, 1)
			if err != nil {
				return err
			}
			workers.Add(1)
			go func(job int) {
				defer workers.Done()
				defer permit.Release()
				processJob(ctx, logger, job, results)
			}(job)
		}
	})

	if err := group.Wait(); err != nil {
		logger.Error("syncdemo pipeline failed", zap.Error(err))
		return
	}

	g, err := results.Read(ctx)
	if err != nil {
		logger.Error("failed to read results", zap.Error(err))
		return
	}
	logger.Info("syncdemo finished", zap.Int("results", len(*g.Value())))
	g.Release()
}

func processJob(ctx context.Context, logger *zap.Logger, job int, results *rwlock.RWLock[map[int]int]) {
	start := time.Now()
	defer func() {
		logger.Debug("job finished", zap.Int("job", job), zap.Duration("elapsed", time.Since(start)))
	}()

	g, err := results.Write(ctx)
	if err != nil {
		logger.Error("failed to acquire results lock", zap.Error(err))
		return
	}
	defer g.Release()
	(*g.Value())[job] = job * job
}
