package di

import (
	"testing"

	"github.com/pcashcroft/backtest/pkg/cache"
	"github.com/pcashcroft/backtest/pkg/config"
)

func TestProvideKafkaProducerDisabled(t *testing.T) {
	cfg := &config.Config{}
	producer, cleanup, err := ProvideKafkaProducer(cfg)
	if err != nil {
		t.Fatalf("provide producer: %v", err)
	}
	if producer != nil {
		t.Fatal("expected nil producer when kafka is disabled")
	}
	if cleanup == nil {
		t.Fatal("cleanup must be non-nil so injectors can always invoke it")
	}
	cleanup()

	if n := ProvideNotifier(producer, cfg); n != nil {
		t.Fatalf("notifier = %v, want nil without a producer", n)
	}
}

func TestProvideKafkaProducerCleanupCloses(t *testing.T) {
	cfg := &config.Config{}
	cfg.Kafka.Enabled = true
	cfg.Kafka.Brokers = []string{"127.0.0.1:9092"}
	cfg.Kafka.Producer.Async = true

	producer, cleanup, err := ProvideKafkaProducer(cfg)
	if err != nil {
		t.Fatalf("provide producer: %v", err)
	}
	if producer == nil {
		t.Fatal("expected a producer when kafka is enabled")
	}
	// The writer is lazy, so closing an unused producer must not block or
	// error. This is the path the build CLI cleanup takes after a run.
	cleanup()
}

func TestProvideCacheTypes(t *testing.T) {
	cfg := &config.Config{}
	if svc, err := ProvideCache(cfg); err != nil || svc != nil {
		t.Fatalf("disabled cache = (%v, %v), want (nil, nil)", svc, err)
	}

	cfg.Cache.Enabled = true
	cfg.Cache.Type = "memory"
	cfg.Cache.MaxItems = 10
	svc, err := ProvideCache(cfg)
	if err != nil {
		t.Fatalf("memory cache: %v", err)
	}
	if _, ok := svc.(*cache.MemoryCache); !ok {
		t.Fatalf("cache type = %T, want *cache.MemoryCache", svc)
	}

	cfg.Cache.Type = "disk"
	if _, err := ProvideCache(cfg); err == nil {
		t.Fatal("expected error for unknown cache type")
	}
}
