package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/catalog-sync/internal/adapter/storage"
	"github.com/rl1809/catalog-sync/internal/core/cache"
	"github.com/rl1809/catalog-sync/internal/core/domain"
	"github.com/rl1809/catalog-sync/internal/core/service"
	"github.com/rl1809/catalog-sync/internal/logging"
	"github.com/rl1809/catalog-sync/internal/port"
)

const (
	categoryCount   = 5
	writesPerWriter = 40
	readerCount     = 20
)

// The stress test runs concurrent writers and readers against one service.
// Each writer renames its category to "<name>-v<N>" and then immediately reads
// the category list; that read must show version N or later. Readers keep the
// cache hot in the meantime so stale entries have every chance to be served.
func main() {
	redisAddr := flag.String("redis", "localhost:6379", "Redis address, empty for the in-memory cache")
	flag.Parse()

	ctx := context.Background()
	runID := uuid.NewString()
	logger := logging.NewNopLogger()
	clock := port.RealClock{}

	var backend port.CacheRepository = storage.NewMemoryCache(nil)
	if *redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		defer rdb.Close()
		backend = storage.NewRedisCache(rdb, "stress:"+runID+":")
	}

	manager := cache.NewManager(backend, clock, cache.Options{}, logger)
	catalog := service.NewCatalogService(storage.NewMemoryStore(), manager, clock, service.Options{}, logger)

	if err := catalog.UpsertSeller(ctx, domain.SellerRecord{ID: 1, DelStatus: domain.DelStatusActive, SellerClass: domain.SellerClassIndustrial}); err != nil {
		log.Fatalf("failed to seed seller: %v", err)
	}
	ids := make([]int64, categoryCount)
	for i := range ids {
		e, err := catalog.CreateEntry(ctx, domain.KindCategory, domain.EntryInput{Name: fmt.Sprintf("cat%d-v0", i)})
		if err != nil {
			log.Fatalf("failed to seed category: %v", err)
		}
		ids[i] = e.ID
	}

	var (
		writes    atomic.Int64
		reads     atomic.Int64
		stale     atomic.Int64
		readErrs  atomic.Int64
		writeErrs atomic.Int64
	)

	done := make(chan struct{})
	var readers sync.WaitGroup
	for i := 0; i < readerCount; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				if _, err := catalog.ListCategories(ctx, service.CategoriesQuery{}); err != nil {
					readErrs.Add(1)
				}
				reads.Add(1)
			}
		}()
	}

	start := time.Now()
	var writers sync.WaitGroup
	for i, id := range ids {
		writers.Add(1)
		go func(idx int, id int64) {
			defer writers.Done()
			for v := 1; v <= writesPerWriter; v++ {
				name := fmt.Sprintf("cat%d-v%d", idx, v)
				if _, err := catalog.UpdateEntry(ctx, domain.KindCategory, id, domain.EntryInput{Name: name}); err != nil {
					writeErrs.Add(1)
					continue
				}
				writes.Add(1)

				list, err := catalog.ListCategories(ctx, service.CategoriesQuery{})
				if err != nil {
					readErrs.Add(1)
					continue
				}
				if seen := versionOf(list.Items, id); seen < v {
					stale.Add(1)
					fmt.Fprintf(os.Stderr, "stale read: category %d wrote v%d, read v%d\n", id, v, seen)
				}
			}
		}(i, id)
	}

	writers.Wait()
	close(done)
	readers.Wait()
	elapsed := time.Since(start)

	fmt.Println("========== COHERENCY STRESS RESULTS ==========")
	fmt.Printf("Run ID:           %s\n", runID)
	fmt.Printf("Cache:            %s\n", cacheName(*redisAddr))
	fmt.Printf("Writes:           %d\n", writes.Load())
	fmt.Printf("Reads:            %d\n", reads.Load())
	fmt.Printf("Write Errors:     %d\n", writeErrs.Load())
	fmt.Printf("Read Errors:      %d\n", readErrs.Load())
	fmt.Printf("Stale Reads:      %d\n", stale.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("===============================================")

	// drop this run's keys
	manager.InvalidateNamespace(ctx, service.AllNamespaces...)

	if stale.Load() == 0 && writeErrs.Load() == 0 && readErrs.Load() == 0 {
		fmt.Println("PASS: every read issued after a write observed it")
	} else {
		fmt.Println("FAIL: stale or failed operations observed")
		os.Exit(1)
	}
}

// versionOf extracts N from the "<name>-v<N>" name of category id, or -1.
func versionOf(items []domain.CatalogItem, id int64) int {
	for _, it := range items {
		if it.ID != id {
			continue
		}
		i := strings.LastIndex(it.Name, "-v")
		if i < 0 {
			return -1
		}
		v, err := strconv.Atoi(it.Name[i+2:])
		if err != nil {
			return -1
		}
		return v
	}
	return -1
}

func cacheName(redisAddr string) string {
	if redisAddr == "" {
		return "memory"
	}
	return "redis " + redisAddr
}
