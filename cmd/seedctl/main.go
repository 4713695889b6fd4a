// Command seedctl publishes fallback datasets to R2 so running gateways pick
// them up as overrides on their next seed sync.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/garyellow/erp-gateway-go/internal/config"
	"github.com/garyellow/erp-gateway-go/internal/logger"
	"github.com/garyellow/erp-gateway-go/internal/r2client"
	"github.com/garyellow/erp-gateway-go/internal/resources"
	"github.com/garyellow/erp-gateway-go/internal/seeds"
)

// CLI flags
var (
	datasetsFlag = flag.String("datasets", "", "Comma-separated dataset names to publish (empty = all)")
	dirFlag      = flag.String("dir", "", "Directory of <dataset>.json files to publish instead of the embedded seeds")
	dryRunFlag   = flag.Bool("dry-run", false, "Validate and compress without uploading")
	timeoutFlag  = flag.Duration("timeout", 2*time.Minute, "Overall publish timeout")
)

// uploadConcurrency bounds parallel uploads.
const uploadConcurrency = 4

// uploader is the subset of r2client.Client used for publishing.
type uploader interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel).WithModule("seedctl")

	catalog, err := loadCatalog(*dirFlag)
	if err != nil {
		log.WithError(err).Error("Failed to load datasets")
		os.Exit(1)
	}
	names, err := selectDatasets(catalog, *datasetsFlag)
	if err != nil {
		log.WithError(err).Error("Invalid dataset selection")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	var up uploader
	if !*dryRunFlag {
		if !cfg.R2Enabled {
			log.Error("ERP_R2_ENABLED must be true to publish datasets")
			os.Exit(1)
		}
		client, err := r2client.New(ctx, r2client.Config{
			Endpoint:    cfg.R2Endpoint(),
			AccessKeyID: cfg.R2AccessKeyID,
			SecretKey:   cfg.R2SecretAccessKey,
			BucketName:  cfg.R2BucketName,
		})
		if err != nil {
			log.WithError(err).Error("Failed to create R2 client")
			os.Exit(1)
		}
		up = client
	}

	start := time.Now()
	published, err := publish(ctx, catalog, names, cfg.SeedPrefix, up, log)
	duration := time.Since(start).Round(time.Millisecond)
	if err != nil {
		log.WithError(err).WithField("published", published).Error("Publish completed with errors")
		_, _ = fmt.Fprintf(os.Stderr, "Published %d/%d datasets in %v with errors\n", published, len(names), duration)
		os.Exit(1)
	}
	log.WithField("published", published).WithField("duration", duration.String()).Info("Publish complete")
	fmt.Printf("Published %d/%d datasets in %v\n", published, len(names), duration)
}

// loadCatalog reads datasets from dir, or the embedded seeds when dir is empty.
func loadCatalog(dir string) (*seeds.Catalog, error) {
	if dir == "" {
		return resources.NewCatalog()
	}
	return seeds.NewCatalog(os.DirFS(dir), ".")
}

// selectDatasets parses a comma-separated list and checks every name exists.
// An empty list selects every dataset.
func selectDatasets(catalog *seeds.Catalog, list string) ([]string, error) {
	var names []string
	for part := range strings.SplitSeq(list, ",") {
		name := strings.Trim(strings.TrimSpace(part), "/")
		if name == "" || slices.Contains(names, name) {
			continue
		}
		if !catalog.Has(name) {
			return nil, fmt.Errorf("unknown dataset %q", name)
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return catalog.Names(), nil
	}
	slices.Sort(names)
	return names, nil
}

// publish compresses and uploads each dataset. A nil uploader only compresses.
// The first failure cancels the remaining uploads and is returned.
func publish(ctx context.Context, catalog *seeds.Catalog, names []string, prefix string, up uploader, log *logger.Logger) (int, error) {
	var published atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)

	for _, name := range names {
		g.Go(func() error {
			data, ok := catalog.Raw(name)
			if !ok {
				return fmt.Errorf("dataset %q: not loaded", name)
			}
			compressed, err := r2client.Compress(data)
			if err != nil {
				return fmt.Errorf("compress %s: %w", name, err)
			}
			key := seeds.ObjectKey(prefix, name)
			entry := log.WithField("key", key).
				WithField("bytes", len(data)).
				WithField("compressed_bytes", len(compressed))

			if up == nil {
				entry.Info("Dry run, skipping upload")
				published.Add(1)
				return nil
			}
			etag, err := up.Upload(ctx, key, bytes.NewReader(compressed), "application/zstd")
			if err != nil {
				return fmt.Errorf("upload %s: %w", key, err)
			}
			entry.WithField("etag", etag).Info("Dataset published")
			published.Add(1)
			return nil
		})
	}

	err := g.Wait()
	return int(published.Load()), err
}
