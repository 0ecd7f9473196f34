// Command reconcile exports unresolved reconciliation entries to Cloud Storage so an
// operator can settle them against the payment processor's dashboard.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shinyyama/escrow-backend/internal/config"
	"github.com/shinyyama/escrow-backend/internal/db"
	"github.com/shinyyama/escrow-backend/internal/model"
	"github.com/shinyyama/escrow-backend/internal/repository"
	"github.com/yanun0323/logs"
	"google.golang.org/api/option"
)

type report struct {
	GeneratedAt time.Time              `json:"generatedAt"`
	Count       int                    `json:"count"`
	Entries     []model.Reconciliation `json:"entries"`
}

func main() {
	limit := flag.Int("limit", 500, "maximum number of entries to export")
	resolve := flag.Bool("resolve", false, "mark exported entries as resolved")
	flag.Parse()

	if err := run(*limit, *resolve); err != nil {
		logs.Errorf("reconcile failed: %+v", err)
		os.Exit(1)
	}
}

func run(limit int, resolve bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.ReconcileBucket == "" {
		return fmt.Errorf("RECONCILE_BUCKET is not set")
	}
	gdb, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	repo := repository.NewReconciliationRepository(gdb)

	list, err := repo.ListUnresolved(ctx, limit)
	if err != nil {
		return fmt.Errorf("list unresolved: %w", err)
	}
	if len(list) == 0 {
		logs.Info("no unresolved reconciliation entries")
		return nil
	}

	var opts []option.ClientOption
	if cfg.GoogleCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GoogleCredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer client.Close()

	now := time.Now().UTC()
	name := objectName(now)
	w := client.Bucket(cfg.ReconcileBucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/json"
	if err := writeReport(w, list, now); err != nil {
		_ = w.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	logs.Infof("exported %d entries to gs://%s/%s", len(list), cfg.ReconcileBucket, name)

	if !resolve {
		return nil
	}
	ids := make([]uint64, 0, len(list))
	for _, r := range list {
		ids = append(ids, r.ID)
	}
	n, err := repo.MarkResolved(ctx, ids)
	if err != nil {
		return fmt.Errorf("mark resolved: %w", err)
	}
	logs.Infof("marked %d entries resolved", n)
	return nil
}

func objectName(now time.Time) string {
	return fmt.Sprintf("reconciliations/%s-%s.json", now.Format("20060102"), uuid.NewString())
}

func writeReport(w io.Writer, list []model.Reconciliation, now time.Time) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report{GeneratedAt: now, Count: len(list), Entries: list})
}
