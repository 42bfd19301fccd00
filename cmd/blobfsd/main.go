package main

import (
	"context"
	"log"
	"net/http"
	"time"

	api "github.com/blobrelay/blobfs/internal/api/http"
	auth "github.com/blobrelay/blobfs/internal/auth/middleware"
	"github.com/blobrelay/blobfs/internal/blob"
	"github.com/blobrelay/blobfs/internal/config"
	"github.com/blobrelay/blobfs/internal/db"
	"github.com/blobrelay/blobfs/internal/fsstore"
	"github.com/blobrelay/blobfs/internal/sharelink"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	links := sharelink.NewSQLStore(dbh)

	// --- Filesystem store ---
	fs := fsstore.New(cfg.StorageRoot, cfg.CreateRoot)
	if _, err := fs.EnsureRoot(); err != nil {
		log.Fatalf("storage root: %v", err)
	}

	svc := blob.NewService(fs, links, cfg.BucketKeys, cfg.LinkBaseURL, cfg.LinkExpireTime)

	// --- Expired-link GC (out-of-band from requests) ---
	gcCtx, gcCancel := context.WithCancel(context.Background())
	defer gcCancel()
	go sharelink.NewCollector(links, cfg.GCInterval, nil).Run(gcCtx)

	// --- Router ---
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)
	r := api.NewRouter(cfg, svc, authSvc)

	log.Printf("listening on %s (root=%s, db=%s)", cfg.HTTPAddr, cfg.StorageRoot, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
