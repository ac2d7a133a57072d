package main

import (
	"context"
	"flag"
	"log"
	"net/http"

	"github.com/mvaldesr/tabletalk/internal/adapters/dataset"
	httpadapter "github.com/mvaldesr/tabletalk/internal/adapters/http"
	"github.com/mvaldesr/tabletalk/internal/adapters/llm"
	"github.com/mvaldesr/tabletalk/internal/adapters/storage/blob"
	memstore "github.com/mvaldesr/tabletalk/internal/adapters/storage/memory"
	"github.com/mvaldesr/tabletalk/internal/adapters/storage/postgres"
	"github.com/mvaldesr/tabletalk/internal/app/history"
	"github.com/mvaldesr/tabletalk/internal/app/replay"
	"github.com/mvaldesr/tabletalk/internal/app/workbook"
	"github.com/mvaldesr/tabletalk/internal/config"
	"github.com/mvaldesr/tabletalk/internal/domain"
	"github.com/mvaldesr/tabletalk/internal/observability"
	"github.com/mvaldesr/tabletalk/internal/sandbox"
)

func main() {
	configFile := flag.String("config", "", "optional config file (yaml)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}
	observability.SetLevel(cfg.LogLevel)

	ctx := context.Background()

	// Oracle: mock or Gemini
	var generator domain.CodeGenerator
	if cfg.UseMockOracle {
		log.Println("[ORACLE] Using mock code generator")
		generator = llm.NewMockGenerator()
	} else {
		log.Printf("[ORACLE] Using Gemini code generator (model=%s)", cfg.ModelName)
		generator, err = llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.ModelName)
		if err != nil {
			log.Fatalf("error initializing Gemini client: %v", err)
		}
	}

	// Session and step records: Postgres or Memory
	var (
		sessionStore domain.SessionStore
		stepStore    domain.StepStore
	)
	switch cfg.StorageBackend {
	case "postgres":
		log.Println("[STORE] Using Postgres storage")
		pgStore, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("error initializing Postgres store: %v", err)
		}

		// 1 store, implements 2 interfaces
		sessionStore = pgStore
		stepStore = pgStore

	default:
		log.Println("[STORE] Using in-memory storage")
		sessionStore = memstore.NewSessionStore()
		stepStore = memstore.NewStepStore()
	}

	// Snapshot blobs: Badger or Memory
	var snapshotStore domain.SnapshotStore
	switch cfg.SnapshotBackend {
	case "badger":
		log.Printf("[BLOB] Using Badger snapshot store (path=%s)", cfg.BadgerPath)
		blobStore, err := blob.Open(cfg.BadgerPath)
		if err != nil {
			log.Fatalf("error initializing Badger store: %v", err)
		}
		defer blobStore.Close()
		snapshotStore = blobStore

	default:
		log.Println("[BLOB] Using in-memory snapshot store")
		snapshotStore = memstore.NewSnapshotStore()
	}

	decoder := dataset.NewDecoder()
	stepLog := history.NewLog(stepStore)
	sb := sandbox.New(cfg.ScriptTimeout)
	replayer := replay.NewEngine(snapshotStore, decoder, stepLog, sb)

	svc := workbook.NewService(sessionStore, snapshotStore, decoder, generator, stepLog, replayer, sb, workbook.Options{
		PreviewRows: cfg.PreviewRows,
		MaxGridRows: cfg.MaxGridRows,
	})

	handler := httpadapter.NewServer(svc)

	addr := ":" + cfg.Port
	log.Println("TableTalk API listening on port:", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatal(err)
	}
}
