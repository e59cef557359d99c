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
	"time"

	"github.com/joho/godotenv"

	"agrego/internal/domain/notification"
	"agrego/internal/domain/openfinance"
	"agrego/internal/infrastructure/crypto"
	ofclient "agrego/internal/infrastructure/openfinance"
	"agrego/internal/infrastructure/postgres"
	"agrego/internal/shared/config"
	"agrego/internal/shared/messages"
)

const usage = `Agrego Admin CLI - Management commands for the sync engine

Usage:
  admin <command> [options]

Commands:
  sync            Run a full provider sync for one or more users
  connect-token   Mint a connect token to verify a user's stored credential

Examples:
  # Sync a specific user
  admin sync --user-id=1

  # Sync multiple users
  admin sync --user-id=1,2,3

  # Sync every user with a stored credential
  admin sync --all

  # Run with custom worker count for higher concurrency
  admin sync --all --workers=8

  # Run with timeout
  admin sync --user-id=1 --timeout=5m

  # Verify a user's credential end to end
  admin connect-token --user-id=1
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "sync":
		runSync(os.Args[2:])
	case "connect-token":
		runConnectToken(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		fmt.Print(usage)
		os.Exit(1)
	}
}

// adminDeps is the minimal wiring the CLI needs: the full sync stack
// without the HTTP layer, push delivery or notification texts.
type adminDeps struct {
	db             *postgres.DB
	credentialRepo *postgres.CredentialRepository
	syncService    *openfinance.Service
	factory        *ofclient.Factory
}

func buildDeps() (*adminDeps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	connectionRepo := postgres.NewConnectionRepository(db)
	accountRepo := postgres.NewAccountRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)
	billRepo := postgres.NewBillRepository(db)
	investmentRepo := postgres.NewInvestmentRepository(db)
	loanRepo := postgres.NewLoanRepository(db)
	credentialRepo := postgres.NewCredentialRepository(db, encryptor)
	notificationRepo := postgres.NewNotificationRepository(db)

	transport := ofclient.NewTransport(ofclient.TransportConfig{
		BaseURL:    cfg.Provider.BaseURL,
		Timeout:    cfg.Provider.Timeout,
		RateLimit:  cfg.Provider.RateLimit,
		RateWindow: cfg.Provider.RateWindow,
	})
	factory := ofclient.NewFactory(transport, credentialRepo)

	syncService := openfinance.NewService(
		factory,
		connectionRepo,
		credentialRepo,
		openfinance.NewAccountSyncService(accountRepo),
		openfinance.NewTransactionSyncService(accountRepo, transactionRepo),
		openfinance.NewBillSyncService(accountRepo, billRepo),
		openfinance.NewInvestmentSyncService(accountRepo, investmentRepo),
		openfinance.NewLoanSyncService(loanRepo),
		notification.NewService(notificationRepo, nil),
		&messages.Messages{},
	)

	return &adminDeps{
		db:             db,
		credentialRepo: credentialRepo,
		syncService:    syncService,
		factory:        factory,
	}, nil
}

func runSync(args []string) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)

	userIDStr := fs.String("user-id", "", "User ID(s) to sync (comma-separated for multiple)")
	allUsers := fs.Bool("all", false, "Sync every user with a stored credential")
	workers := fs.Int("workers", 4, "Number of concurrent workers")
	timeoutStr := fs.String("timeout", "30m", "Timeout for the operation (e.g., 5m, 1h)")

	fs.Usage = func() {
		fmt.Println("Usage: admin sync [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Println("  admin sync --user-id=1")
		fmt.Println("  admin sync --user-id=1,2,3")
		fmt.Println("  admin sync --all")
		fmt.Println("  admin sync --all --workers=8 --timeout=1h")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *userIDStr == "" && !*allUsers {
		fmt.Println("Error: must specify --user-id or --all")
		fs.Usage()
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}
	if *workers < 1 {
		*workers = 1
	}

	deps, err := buildDeps()
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer deps.db.Close()
	log.Println("Connected to database")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var userIDs []int64
	if *allUsers {
		userIDs, err = deps.credentialRepo.ListUserIDs(ctx)
		if err != nil {
			log.Fatalf("Failed to list credentialed users: %v", err)
		}
		log.Printf("Found %d users with provider credentials", len(userIDs))
	} else {
		userIDs, err = parseUserIDs(*userIDStr)
		if err != nil {
			log.Fatal(err)
		}
	}

	if len(userIDs) == 0 {
		log.Println("No users to process")
		return
	}

	log.Printf("Starting sync for %d user(s) with %d workers", len(userIDs), *workers)
	startTime := time.Now()

	type outcome struct {
		userID int64
		result *openfinance.SyncResult
		err    error
	}

	jobs := make(chan int64)
	outcomes := make(chan outcome, len(userIDs))

	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for userID := range jobs {
				result, err := deps.syncService.SyncUser(ctx, userID)
				outcomes <- outcome{userID: userID, result: result, err: err}
			}
		}()
	}
	for _, userID := range userIDs {
		jobs <- userID
	}
	close(jobs)
	wg.Wait()
	close(outcomes)

	var failed int
	for o := range outcomes {
		printSyncResult(o.userID, o.result, o.err)
		if o.err != nil {
			failed++
		}
	}

	log.Printf("Sync completed in %v (%d user(s), %d failed)", time.Since(startTime), len(userIDs), failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func printSyncResult(userID int64, result *openfinance.SyncResult, err error) {
	fmt.Printf("\n=== User %d ===\n", userID)
	if err != nil {
		fmt.Printf("  Sync failed: %v\n", err)
	}
	if result == nil {
		return
	}
	fmt.Printf("  Records found:   %d\n", result.Found)
	fmt.Printf("  Records created: %d\n", result.Created)
	fmt.Printf("  Records updated: %d\n", result.Updated)
	fmt.Printf("  Records skipped: %d\n", result.Skipped)

	if len(result.Errors) > 0 {
		fmt.Printf("  Errors:          %d\n", len(result.Errors))
		for i, e := range result.Errors {
			if i >= 5 {
				fmt.Printf("    ... and %d more errors\n", len(result.Errors)-5)
				break
			}
			fmt.Printf("    - %s\n", e)
		}
	}
}

// runConnectToken exercises the stored credential end to end: decrypt,
// exchange for an API key, then mint an unscoped connect token.
func runConnectToken(args []string) {
	fs := flag.NewFlagSet("connect-token", flag.ExitOnError)

	userID := fs.Int64("user-id", 0, "User ID whose credential to verify")
	timeoutStr := fs.String("timeout", "1m", "Timeout for the operation")

	fs.Usage = func() {
		fmt.Println("Usage: admin connect-token --user-id=<id>")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *userID == 0 {
		fmt.Println("Error: must specify --user-id")
		fs.Usage()
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}

	deps, err := buildDeps()
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer deps.db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := deps.factory.ClientForUser(ctx, *userID)
	if err != nil {
		log.Fatalf("Failed to build provider client: %v", err)
	}

	token, err := client.ConnectToken(ctx, "", ofclient.ConnectTokenOptions{})
	if err != nil {
		log.Fatalf("Connect token exchange failed: %v", err)
	}

	fmt.Printf("Credential for user %d is valid\n", *userID)
	fmt.Printf("Connect token: %s...%s\n", token[:min(8, len(token))], token[max(0, len(token)-4):])
}

func parseUserIDs(value string) ([]int64, error) {
	var userIDs []int64
	for _, p := range strings.Split(value, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID '%s': %w", p, err)
		}
		userIDs = append(userIDs, id)
	}
	return userIDs, nil
}
