// budget-seed populates a personal-budget table with a demo dataset:
// two accounts, a month of transactions, category caps, an open debt
// and two recurring templates. It is the quickest way to get a table
// worth pointing a dashboard at.
//
// # Usage
//
// Seed a local badger-backed store (no AWS credentials needed):
//
//	budget-seed --local --db ./data
//
// Seed a real DynamoDB table using the ambient AWS config:
//
//	budget-seed --table personal-budget --user demo
//
// Point it at a different table layout with a YAML definition:
//
//	budget-seed --schema ./table.yaml
//
// A .env file next to the binary is loaded first, so AWS_PROFILE,
// AWS_REGION and friends can live there during development.
//
// # Flags
//
//	-local
//	    	use an embedded local store instead of DynamoDB
//	-db string
//	    	path for the local store (empty for in-memory)
//	-schema string
//	    	YAML table definition file (empty for the built-in layout)
//	-table string
//	    	DynamoDB table name (default "personal-budget")
//	-user string
//	    	user ID to seed under (default "demo")
//	-month string
//	    	month to seed transactions into (default current month)
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/rishabhxchoudhary/Personal-Budget-sub002/budget"
	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/ddblocal"
	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/ddbrepo"
	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/table"
)

func main() {
	var (
		local      = flag.Bool("local", false, "use an embedded local store instead of DynamoDB")
		dbPath     = flag.String("db", "", "path for the local store (empty for in-memory)")
		schemaPath = flag.String("schema", "", "YAML table definition file (empty for the built-in layout)")
		tableName  = flag.String("table", budget.TableName, "DynamoDB table name")
		userID     = flag.String("user", "demo", "user ID to seed under")
		month      = flag.String("month", time.Now().UTC().Format("2006-01"), "month to seed transactions into (YYYY-MM)")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := godotenv.Load(); err == nil {
		logger.Info("loaded .env")
	}

	if err := run(context.Background(), logger, *local, *dbPath, *schemaPath, *tableName, *userID, *month); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, local bool, dbPath, schemaPath, tableName, userID, month string) error {
	def := budget.Table()
	def.Name = tableName
	if schemaPath != "" {
		loaded, err := table.Load(schemaPath)
		if err != nil {
			return err
		}
		def = loaded
		logger.Info("loaded table definition", "schema", schemaPath, "table", def.Name)
	}

	var client ddbrepo.DynamoClient
	if local {
		store, err := ddblocal.New(ddblocal.Options{Path: dbPath, InMemory: dbPath == ""}, def)
		if err != nil {
			return fmt.Errorf("open local store: %w", err)
		}
		defer store.Close()
		client = store
		logger.Info("using local store", "path", dbPath)
	} else {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("load aws config: %w", err)
		}
		otelaws.AppendMiddlewares(&cfg.APIOptions)
		client = awsdynamodb.NewFromConfig(cfg)
		logger.Info("using DynamoDB", "table", def.Name, "region", cfg.Region)
	}

	repo, err := ddbrepo.New(client, def)
	if err != nil {
		return err
	}
	return seed(ctx, logger, budget.NewService(repo), userID, month)
}

func seed(ctx context.Context, logger *slog.Logger, svc *budget.Service, userID, month string) error {
	checking, err := svc.CreateAccount(ctx, userID, "Checking", "EUR", 150_000)
	if err != nil {
		return fmt.Errorf("create checking: %w", err)
	}
	savings, err := svc.CreateAccount(ctx, userID, "Savings", "EUR", 800_000)
	if err != nil {
		return fmt.Errorf("create savings: %w", err)
	}
	logger.Info("accounts created", "checking", checking.ID, "savings", savings.ID)

	for category, limit := range map[string]int64{
		"groceries":  40_000,
		"transport":  10_000,
		"eating-out": 15_000,
	} {
		if _, err := svc.SetPlan(ctx, budget.Plan{
			UserID: userID, Month: month, Category: category, Limit: limit,
		}); err != nil {
			return fmt.Errorf("set %s plan: %w", category, err)
		}
	}

	spending := []struct {
		day      int
		amount   int64
		category string
		note     string
	}{
		{2, -5_420, "groceries", "weekly shop"},
		{3, -290, "transport", "metro"},
		{5, -8_900, "eating-out", "birthday dinner"},
		{9, -6_130, "groceries", "weekly shop"},
		{12, -2_400, "transport", "fuel"},
		{16, -7_050, "groceries", "weekly shop"},
		{21, -3_600, "eating-out", "lunch out"},
		{23, -6_480, "groceries", "weekly shop"},
	}
	for _, sp := range spending {
		if _, err := svc.AddTransaction(ctx, budget.Transaction{
			UserID:    userID,
			AccountID: checking.ID,
			Date:      fmt.Sprintf("%s-%02d", month, sp.day),
			Amount:    sp.amount,
			Category:  sp.category,
			Note:      sp.note,
		}); err != nil {
			return fmt.Errorf("add transaction: %w", err)
		}
	}
	logger.Info("transactions seeded", "count", len(spending))

	if _, err := svc.AddDebtShare(ctx, userID, "sam", "festival tickets", 6_500); err != nil {
		return fmt.Errorf("add debt: %w", err)
	}

	for _, rec := range []budget.Recurring{
		{UserID: userID, AccountID: checking.ID, DayOfMonth: 1, Amount: -95_000, Category: "rent", Note: "monthly rent"},
		{UserID: userID, AccountID: checking.ID, DayOfMonth: 25, Amount: 280_000, Category: "salary"},
	} {
		if _, err := svc.AddRecurring(ctx, rec); err != nil {
			return fmt.Errorf("add recurring: %w", err)
		}
	}

	overview, err := svc.MonthOverview(ctx, userID, month)
	if err != nil {
		return fmt.Errorf("overview: %w", err)
	}
	logger.Info("seed complete",
		"user", userID,
		"month", month,
		"netWorth", overview.NetWorth,
		"transactions", len(overview.Transactions),
		"openDebts", len(overview.OpenDebts),
	)
	return nil
}
