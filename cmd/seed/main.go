// Command seed provisions an account with a ledger and an API key and prints
// a bearer token for the billing endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"research-orchestrator/internal/application"
	"research-orchestrator/internal/config"
	"research-orchestrator/internal/domain/model"
	"research-orchestrator/internal/infra/api"
	"research-orchestrator/internal/infra/logging"
	"research-orchestrator/internal/usecase"

	"github.com/joho/godotenv"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	account := flag.String("account", "", "account id to provision (required)")
	email := flag.String("email", "", "email claim for the printed token")
	premium := flag.Bool("premium", false, "provision the PREMIUM plan")
	dev := flag.Bool("dev", true, "developer mode")
	flag.Parse()

	if *account == "" {
		log.Fatal("-account is required")
	}
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*cfgPath, *dev)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := application.OpenStorage(ctx, cfg.Database, logger)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer store.Close()

	plan := model.PlanFree
	if *premium {
		plan = model.PlanPremium
	}
	accounts := usecase.NewAccountUseCase(store.Ledgers, store.Keys, store.Tx, cfg.Credits.FreeDailyCredits, logger)
	ledger, key, err := accounts.Provision(ctx, *account, plan)
	if err != nil {
		log.Fatalf("provision: %v", err)
	}

	token, err := api.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL).Mint(*account, *email)
	if err != nil {
		log.Fatalf("mint token: %v", err)
	}

	fmt.Printf("account:  %s\n", ledger.AccountID)
	fmt.Printf("plan:     %s (%d/%d credits used)\n", ledger.Plan, ledger.CreditsUsed, ledger.CreditsTotal)
	fmt.Printf("api key:  %s\n", key.Key)
	fmt.Printf("jwt:      %s\n", token)
}
