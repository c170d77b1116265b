// Command reconcile-payments sweeps payment transactions that never reached
// a terminal state and reconciles each one against the gateway. Run it from
// cron to settle payments whose customer closed the tab before returning and
// whose webhook was never delivered.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/islandhop/travel-booking-backend/internal/config"
	"github.com/islandhop/travel-booking-backend/internal/database"
	"github.com/islandhop/travel-booking-backend/internal/models"
	"github.com/islandhop/travel-booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		olderThanMin = flag.Int("older-than", 15, "only sweep transactions older than this many minutes")
		limit        = flag.Int("limit", 100, "maximum transactions to reconcile per run")
		dryRun       = flag.Bool("dry-run", false, "list candidates without calling the gateway")
	)
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	sqlxDB, ok := db.(*database.PostgresDB)
	if !ok {
		logger.Fatal("Failed to cast database connection to PostgresDB")
	}

	bookingRepo := database.NewBookingRepository(sqlxDB.DB)
	paymentRepo := database.NewPaymentRepository(sqlxDB.DB)
	auditRepo := database.NewPaymentAuditRepository(sqlxDB.DB, logger)
	gateway := services.NewPhonePeService(&cfg.Payment, logger)
	paymentService := services.NewPaymentService(bookingRepo, paymentRepo, auditRepo, gateway, logger)

	cutoff := time.Now().Add(-time.Duration(*olderThanMin) * time.Minute)
	mtids, err := paymentRepo.ListUnsettled(cutoff, *limit)
	if err != nil {
		logger.Fatalf("Failed to list unsettled transactions: %v", err)
	}

	logger.WithFields(logrus.Fields{
		"candidates": len(mtids),
		"cutoff":     cutoff.Format(time.RFC3339),
	}).Info("Sweeping unsettled payment transactions")

	if *dryRun {
		for _, mtid := range mtids {
			logger.WithField("mtid", mtid).Info("Would reconcile")
		}
		return
	}

	ctx := context.Background()
	var settled, pending, failedChecks int
	for _, mtid := range mtids {
		result, err := paymentService.Reconcile(ctx, mtid, models.PaymentSourceBackend, services.ClientMeta{ClientInfo: "maintenance sweep"})
		if err != nil {
			failedChecks++
			logger.WithField("mtid", mtid).WithError(err).Warn("Reconciliation failed")
			continue
		}
		switch result.Outcome {
		case models.OutcomePending:
			pending++
		default:
			settled++
		}
	}

	logger.WithFields(logrus.Fields{
		"settled":       settled,
		"still_pending": pending,
		"failed_checks": failedChecks,
	}).Info("Sweep complete")
}
