package coredb

import (
	"context"
	"log/slog"
	"os"
	"testing"

	pooltesting "github.com/Stellar-Pool/stellar-pool-service/utils/pkg/testing"
)

var testPG *pooltesting.Postgres

func TestMain(m *testing.M) {
	ctx := context.Background()
	log := slog.Default()

	var err error
	testPG, err = pooltesting.NewPostgres(ctx, log, nil)
	if err != nil {
		slog.Error("failed to start PostgreSQL container", "error", err)
		os.Exit(1)
	}

	code := m.Run()

	testPG.Close()
	os.Exit(code)
}
