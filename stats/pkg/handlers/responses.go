package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/currency"
)

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusError   Status = "ERROR"
)

const TimeUnitMilliseconds = "MILLISECONDS"

const (
	MessagePasswordRequired    = "You must specify a password."
	MessageAuthFailed          = "Authentication failed."
	MessageInternalError       = "An error occurred while calculating the response."
	MessageRateLimited         = "Too many requests. Please slow down."
	MessageNoDistributionRuns  = "No distribution run has been recorded."
	MessageDatabaseUnavailable = "Database temporarily unavailable. Please try again in a moment."
)

// Ok wraps a successful response value.
type Ok struct {
	Value  any    `json:"value"`
	Status Status `json:"status"`
}

// Problem is the body of every failed request.
type Problem struct {
	Message string `json:"message"`
	Status  Status `json:"status"`
}

// ProfiledResult carries how long an endpoint took to compute its result.
type ProfiledResult struct {
	Result            any    `json:"result"`
	ExecutionTime     int64  `json:"executionTime"`
	ExecutionTimeUnit string `json:"executionTimeUnit"`
}

// Balance renders a lumen amount three ways for API consumers.
type Balance struct {
	Lumens    decimal.Decimal `json:"lumens"`
	Stroops   int64           `json:"stroops"`
	Formatted string          `json:"formatted"`
}

func BalanceOf(a currency.Amount) Balance {
	return Balance{Lumens: a.Lumens(), Stroops: a.Stroops(), Formatted: a.String()}
}

func writeJSON(log *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to write response", "error", err)
	}
}

func writeProblem(log *slog.Logger, w http.ResponseWriter, status int, message string) {
	writeJSON(log, w, status, Problem{Message: message, Status: StatusError})
}
