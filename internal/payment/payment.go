// Package payment defines the request/outcome shapes the two payment
// adapters (spec §4.5, §4.6) exchange with the conversation controller
// and webhook ingress. Concrete adapters live in the stk and hosted
// subpackages, mirroring the teacher's two concrete bank clients
// (internal/services/bank/jdb, internal/services/bank/ldb) — kept as two
// distinct concrete types rather than a shared interface, since STK's
// push-then-settle-via-webhook shape and hosted's charge-then-poll shape
// diverge enough that each caller already knows which one it's talking to.
package payment

import (
	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodSTK    Method = "MPESA"
	MethodHosted Method = "CARD"
)

type ChargeRequest struct {
	BookingID     string
	Phone         string
	Amount        decimal.Decimal
	Reference     string
	Description   string
}

// ChargeOutcome reports the observable result at initiation time. Some
// providers (STK) settle asynchronously via webhook; others (hosted
// redirect) settle synchronously or via a polled status check.
type ChargeOutcome struct {
	ProviderReference string
	RedirectURL       string // set only by hosted-redirect adapters
	Settled           bool
}

type TransactionStatus string

const (
	TransactionPending TransactionStatus = "PENDING"
	TransactionSuccess TransactionStatus = "SUCCESS"
	TransactionFailed  TransactionStatus = "FAILED"
)
