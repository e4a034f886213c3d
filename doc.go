// Package flashledger is a flash accounting engine: a singleton ledger that
// lets many balance-changing operations run inside one unit of work while
// deferring and netting the actual asset movement to the edges of that unit
// of work.
//
// A session is opened with Ledger.Open. Inside the callback, domain
// operations record what the caller owes or is owed as signed per-asset
// deltas, and the caller resolves them with four primitives:
//
//   - Take pays a positive delta out through the transfer adapter
//   - Settle credits value the adapter received since the last sync
//   - Mint converts a positive delta into a durable claim balance
//   - Burn spends a claim balance to offset a negative delta
//
// When the callback returns, every delta must be zero. Otherwise, or if any
// primitive failed, the whole session is rolled back: staged claim changes
// are discarded and payouts and receipts already made through the adapter
// are reversed. There is no partial commit.
//
// # Quick Start
//
//	vault := adapter.NewVault()
//	l := flashledger.New(memory.New(), flashledger.WithAdapter(vault))
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
//	_, err := l.Open(ctx, "alice", nil, func(ctx context.Context, s *flashledger.Session, _ any) (any, error) {
//	    if err := s.AdjustDelta("usdc", 50); err != nil {
//	        return nil, err
//	    }
//	    return nil, s.Mint(ctx, "alice", "usdc", 50)
//	})
//
// # Claim Balances
//
// Claim balances persist across sessions in a store.Store. Backends live in
// store/memory, store/sqlite, store/postgres, store/mongo and store/redis.
// Ledger.TransferClaim moves claims outside any session; Session.TransferClaim
// stages the same move so it rolls back with the session.
//
// # Authorization
//
// Spending another owner's claims, through Burn or TransferClaim, is
// decided by an auth.Authorizer. The default allows owners only; see
// auth.Operators and auth.Allowances for delegation.
//
// # Plugins
//
// Plugins registered with WithPlugin observe session outcomes. Claim,
// payout and settlement events fire only for committed sessions. The
// audit_hook and observability packages provide audit trail and metrics
// plugins.
//
// # Tracing
//
// Every session runs in an OpenTelemetry span named flashledger.session.
// Use WithTracer to supply a tracer; the default comes from the global
// provider.
package flashledger
