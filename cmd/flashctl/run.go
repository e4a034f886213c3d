package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/flashledger"
	"github.com/xraph/flashledger/adapter"
	"github.com/xraph/flashledger/ops"
	"github.com/xraph/flashledger/store"
	"github.com/xraph/flashledger/store/memory"
	redisstore "github.com/xraph/flashledger/store/redis"
	"github.com/xraph/flashledger/types"
)

// errUnexpectedOutcome marks a session whose outcome contradicts expect_fail.
var errUnexpectedOutcome = errors.New("unexpected session outcome")

func openStore(p Plan) store.Store {
	if p.Store == "redis" {
		client := goredis.NewClient(&goredis.Options{Addr: p.RedisAddr})
		return redisstore.New(client, redisstore.WithPrefix(p.RedisPrefix))
	}
	return memory.New()
}

// runPlan funds the vault, runs every session in order and writes the
// outcome and the resulting balances to out.
func runPlan(ctx context.Context, p Plan, s store.Store, logger *slog.Logger, out io.Writer) error {
	vault := adapter.NewVault()
	l := flashledger.New(s,
		flashledger.WithLogger(logger),
		flashledger.WithAdapter(vault),
		flashledger.WithMaxTouchedAssets(p.MaxTouchedAssets),
	)
	if err := l.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = l.Stop() }()

	for _, f := range p.Fund {
		if err := vault.Fund(types.Owner(f.Owner), types.Asset(f.Asset), f.Amount); err != nil {
			return fmt.Errorf("fund %s: %w", f.Owner, err)
		}
	}

	var unexpected []error
	for i, sp := range p.Sessions {
		_, err := l.Open(ctx, types.Owner(sp.Caller), sp, func(ctx context.Context, sess *flashledger.Session, _ any) (any, error) {
			for j, st := range sp.Steps {
				if err := applyStep(ctx, sess, vault, sp.Caller, st); err != nil {
					return nil, fmt.Errorf("step %d (%s): %w", j, st.Op, err)
				}
			}
			return nil, nil
		})

		switch {
		case err == nil:
			fmt.Fprintf(out, "session %d (%s): committed\n", i, sp.Caller)
		default:
			fmt.Fprintf(out, "session %d (%s): aborted: %v\n", i, sp.Caller, err)
		}
		if (err != nil) != sp.ExpectFail {
			unexpected = append(unexpected, fmt.Errorf("session %d: %w", i, errUnexpectedOutcome))
		}
	}

	if err := printBalances(ctx, p, l, vault, out); err != nil {
		return err
	}
	return errors.Join(unexpected...)
}

func applyStep(ctx context.Context, s *flashledger.Session, v *adapter.Vault, caller string, st step) error {
	owner := types.Owner(st.Owner)
	if owner == "" {
		owner = types.Owner(caller)
	}
	asset := types.Asset(st.Asset)
	to := types.Owner(st.To)

	switch st.Op {
	case "adjust":
		return s.AdjustDelta(asset, st.Amount)
	case "deposit":
		return v.Deposit(ctx, owner, asset, st.Amount)
	case "settle":
		_, err := s.Settle(ctx, asset)
		return err
	case "sync":
		return s.Sync(ctx, asset)
	case "take":
		return s.Take(ctx, asset, to, st.Amount)
	case "mint":
		return s.Mint(ctx, owner, asset, st.Amount)
	case "burn":
		return s.Burn(ctx, owner, asset, st.Amount)
	case "transfer":
		return s.TransferClaim(ctx, owner, to, asset, st.Amount)
	case "swap":
		_, err := s.Execute(ctx, ops.FixedRateSwap{
			In:          asset,
			Out:         types.Asset(st.Out),
			AmountIn:    st.Amount,
			Numerator:   st.Num,
			Denominator: st.Den,
		})
		return err
	case "donate":
		_, err := s.Execute(ctx, ops.Donate{Amounts: map[types.Asset]int64{asset: st.Amount}})
		return err
	default:
		return fmt.Errorf("unknown op %q", st.Op)
	}
}

func printBalances(ctx context.Context, p Plan, l *flashledger.Ledger, v *adapter.Vault, out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OWNER\tASSET\tCLAIM\tEXTERNAL")
	for _, o := range p.owners() {
		for _, a := range p.assets() {
			owner, asset := types.Owner(o), types.Asset(a)
			bal, err := l.ClaimBalance(ctx, owner, asset)
			if err != nil {
				return err
			}
			ext := v.ExternalBalance(owner, asset)
			if bal == 0 && ext == 0 {
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", o, a, bal, ext)
		}
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "ASSET\tSUPPLY\tHOLDINGS")
	for _, a := range p.assets() {
		asset := types.Asset(a)
		supply, err := l.TotalSupply(ctx, asset)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\n", a, supply, v.Holdings(asset))
	}
	return tw.Flush()
}
