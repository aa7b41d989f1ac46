package quotareset

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ManualReset lets an operator force-run one or all reset kinds outside the
// schedule. The caller's credential is checked before anything touches the
// store: a missing admin claim or an unknown kind is a hard rejection with
// zero writes.
//
// For "all" the three kinds run concurrently and the result is successful
// only if every kind completed. Kinds that succeeded are not undone when
// another fails; each kind's log entry remains the authoritative record.
func (e *Executor) ManualReset(ctx context.Context, kind string, claims Claims) (*ManualResult, error) {
	if !claims.Admin {
		e.metrics.RecordManualTrigger(kind, false)
		e.logger.Warn("manual reset rejected",
			Field{"kind", kind}, Field{"subject", claims.Subject})
		return nil, ErrUnauthorized
	}

	if kind != KindAll {
		if _, err := ParseKind(kind); err != nil {
			e.metrics.RecordManualTrigger(kind, true)
			return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
		}
	}

	e.metrics.RecordManualTrigger(kind, true)
	e.logger.Info("manual reset triggered",
		Field{"kind", kind}, Field{"subject", claims.Subject})

	if kind != KindAll {
		outcome := e.Run(ctx, Kind(kind))
		return manualResult([]Outcome{outcome}), nil
	}

	outcomes := make([]Outcome, len(Kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, k := range Kinds {
		i, k := i, k
		g.Go(func() error {
			outcomes[i] = e.Run(gctx, k)
			return nil
		})
	}
	// Run never returns an error; outcomes carry per-kind failures.
	_ = g.Wait()

	return manualResult(outcomes), nil
}

func manualResult(outcomes []Outcome) *ManualResult {
	var failed []string
	// Every kind walks the same eligible set, so the distinct user count is
	// the largest per-kind count, not the sum.
	users := 0
	for _, o := range outcomes {
		if o.UsersReset > users {
			users = o.UsersReset
		}
		if !o.Completed() {
			failed = append(failed, string(o.Kind))
		}
	}

	if len(failed) > 0 {
		return &ManualResult{
			Success:  false,
			Message:  fmt.Sprintf("reset failed for: %s", strings.Join(failed, ", ")),
			Outcomes: outcomes,
		}
	}

	return &ManualResult{
		Success:  true,
		Message:  fmt.Sprintf("reset completed for %d users", users),
		Outcomes: outcomes,
	}
}
