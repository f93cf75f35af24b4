package shared

import "context"

// TxRunner runs fn inside a single database transaction. Repositories
// called with the ctx passed to fn take part in that transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TxRunnerFunc adapts a function to TxRunner
type TxRunnerFunc func(ctx context.Context, fn func(ctx context.Context) error) error

// RunInTx implements TxRunner
func (f TxRunnerFunc) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}
