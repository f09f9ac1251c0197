package tablekit

import (
	"context"
	"strings"
	"sync"

	entdialect "entgo.io/ent/dialect"
	"github.com/google/uuid"
)

// txCtxKey attaches the active transaction to a context.
type txCtxKey struct{}

// Tx is a thin, nestable transaction handle. The root handle owns the
// underlying driver transaction; nested handles map to savepoints on the
// same connection and chain to their parent. Only the root's commit or
// rollback resolves the shared committed future that children observe.
//
// A handle may be passed across sequential adapter calls in one request, but
// concurrent use of the same handle is not guarded; callers must serialize.
type Tx struct {
	tx        entdialect.Tx
	id        string
	savepoint string // empty for the root
	parent    *Tx
	root      *Tx

	once      sync.Once
	done      chan struct{}
	committed bool
}

// Begin starts a transaction and returns a context carrying it; adapter
// calls made with that context run inside the transaction. If ctx already
// carries one, a nested transaction is opened as a savepoint on the same
// connection.
func (s *Service) Begin(ctx context.Context) (context.Context, *Tx, error) {
	id := uuid.NewString()
	if cur := TxFromContext(ctx); cur != nil {
		sp := "sp_" + strings.ReplaceAll(id, "-", "")
		if err := cur.tx.Exec(ctx, "SAVEPOINT "+sp, []any{}, nil); err != nil {
			return ctx, nil, translateError(err)
		}
		child := &Tx{tx: cur.tx, id: id, savepoint: sp, parent: cur, root: cur.root}
		return context.WithValue(ctx, txCtxKey{}, child), child, nil
	}
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return ctx, nil, translateError(err)
	}
	t := &Tx{tx: tx, id: id, done: make(chan struct{})}
	t.root = t
	return context.WithValue(ctx, txCtxKey{}, t), t, nil
}

// TxFromContext returns the transaction attached to ctx, or nil.
func TxFromContext(ctx context.Context) *Tx {
	t, _ := ctx.Value(txCtxKey{}).(*Tx)
	return t
}

// CommitTx commits the transaction attached to ctx. It is a no-op when no
// transaction is present, so it can sit unconditionally in an after-hook.
func CommitTx(ctx context.Context) error {
	if t := TxFromContext(ctx); t != nil {
		return t.Commit(ctx)
	}
	return nil
}

// RollbackTx rolls back the transaction attached to ctx. It is a no-op when
// no transaction is present, so it can sit unconditionally in an error-hook.
func RollbackTx(ctx context.Context) error {
	if t := TxFromContext(ctx); t != nil {
		return t.Rollback(ctx)
	}
	return nil
}

// ID returns the handle's unique id.
func (t *Tx) ID() string { return t.id }

// Parent returns the enclosing transaction for nested handles, or nil.
func (t *Tx) Parent() *Tx { return t.parent }

// Commit commits the transaction. Nested handles release their savepoint and
// leave the root's outcome open; the root resolves the committed future
// exactly once. The adapter never commits or rolls back on the caller's
// behalf.
func (t *Tx) Commit(ctx context.Context) error {
	if t.savepoint != "" {
		if err := t.tx.Exec(ctx, "RELEASE SAVEPOINT "+t.savepoint, []any{}, nil); err != nil {
			return translateError(err)
		}
		return nil
	}
	err := t.tx.Commit()
	t.resolve(err == nil)
	return translateError(err)
}

// Rollback rolls back the transaction. Nested handles roll back to their
// savepoint; the root resolves the committed future to false.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.savepoint != "" {
		if err := t.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+t.savepoint, []any{}, nil); err != nil {
			return translateError(err)
		}
		return nil
	}
	err := t.tx.Rollback()
	t.resolve(false)
	return translateError(err)
}

// Committed blocks until the root transaction resolves and reports whether
// it committed. Nested handles observe their root's outcome.
func (t *Tx) Committed(ctx context.Context) (bool, error) {
	root := t.root
	select {
	case <-root.done:
		return root.committed, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// conn exposes the underlying transactional connection for statement
// execution.
func (t *Tx) conn() entdialect.ExecQuerier { return t.tx }

func (t *Tx) resolve(committed bool) {
	t.once.Do(func() {
		t.committed = committed
		close(t.done)
	})
}
