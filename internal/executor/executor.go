// Package executor runs SQL against a target database under a compiled
// execution configuration.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"nathanbeddoewebdev/carbonq/internal/domain"
	"nathanbeddoewebdev/carbonq/internal/strategy"
)

// Result is the tabular output of one execution.
type Result struct {
	Columns []string  `json:"columns"`
	Rows    [][]any   `json:"rows"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// Executor runs a query under a configuration. Implementations must honour
// ctx cancellation.
type Executor interface {
	Execute(ctx context.Context, query string, cfg strategy.ExecutionConfig) (*Result, error)
}

// ExecutionError wraps a failure raised by the target database.
type ExecutionError struct {
	Strategy domain.Strategy
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed (%s): %v", e.Strategy, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Is reports whether target is domain.ErrExecutionFailed.
func (e *ExecutionError) Is(target error) bool {
	return target == domain.ErrExecutionFailed
}

// SQLExecutor executes queries over database/sql. Each execution takes a
// dedicated connection so the dialect's session settings apply to it.
type SQLExecutor struct {
	db      *sql.DB
	dialect Dialect
}

// New returns an executor over db using dialect.
func New(db *sql.DB, dialect Dialect) *SQLExecutor {
	return &SQLExecutor{db: db, dialect: dialect}
}

// Dialect returns the executor's dialect.
func (e *SQLExecutor) Dialect() Dialect {
	return e.dialect
}

// Execute implements Executor.
func (e *SQLExecutor) Execute(ctx context.Context, query string, cfg strategy.ExecutionConfig) (*Result, error) {
	res := &Result{Start: time.Now()}
	fail := func(err error) (*Result, error) {
		res.End = time.Now()
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return res, &ExecutionError{Strategy: cfg.Strategy, Err: err}
	}

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return fail(fmt.Errorf("acquire connection: %w", err))
	}
	defer conn.Close()

	if err := e.dialect.Apply(ctx, conn, cfg); err != nil {
		return fail(fmt.Errorf("apply %s settings: %w", e.dialect.Name(), err))
	}

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return fail(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fail(err)
	}
	res.Columns = cols
	res.Rows = [][]any{}

	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fail(err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return fail(err)
	}

	res.End = time.Now()
	return res, nil
}
