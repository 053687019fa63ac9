package client

import (
	"context"
	"fmt"
)

// Tx is a client bound to a transaction. Every query method of Client is
// available and runs inside the transaction.
type Tx struct {
	*Client
}

// Begin starts a transaction.
func (c *Client) Begin(ctx context.Context) (*Tx, error) {
	if c.tx != nil {
		return nil, fmt.Errorf("transaction already started")
	}
	if c.db == nil {
		return nil, ErrNotConnected
	}
	tx, err := c.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	bound := *c
	bound.tx = tx
	bound.executor = c.executor.WithRunner(tx)
	return &Tx{Client: &bound}, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback rolls back the transaction.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// Transaction executes fn within a transaction. If fn returns an error
// or panics the transaction is rolled back, otherwise it is committed.
func (c *Client) Transaction(ctx context.Context, fn func(tx *Tx) error) (err error) {
	tx, err := c.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}
