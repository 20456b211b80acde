// Package postgres implements store.Store using pgx/v5 with raw SQL.
// Features: SKIP LOCKED dequeue, conditional terminal updates, embedded
// SQL migrations.
package postgres
