// Package postgres implements the store interfaces on PostgreSQL through the
// pgx database/sql driver. Catalog reads go through sqlx. Schema migrations
// are embedded and applied with goose.
package postgres
