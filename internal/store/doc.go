// Package store persists long events. PostgresStore writes the stock_data table
// with an ON CONFLICT upsert; MemoryStore keeps the same key semantics in memory
// for tests and dry runs.
package store
