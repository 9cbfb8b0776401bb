// Package models holds the rows persisted by the collector. Table and column
// names are the contract other tools query against.
package models

// Record is any row the collector stages for insertion.
type Record interface {
	RecordID() string
	TableName() string
}

var (
	_ Record = (*Community)(nil)
	_ Record = (*Author)(nil)
	_ Record = (*Post)(nil)
	_ Record = (*Comment)(nil)
)
