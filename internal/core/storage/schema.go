package storage

// UniqueIndex rejects two non-deleted rows with equal values in Columns.
type UniqueIndex struct {
	Name    string
	Columns []string
}

// ForeignKey requires Column, when not NULL, to hold an id of RefTable.
type ForeignKey struct {
	Column   string
	RefTable string
}

// TableDef declares a table and its constraints for stores that enforce them
// in process. Relational stores get the same constraints from their DDL.
type TableDef struct {
	Name        string
	Unique      []UniqueIndex
	ForeignKeys []ForeignKey
}
