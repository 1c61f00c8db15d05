package queryir

// Log tables.
const (
	TablePasses    = "passes"
	TableRuns      = "processor_runs"
	TableMutations = "mutations"
	TableSnapshots = "snapshots"
)

// Table describes one queryable table.
type Table struct {
	Columns []string
	// Order is the ORDER BY that makes results deterministic.
	Order []string
	// JSON lists columns holding JSON text.
	JSON []string
}

// Schema is every table a query may reference.
var Schema = map[string]Table{
	TablePasses: {
		Columns: []string{"id", "token", "seq", "network_hash", "executed", "failed", "skipped"},
		Order:   []string{"seq ASC", "id COLLATE BINARY ASC"},
		JSON:    []string{"executed", "failed", "skipped"},
	},
	TableRuns: {
		Columns: []string{"pass_id", "seq", "processor", "outcome", "initialized", "error"},
		Order:   []string{"seq ASC", "rowid ASC"},
	},
	TableMutations: {
		Columns: []string{"seq", "path", "value"},
		Order:   []string{"seq ASC"},
		JSON:    []string{"value"},
	},
	TableSnapshots: {
		Columns: []string{"hash", "name", "doc"},
		Order:   []string{"name COLLATE BINARY ASC", "hash COLLATE BINARY ASC"},
		JSON:    []string{"doc"},
	},
}
