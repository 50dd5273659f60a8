package migrations

import "embed"

// PostgresFS holds the run-table migrations, applied in filename order.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the equity-history migrations, applied in filename
// order.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
