package migrations

import "embed"

// FS sql migrations of the offline queue database
//
//go:embed *.sql
var FS embed.FS
