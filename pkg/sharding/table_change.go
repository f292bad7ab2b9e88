package sharding

import (
	"fmt"

	"github.com/shardkit/proxy/pkg/sqlast"
)

// renderDatabaseChange renders a table reference under the database
// strategy: the reference's qualifier is replaced by the chosen
// shard's actual database name (the endpoint's own database, not its
// node identifier), backtick-quoted iff the original schema qualifier
// was backtick-quoted. The table name itself is never touched.
func renderDatabaseChange(ref sqlast.TableRef, actualDB string) string {
	db := actualDB
	if ref.SchemaBacktick {
		db = "`" + actualDB + "`"
	}
	return db + "." + ref.Name
}

// renderTableStrategyChange renders a table reference under the table
// strategy: the table name gets a zero-padded shard suffix and the
// schema is always rendered backtick-quoted, defaulting to the
// session database when the reference itself was unqualified. The
// suffixed name is backtick-quoted only if the original name was.
func renderTableStrategyChange(ref sqlast.TableRef, defaultDB string, shardIdx int) string {
	schema := ref.Schema
	if schema == "" {
		schema = defaultDB
	}
	suffixed := fmt.Sprintf("%s_%05d", ref.Name, shardIdx)
	if ref.NameBacktick {
		suffixed = "`" + suffixed + "`"
	}
	return "`" + schema + "`" + "." + suffixed
}
