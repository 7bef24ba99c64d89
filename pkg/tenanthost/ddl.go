package tenanthost

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

const tableDDLPrefix = "table_ddl_"

// loadDDL enumerates table_ddl_* exports on mod and parses each into a
// TableDDL record. DDL is advisory: an export that fails to invoke or
// whose result fails to parse drops that one record, logs a warning,
// and loading continues — this keeps hot reload responsive even while a
// module's table definitions are mid-edit.
func loadDDL(ctx context.Context, mod api.Module, instanceLock *sync.Mutex, logger *zap.Logger) []TableDDL {
	var ddls []TableDDL
	for _, name := range sortedExportNames(mod) {
		if !strings.HasPrefix(name, tableDDLPrefix) {
			continue
		}

		instanceLock.Lock()
		raw, err := callWasmNoArgs(ctx, mod, name)
		instanceLock.Unlock()
		if err != nil {
			logger.Warn("dropping table DDL: export call failed",
				zap.String("module", mod.Name()),
				zap.String("export", name),
				zap.Error(err),
			)
			continue
		}

		var ddl TableDDL
		if err := json.Unmarshal([]byte(raw), &ddl); err != nil {
			logger.Warn("dropping table DDL: unparseable result",
				zap.String("module", mod.Name()),
				zap.String("export", name),
				zap.Error(err),
			)
			continue
		}

		ddls = append(ddls, ddl)
	}
	return ddls
}
