package tenanthost

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap/zaptest"
)

// buildDDLModule assembles a module exporting memory, str_malloc, and a
// single table_ddl_foo returning ddlJSON verbatim.
func buildDDLModule(ddlJSON string) []byte {
	header := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	typeSec := section(1, []byte{
		0x02,
		0x60, 0x01, 0x7f, 0x01, 0x7f,
		0x60, 0x00, 0x01, 0x7f,
	})
	funcSec := section(3, []byte{0x02, 0x00, 0x01})
	memSec := section(5, []byte{0x01, 0x00, 0x01})

	exportContent := append([]byte{0x03}, wasmName("memory")...)
	exportContent = append(exportContent, 0x02, 0x00)
	exportContent = append(exportContent, wasmName("str_malloc")...)
	exportContent = append(exportContent, 0x00, 0x00)
	exportContent = append(exportContent, wasmName("table_ddl_foo")...)
	exportContent = append(exportContent, 0x00, 0x01)
	exportSec := section(7, exportContent)

	body := append([]byte(ddlJSON), 0x00)
	dataEntry := []byte{0x00, 0x41, 0x00, 0x0b}
	dataEntry = append(dataEntry, encodeLEB(uint32(len(body)))...)
	dataEntry = append(dataEntry, body...)
	dataSec := section(11, append([]byte{0x01}, dataEntry...))

	body0 := []byte{0x00, 0x20, 0x00, 0x0b}
	body1 := []byte{0x00, 0x41, 0x00, 0x0b}
	codeContent := []byte{0x02}
	codeContent = append(codeContent, byte(len(body0)))
	codeContent = append(codeContent, body0...)
	codeContent = append(codeContent, byte(len(body1)))
	codeContent = append(codeContent, body1...)
	codeSec := section(10, codeContent)

	var out []byte
	out = append(out, header...)
	out = append(out, typeSec...)
	out = append(out, funcSec...)
	out = append(out, memSec...)
	out = append(out, exportSec...)
	out = append(out, codeSec...)
	out = append(out, dataSec...)
	return out
}

func TestLoadDDLParsesExport(t *testing.T) {
	wasm := buildDDLModule(`{"name":"events","op":"CreateOrAlter","cols":[{"name":"id","ty":"UInt64","optional":false,"op":"None"}]}`)
	ctx, rt, compiled := instantiate(t, wasm, "ddl-ok")
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("ddl-ok"))
	require.NoError(t, err)

	var lock sync.Mutex
	ddls := loadDDL(ctx, mod, &lock, zaptest.NewLogger(t))
	require.Len(t, ddls, 1)
	assert.Equal(t, "events", ddls[0].Name)
	assert.Equal(t, DDLCreateOrAlter, ddls[0].Op)
	require.Len(t, ddls[0].Cols, 1)
	assert.Equal(t, "id", ddls[0].Cols[0].Name)
	assert.Equal(t, "UInt64", ddls[0].Cols[0].Type)
}

func TestLoadDDLDropsUnparseableResult(t *testing.T) {
	wasm := buildDDLModule(`not json`)
	ctx, rt, compiled := instantiate(t, wasm, "ddl-bad")
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("ddl-bad"))
	require.NoError(t, err)

	var lock sync.Mutex
	ddls := loadDDL(ctx, mod, &lock, zaptest.NewLogger(t))
	assert.Empty(t, ddls)
}

func TestLoadDDLNoExportsYieldsEmpty(t *testing.T) {
	ctx, mod, cleanup := newTestModule(t)
	defer cleanup()

	var lock sync.Mutex
	ddls := loadDDL(ctx, mod, &lock, zaptest.NewLogger(t))
	assert.Empty(t, ddls)
}
