package tenanthost

import (
	"context"
	"encoding/json"

	"github.com/tetratelabs/wazero/api"
)

// wireBody is the fixed ABI convention wrapping every argument payload
// crossing into a guest handler.
type wireBody struct {
	Body json.RawMessage `json:"body"`
}

// callWasm invokes the named guest export with argsJSON as its sole
// logical argument, following the wire protocol in full:
//  1. wrap as {"body": argsJSON},
//  2. allocate a guest buffer sized exactly for the wrapped string plus
//     its terminating NUL,
//  3. write the wrapped string into it,
//  4. call fnName with the buffer pointer, receiving a result pointer,
//  5. read the NUL-terminated result string and parse it as JSON.
func callWasm(ctx context.Context, mod api.Module, fnName string, argsJSON json.RawMessage) (json.RawMessage, error) {
	fn := mod.ExportedFunction(fnName)
	if fn == nil {
		return nil, &ABIError{Function: fnName, Kind: ABIMissingExport}
	}

	if argsJSON == nil {
		argsJSON = json.RawMessage("null")
	}
	wrapped, err := json.Marshal(wireBody{Body: argsJSON})
	if err != nil {
		return nil, &ABIError{Function: fnName, Kind: ABIDecodeFailure, Cause: err}
	}

	ptr, err := allocGuest(ctx, mod, uint64(len(wrapped)+1))
	if err != nil {
		return nil, &ABIError{Function: fnName, Kind: ABIAllocationFailure, Cause: err}
	}
	if err := writeCString(mod.Memory(), ptr, string(wrapped)); err != nil {
		return nil, &ABIError{Function: fnName, Kind: ABIAllocationFailure, Cause: err}
	}

	results, err := fn.Call(ctx, uint64(ptr))
	if err != nil {
		return nil, &ABIError{Function: fnName, Kind: ABIInvocationTrap, Cause: err}
	}
	if len(results) == 0 {
		return nil, &ABIError{Function: fnName, Kind: ABIInvocationTrap}
	}

	resultStr, err := readCString(mod.Memory(), uint32(results[0]))
	if err != nil {
		return nil, &ABIError{Function: fnName, Kind: ABIDecodeFailure, Cause: err}
	}

	var out json.RawMessage
	if err := json.Unmarshal([]byte(resultStr), &out); err != nil {
		return nil, &ABIError{Function: fnName, Kind: ABIDecodeFailure, Cause: err}
	}
	return out, nil
}

// callWasmNoArgs invokes a zero-argument export (the handler_metadata_*
// and table_ddl_* exports) and returns its NUL-terminated result as a
// raw string, bypassing the body-wrapping convention — metadata exports
// take no logical argument at all.
func callWasmNoArgs(ctx context.Context, mod api.Module, fnName string) (string, error) {
	fn := mod.ExportedFunction(fnName)
	if fn == nil {
		return "", &ABIError{Function: fnName, Kind: ABIMissingExport}
	}
	results, err := fn.Call(ctx)
	if err != nil {
		return "", &ABIError{Function: fnName, Kind: ABIInvocationTrap, Cause: err}
	}
	if len(results) == 0 {
		return "", &ABIError{Function: fnName, Kind: ABIInvocationTrap}
	}
	s, err := readCString(mod.Memory(), uint32(results[0]))
	if err != nil {
		return "", &ABIError{Function: fnName, Kind: ABIDecodeFailure, Cause: err}
	}
	return s, nil
}
