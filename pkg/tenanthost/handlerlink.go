package tenanthost

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero/api"
)

const (
	handlerMetadataPrefix = "handler_metadata_"
	handlerDispatchPrefix = "handler_"
)

// handlerMetadata is the JSON shape a handler_metadata_* export
// returns.
type handlerMetadata struct {
	Input  interface{} `json:"input"`
	Output interface{} `json:"output"`
}

// sortedExportNames returns a module's exported function names in
// lexical order, for deterministic iteration over handler_metadata_*
// and table_ddl_* prefixes.
func sortedExportNames(mod api.Module) []string {
	defs := mod.ExportedFunctionDefinitions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// linkHandlers enumerates handler_metadata_* exports on mod, compiles
// each handler's input/output schema, and registers the resulting query
// field (and any object types it produced) into sb. instanceLock
// serializes every call into this particular Wasm instance, including
// the metadata calls themselves, per the non-reentrancy requirement.
func linkHandlers(ctx context.Context, mod api.Module, sb *SchemaBuilder, instanceLock *sync.Mutex) error {
	for _, name := range sortedExportNames(mod) {
		if !strings.HasPrefix(name, handlerMetadataPrefix) {
			continue
		}

		instanceLock.Lock()
		raw, err := callWasmNoArgs(ctx, mod, name)
		instanceLock.Unlock()
		if err != nil {
			return &LoaderError{Kind: LoaderInvalidMetadata, Module: mod.Name(), Cause: err}
		}

		var meta handlerMetadata
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return &LoaderError{Kind: LoaderInvalidMetadata, Module: mod.Name(), Cause: fmt.Errorf("export %s: %w", name, err)}
		}

		inComp, err := compileInput("input", meta.Input)
		if err != nil {
			return err
		}

		wrappedOutput := map[string]interface{}{"container": "Obj", "content": meta.Output}
		outComp, err := compileOutput("output", wrappedOutput)
		if err != nil {
			return err
		}

		handlerName := strings.TrimPrefix(name, handlerMetadataPrefix)
		dispatchName := handlerDispatchPrefix + handlerName
		if mod.ExportedFunction(dispatchName) == nil {
			return &LoaderError{Kind: LoaderInvalidMetadata, Module: mod.Name(), Cause: fmt.Errorf("missing dispatch export %s for metadata export %s", dispatchName, name)}
		}

		mod := mod // capture for the closure below
		qf := QueryField{
			Name: handlerName,
			Args: inComp.args,
			Type: TypeRef{Name: outComp.typeName, Tag: TagNamedNN},
			Resolve: func(ctx context.Context, args map[string]interface{}) (json.RawMessage, error) {
				argsJSON, err := json.Marshal(args)
				if err != nil {
					return nil, &ABIError{Function: dispatchName, Kind: ABIDecodeFailure, Cause: err}
				}
				instanceLock.Lock()
				defer instanceLock.Unlock()
				return callWasm(ctx, mod, dispatchName, argsJSON)
			},
		}

		if err := sb.AddField(qf); err != nil {
			return err
		}
		if err := sb.addInputObjects(inComp.objects); err != nil {
			return err
		}
		if err := sb.addOutputObjects(outComp.objects); err != nil {
			return err
		}
	}
	return nil
}
