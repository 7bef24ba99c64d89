package tenanthost

import (
	"fmt"
	"sort"
)

// inputCompilation is the result of compiling one (field name,
// descriptor) pair on the input side: the compiled type's own name, the
// argument(s) it contributes at the point it is embedded, any input
// object types it caused to be synthesized, and its nullability tag.
type inputCompilation struct {
	typeName string
	args     []InputValue
	objects  []InputObjectType
	tag      ListTag
}

// outputCompilation is the output-side counterpart of inputCompilation.
type outputCompilation struct {
	typeName string
	fields   []OutputField
	objects  []OutputObjectType
	tag      ListTag
}

// vecTransform and optionTransform implement the tag-transformation
// table: Vec always makes the outer list non-null; Option
// always strips outer non-null (and, if the child was already a
// non-null list, drops to its nullable list form).
var vecTransform = map[ListTag]ListTag{
	TagNamed:         TagNamedListNN,
	TagNamedNN:       TagNamedNNListNN,
	TagNamedList:     TagNamedListNN,
	TagNamedNNList:   TagNamedNNListNN,
	TagNamedListNN:   TagNamedNNListNN,
	TagNamedNNListNN: TagNamedNNListNN,
}

var optionTransform = map[ListTag]ListTag{
	TagNamed:         TagNamed,
	TagNamedNN:       TagNamed,
	TagNamedList:     TagNamedList,
	TagNamedNNList:   TagNamedNNList,
	TagNamedListNN:   TagNamedList,
	TagNamedNNListNN: TagNamedNNList,
}

// fieldResolverFor builds the resolver every compiled output field uses:
// look the field up by name in the parent JSON object, reporting
// absence for a missing or explicitly null slot. Deeper typing of the
// value (e.g. walking into a nested object's own fields) is the
// responsibility of resolvers on that object's own field list, not this
// one — this resolver only ever looks at one flat level.
func fieldResolverFor(name string) FieldResolver {
	return func(parent map[string]interface{}) (interface{}, bool) {
		v, ok := parent[name]
		if !ok || v == nil {
			return nil, false
		}
		return v, true
	}
}

// sortedKeys returns m's keys sorted lexically, for deterministic
// compilation order over an object descriptor's fields.
func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// compileInput compiles a (field name, descriptor) pair on the input
// side.
func compileInput(fieldName string, desc interface{}) (inputCompilation, error) {
	switch v := desc.(type) {
	case string:
		scalar, ok := scalarTable[v]
		if !ok {
			return inputCompilation{}, &LoaderError{Kind: LoaderInvalidMetadata, Cause: fmt.Errorf("unknown scalar %q", v)}
		}
		return inputCompilation{
			typeName: string(scalar),
			args:     []InputValue{{Name: fieldName, Type: TypeRef{Name: string(scalar), Tag: TagNamedNN}}},
			tag:      TagNamedNN,
		}, nil

	case map[string]interface{}:
		if name, ok := v["_name_"]; ok {
			typeName, ok := name.(string)
			if !ok {
				return inputCompilation{}, &LoaderError{Kind: LoaderInvalidMetadata, Cause: fmt.Errorf("_name_ must be a string")}
			}
			var args []InputValue
			var objects []InputObjectType
			for _, key := range sortedKeys(v) {
				if key == "_name_" {
					continue
				}
				child, err := compileInput(key, v[key])
				if err != nil {
					return inputCompilation{}, err
				}
				args = append(args, child.args...)
				objects = append(objects, child.objects...)
			}
			return inputCompilation{typeName: typeName, args: args, objects: objects, tag: TagNamedNN}, nil
		}

		container, ok := v["container"]
		if !ok {
			return inputCompilation{}, &LoaderError{Kind: LoaderInvalidMetadata, Cause: fmt.Errorf("object descriptor missing _name_ and container")}
		}
		containerName, ok := container.(string)
		if !ok {
			return inputCompilation{}, &LoaderError{Kind: LoaderInvalidMetadata, Cause: fmt.Errorf("container must be a string")}
		}
		content, ok := v["content"]
		if !ok {
			return inputCompilation{}, &LoaderError{Kind: LoaderInvalidMetadata, Cause: fmt.Errorf("container missing content")}
		}

		switch containerName {
		case "Vec":
			child, err := compileInput(fieldName, content)
			if err != nil {
				return inputCompilation{}, err
			}
			tag := vecTransform[child.tag]
			return inputCompilation{
				typeName: child.typeName,
				args:     []InputValue{{Name: fieldName, Type: TypeRef{Name: child.typeName, Tag: tag}}},
				objects:  child.objects,
				tag:      tag,
			}, nil

		case "Option":
			child, err := compileInput(fieldName, content)
			if err != nil {
				return inputCompilation{}, err
			}
			tag := optionTransform[child.tag]
			return inputCompilation{
				typeName: child.typeName,
				args:     []InputValue{{Name: fieldName, Type: TypeRef{Name: child.typeName, Tag: tag}}},
				objects:  child.objects,
				tag:      tag,
			}, nil

		case "Obj":
			child, err := compileInput(fieldName, content)
			if err != nil {
				return inputCompilation{}, err
			}
			obj := InputObjectType{Name: child.typeName, Fields: child.args}
			objects := append(append([]InputObjectType{}, child.objects...), obj)
			return inputCompilation{
				typeName: child.typeName,
				args:     []InputValue{{Name: fieldName, Type: TypeRef{Name: child.typeName, Tag: TagNamedNN}}},
				objects:  objects,
				tag:      TagNamedNN,
			}, nil

		default:
			return inputCompilation{}, &LoaderError{Kind: LoaderInvalidMetadata, Cause: fmt.Errorf("unknown container %q", containerName)}
		}

	default:
		return inputCompilation{}, &LoaderError{Kind: LoaderInvalidMetadata, Cause: fmt.Errorf("descriptor must be a string or object, got %T", desc)}
	}
}

// compileOutput is the output-side counterpart of compileInput. It
// produces the same shape of result but carries OutputField/
// OutputObjectType (with resolvers) instead of InputValue/
// InputObjectType.
func compileOutput(fieldName string, desc interface{}) (outputCompilation, error) {
	switch v := desc.(type) {
	case string:
		scalar, ok := scalarTable[v]
		if !ok {
			return outputCompilation{}, &LoaderError{Kind: LoaderInvalidMetadata, Cause: fmt.Errorf("unknown scalar %q", v)}
		}
		return outputCompilation{
			typeName: string(scalar),
			fields:   []OutputField{{Name: fieldName, Type: TypeRef{Name: string(scalar), Tag: TagNamedNN}, Resolve: fieldResolverFor(fieldName)}},
			tag:      TagNamedNN,
		}, nil

	case map[string]interface{}:
		if name, ok := v["_name_"]; ok {
			typeName, ok := name.(string)
			if !ok {
				return outputCompilation{}, &LoaderError{Kind: LoaderInvalidMetadata, Cause: fmt.Errorf("_name_ must be a string")}
			}
			var fields []OutputField
			var objects []OutputObjectType
			for _, key := range sortedKeys(v) {
				if key == "_name_" {
					continue
				}
				child, err := compileOutput(key, v[key])
				if err != nil {
					return outputCompilation{}, err
				}
				fields = append(fields, child.fields...)
				objects = append(objects, child.objects...)
			}
			return outputCompilation{typeName: typeName, fields: fields, objects: objects, tag: TagNamedNN}, nil
		}

		container, ok := v["container"]
		if !ok {
			return outputCompilation{}, &LoaderError{Kind: LoaderInvalidMetadata, Cause: fmt.Errorf("object descriptor missing _name_ and container")}
		}
		containerName, ok := container.(string)
		if !ok {
			return outputCompilation{}, &LoaderError{Kind: LoaderInvalidMetadata, Cause: fmt.Errorf("container must be a string")}
		}
		content, ok := v["content"]
		if !ok {
			return outputCompilation{}, &LoaderError{Kind: LoaderInvalidMetadata, Cause: fmt.Errorf("container missing content")}
		}

		switch containerName {
		case "Vec":
			child, err := compileOutput(fieldName, content)
			if err != nil {
				return outputCompilation{}, err
			}
			tag := vecTransform[child.tag]
			return outputCompilation{
				typeName: child.typeName,
				fields:   []OutputField{{Name: fieldName, Type: TypeRef{Name: child.typeName, Tag: tag}, Resolve: fieldResolverFor(fieldName)}},
				objects:  child.objects,
				tag:      tag,
			}, nil

		case "Option":
			child, err := compileOutput(fieldName, content)
			if err != nil {
				return outputCompilation{}, err
			}
			tag := optionTransform[child.tag]
			return outputCompilation{
				typeName: child.typeName,
				fields:   []OutputField{{Name: fieldName, Type: TypeRef{Name: child.typeName, Tag: tag}, Resolve: fieldResolverFor(fieldName)}},
				objects:  child.objects,
				tag:      tag,
			}, nil

		case "Obj":
			child, err := compileOutput(fieldName, content)
			if err != nil {
				return outputCompilation{}, err
			}
			obj := OutputObjectType{Name: child.typeName, Fields: child.fields}
			objects := append(append([]OutputObjectType{}, child.objects...), obj)
			return outputCompilation{
				typeName: child.typeName,
				fields:   []OutputField{{Name: fieldName, Type: TypeRef{Name: child.typeName, Tag: TagNamedNN}, Resolve: fieldResolverFor(fieldName)}},
				objects:  objects,
				tag:      TagNamedNN,
			}, nil

		default:
			return outputCompilation{}, &LoaderError{Kind: LoaderInvalidMetadata, Cause: fmt.Errorf("unknown container %q", containerName)}
		}

	default:
		return outputCompilation{}, &LoaderError{Kind: LoaderInvalidMetadata, Cause: fmt.Errorf("descriptor must be a string or object, got %T", desc)}
	}
}
