package tenanthost

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tetratelabs/wazero/api"
)

// guestAllocExport is the symbol the guest must export for the host to
// allocate guest-owned buffers.
const guestAllocExport = "str_malloc"

// readCString reads bytes from ptr in the guest's linear memory up to
// the first NUL byte (or the end of memory, if none is found) and
// decodes them as UTF-8, replacing invalid sequences rather than
// failing on them. It fails only when ptr itself lies outside the
// memory view.
func readCString(mem api.Memory, ptr uint32) (string, error) {
	size := mem.Size()
	if ptr > size {
		return "", fmt.Errorf("tenanthost: pointer %d outside guest memory of size %d", ptr, size)
	}
	buf, ok := mem.Read(ptr, size-ptr)
	if !ok {
		return "", fmt.Errorf("tenanthost: failed to read guest memory at %d", ptr)
	}
	if n := bytes.IndexByte(buf, 0); n >= 0 {
		buf = buf[:n]
	}
	if utf8.Valid(buf) {
		return string(buf), nil
	}
	return strings.ToValidUTF8(string(buf), string(utf8.RuneError)), nil
}

// writeCString writes s followed by a terminating NUL at ptr. The
// caller must have reserved at least len(s)+1 bytes there.
func writeCString(mem api.Memory, ptr uint32, s string) error {
	data := make([]byte, len(s)+1)
	copy(data, s)
	if !mem.Write(ptr, data) {
		return fmt.Errorf("tenanthost: failed to write %d bytes at guest pointer %d", len(data), ptr)
	}
	return nil
}

// allocGuest invokes the guest's exported allocator and returns the
// guest-side pointer to a buffer of at least size bytes.
func allocGuest(ctx context.Context, mod api.Module, size uint64) (uint32, error) {
	malloc := mod.ExportedFunction(guestAllocExport)
	if malloc == nil {
		return 0, fmt.Errorf("tenanthost: guest module %q does not export %s", mod.Name(), guestAllocExport)
	}
	results, err := malloc.Call(ctx, size)
	if err != nil {
		return 0, fmt.Errorf("tenanthost: %s(%d) failed: %w", guestAllocExport, size, err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("tenanthost: %s returned no result", guestAllocExport)
	}
	return uint32(results[0]), nil
}

// writeJSONString allocates a guest buffer sized for s and writes it as
// a NUL-terminated string, returning the pointer.
func writeJSONString(ctx context.Context, mod api.Module, s string) (uint32, error) {
	ptr, err := allocGuest(ctx, mod, uint64(len(s)+1))
	if err != nil {
		return 0, err
	}
	if err := writeCString(mod.Memory(), ptr, s); err != nil {
		return 0, err
	}
	return ptr, nil
}
