package doubles

import (
	"bytes"
	"runtime"
	"strconv"
)

// CurrentGoroutineID parses the current goroutine's id from its stack header.
// This is for test assertions about worker placement only, never for
// production logic.
func CurrentGoroutineID() uint64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]

	// header looks like "goroutine 123 [running]:"
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	if i := bytes.IndexByte(buf, ' '); i >= 0 {
		buf = buf[:i]
	}

	id, err := strconv.ParseUint(string(buf), 10, 64)
	if err != nil {
		return 0
	}

	return id
}
