package engine

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// maxEventSize caps a single buffered event payload.
const maxEventSize = 1 << 20

// ReadEvents reads a text/event-stream from r and calls fn with the data
// payload of every complete event (multi-line data joined with "\n").
// Comment lines and non-data fields are ignored. It returns when r hits EOF
// or fails; a clean EOF returns nil.
func ReadEvents(r io.Reader, fn func(data []byte)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxEventSize)

	var data bytes.Buffer
	have := false
	flush := func() {
		if have {
			fn(bytes.Clone(data.Bytes()))
		}
		data.Reset()
		have = false
	}

	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if line == "" {
			flush()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		if field != "data" {
			continue
		}
		if have {
			data.WriteByte('\n')
		}
		data.WriteString(value)
		have = true
	}
	if err := sc.Err(); err != nil {
		return err
	}
	// An event cut off by EOF is discarded, as EventSource does.
	return nil
}
