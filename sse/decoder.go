package sse

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// Event is one dispatched server-sent event.
type Event struct {
	ID   string
	Type string
	Data string
}

// Decoder reads events from an event stream.
type Decoder struct {
	reader  *bufio.Reader
	lastID  string
	retry   time.Duration
	skipLF  bool
	started bool
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{reader: bufio.NewReader(r)}
}

// LastEventID returns the last event id seen, carried across events.
func (d *Decoder) LastEventID() string {
	return d.lastID
}

// Retry returns the reconnection time requested by the server, or 0.
func (d *Decoder) Retry() time.Duration {
	return d.retry
}

// Next returns the next event. An event left unterminated at the end of the
// stream is discarded and io.EOF is returned.
func (d *Decoder) Next() (*Event, error) {
	var data strings.Builder
	var eventType string
	for {
		line, err := d.readLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			if data.Len() == 0 {
				eventType = ""
				continue
			}
			return &Event{
				ID:   d.lastID,
				Type: eventType,
				Data: strings.TrimSuffix(data.String(), "\n"),
			}, nil
		}
		if line[0] == ':' {
			continue
		}
		field, value := line, ""
		if index := strings.IndexByte(line, ':'); index != -1 {
			field, value = line[:index], strings.TrimPrefix(line[index+1:], " ")
		}
		switch field {
		case "event":
			eventType = value
		case "data":
			data.WriteString(value)
			data.WriteByte('\n')
		case "id":
			if !strings.ContainsRune(value, 0) {
				d.lastID = value
			}
		case "retry":
			if ms, err := strconv.ParseUint(value, 10, 32); err == nil {
				d.retry = time.Duration(ms) * time.Millisecond
			}
		}
	}
}

// readLine reads a line terminated by LF, CR or CRLF, without the terminator.
func (d *Decoder) readLine() (string, error) {
	var line []byte
	for {
		b, err := d.reader.ReadByte()
		if err != nil {
			return "", err
		}
		if d.skipLF {
			d.skipLF = false
			if b == '\n' {
				continue
			}
		}
		switch b {
		case '\n':
			return d.text(line), nil
		case '\r':
			d.skipLF = true
			return d.text(line), nil
		default:
			line = append(line, b)
		}
	}
}

// text strips the byte order mark allowed at the start of the stream.
func (d *Decoder) text(line []byte) string {
	ret := string(line)
	if !d.started {
		d.started = true
		ret = strings.TrimPrefix(ret, "\ufeff")
	}
	return ret
}
