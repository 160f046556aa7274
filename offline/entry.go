package offline

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Entry is a stored response held in a Partition.
type Entry struct {
	URL      string      `json:"url" msgpack:"url"`
	Method   string      `json:"method" msgpack:"method"`
	Status   int         `json:"status" msgpack:"status"`
	Header   http.Header `json:"header" msgpack:"header"`
	Body     []byte      `json:"body" msgpack:"body"`
	StoredAt time.Time   `json:"stored_at" msgpack:"stored_at"`
}

// EntryFromResponse copies resp into an Entry. The response body is read fully
// and replaced with an equivalent reader so the caller can still consume it.
func EntryFromResponse(req *http.Request, resp *http.Response, now time.Time) (Entry, error) {
	var body []byte
	if resp.Body != nil {
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return Entry{}, fmt.Errorf("read response body: %w", err)
		}
		body = data
		resp.Body = io.NopCloser(bytes.NewReader(data))
	}

	return Entry{
		URL:      IdentityURL(req.URL),
		Method:   req.Method,
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     body,
		StoredAt: now,
	}, nil
}

// Response builds a fresh *http.Response for req from the stored entry.
// Every call returns an independent body reader.
func (e Entry) Response(req *http.Request) *http.Response {
	header := e.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Length", strconv.Itoa(len(e.Body)))

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status)),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}
