package http

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

type Response struct {
	StatusCode int
	Status     string
	Headers    map[string]string
	Body       []byte
	Duration   time.Duration
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

// Preview returns at most limit bytes of the body for log lines, cut on a
// rune boundary and marked with the number of bytes left out.
func (r *Response) Preview(limit int) string {
	if limit <= 0 || len(r.Body) <= limit {
		return string(r.Body)
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(r.Body[cut]) {
		cut--
	}
	return string(r.Body[:cut]) + "... (" + strconv.Itoa(len(r.Body)-cut) + " more bytes)"
}

// Header looks up a response header ignoring case.
func (r *Response) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func (r *Response) ContentType() string {
	return r.Header(HeaderContentType)
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
