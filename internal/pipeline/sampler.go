package pipeline

import (
	"bytes"
	"io"
	"unicode/utf8"
)

// DefaultSampleMax is the inline preview cap in bytes.
const DefaultSampleMax = 1024

// SampleResult is what the sampler learned about a stream.
type SampleResult struct {
	// Length counts every byte of the stream.
	Length int64
	// Content is the whole stream as text, nil when it exceeds the cap or is
	// not text.
	Content *string
}

// Sample drains r to the end, counting every byte but keeping only the first
// limit. Bytes past the cap are discarded as they arrive.
func Sample(r io.Reader, limit int) (SampleResult, error) {
	if limit < 0 {
		limit = 0
	}
	head := make([]byte, 0, limit)
	buf := make([]byte, 4096)
	var total int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			total += int64(n)
			if room := limit - len(head); room > 0 {
				head = append(head, buf[:min(n, room)]...)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return SampleResult{Length: total}, err
		}
	}
	res := SampleResult{Length: total}
	if total <= int64(limit) && isText(head) {
		s := string(head)
		res.Content = &s
	}
	return res, nil
}

func isText(b []byte) bool {
	return utf8.Valid(b) && bytes.IndexByte(b, 0) < 0
}
