package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	ContentType   = "application/pdf"
	DefaultPrefix = "sales-plan-report"
)

var ErrNoSink = errors.New("download requested without a sink")

// Blob is an emitted document held in memory.
type Blob struct {
	Filename    string
	ContentType string
	Data        []byte
	Pages       int
	CreatedAt   time.Time
}

func (b *Blob) Size() int {
	return len(b.Data)
}

func (b *Blob) Reader() io.Reader {
	return bytes.NewReader(b.Data)
}

// DownloadSink receives a finished file, for example an HTTP response.
type DownloadSink interface {
	Download(filename, contentType string, r io.Reader) error
}

// Save hands the blob to sink without regenerating it.
func (b *Blob) Save(sink DownloadSink) error {
	if sink == nil {
		return ErrNoSink
	}
	if err := sink.Download(b.Filename, b.ContentType, b.Reader()); err != nil {
		return fmt.Errorf("download %s: %w", b.Filename, err)
	}
	return nil
}

type EmitOptions struct {
	Preview bool
	Sink    DownloadSink
	Prefix  string
	Now     time.Time
}

// Filename derives the download name from prefix and the date of t.
func Filename(prefix string, t time.Time) string {
	base := strings.ToLower(strings.TrimSpace(prefix))
	base = strings.ReplaceAll(base, " ", "-")
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return -1
	}, base)
	if base == "" {
		base = DefaultPrefix
	}
	return fmt.Sprintf("%s-%s.pdf", base, t.Format("2006-01-02"))
}

// Emit serializes d. With Preview set the blob is returned for later use;
// otherwise it goes straight to opts.Sink and no blob is returned.
func Emit(d *Document, opts EmitOptions) (*Blob, error) {
	if d == nil {
		return nil, errors.New("emit: no document")
	}
	if !opts.Preview && opts.Sink == nil {
		return nil, ErrNoSink
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	pages := d.PageCount()
	data, err := d.Bytes()
	if err != nil {
		return nil, err
	}
	blob := &Blob{
		Filename:    Filename(prefix, now),
		ContentType: ContentType,
		Data:        data,
		Pages:       pages,
		CreatedAt:   now,
	}
	if opts.Preview {
		return blob, nil
	}
	return nil, blob.Save(opts.Sink)
}
