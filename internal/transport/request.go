package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

// FileField is the multipart field name the analysis service reads uploads from
const FileField = "file"

// NewMultipartRequest builds a POST request carrying data as a single
// multipart file part.
func NewMultipartRequest(url, field, filename, contentType string, data []byte) (Request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		escapeQuotes(field), escapeQuotes(filename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return Request{}, fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return Request{}, fmt.Errorf("failed to write multipart part: %w", err)
	}
	if err := w.Close(); err != nil {
		return Request{}, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	header := make(http.Header)
	header.Set("Content-Type", w.FormDataContentType())
	header.Set("Accept", "application/json")

	return Request{
		Method: http.MethodPost,
		URL:    url,
		Header: header,
		Body:   buf.Bytes(),
	}, nil
}

// NewJSONRequest builds a request with a JSON encoded body
func NewJSONRequest(method, url string, payload interface{}) (Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Request{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")

	return Request{
		Method: method,
		URL:    url,
		Header: header,
		Body:   data,
	}, nil
}

// NewGetRequest builds a body-less GET request
func NewGetRequest(url string) Request {
	header := make(http.Header)
	header.Set("Accept", "application/json")
	return Request{
		Method: http.MethodGet,
		URL:    url,
		Header: header,
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
