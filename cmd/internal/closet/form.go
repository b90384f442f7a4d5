package closet

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
)

// itemForm is the parsed body of a create or update request.
// Nil fields were absent from the request.
type itemForm struct {
	title      *string
	categories []string
	colors     []string
	hasCats    bool
	hasColors  bool

	file   multipart.File
	header *multipart.FileHeader
}

func (f *itemForm) close() {
	if f.file != nil {
		_ = f.file.Close()
	}
}

// listField accepts a JSON array of strings or a comma-separated string.
type listField struct {
	name   string
	values []string
}

func (l *listField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		l.values = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		l.values = NormalizeList([]string{s})
		return nil
	}
	var arr []string
	if err := json.Unmarshal(b, &arr); err == nil {
		l.values = arr
		return nil
	}
	return invalid("closet.decode", fmt.Sprintf("%s must be an array or a valid string.", l.name))
}

func (l *listField) list() []string {
	if l == nil || l.values == nil {
		return []string{}
	}
	return l.values
}

type jsonItemBody struct {
	Title      *string    `json:"title"`
	Categories *listField `json:"categories"`
	Colors     *listField `json:"colors"`
}

const multipartMemory = 1 << 20

// parseItemForm reads multipart/form-data (with an optional "photo" part)
// or a JSON body.
func parseItemForm(w http.ResponseWriter, r *http.Request, maxBytes int64) (*itemForm, error) {
	const op = "closet.parseForm"

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, bodyError(op, err)
		}
		f := &itemForm{}
		vals := r.MultipartForm.Value
		if v, ok := vals["title"]; ok && len(v) > 0 {
			t := v[0]
			f.title = &t
		}
		if v, ok := vals["categories"]; ok {
			f.categories, f.hasCats = NormalizeList(v), true
		}
		if v, ok := vals["colors"]; ok {
			f.colors, f.hasColors = NormalizeList(v), true
		}
		file, header, err := r.FormFile("photo")
		switch {
		case err == nil:
			f.file, f.header = file, header
		case errors.Is(err, http.ErrMissingFile):
		default:
			return nil, bodyError(op, err)
		}
		return f, nil

	case "application/json", "":
		body := jsonItemBody{
			Categories: &listField{name: "Categories"},
			Colors:     &listField{name: "Colors"},
		}
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, bodyError(op, err)
		}
		f := &itemForm{}
		if len(bytes.TrimSpace(raw)) == 0 {
			return f, nil
		}
		probe := map[string]json.RawMessage{}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return nil, invalid(op, "Invalid JSON body.")
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			if Message(err) != "" {
				return nil, err
			}
			return nil, invalid(op, "Invalid JSON body.")
		}
		f.title = body.Title
		if _, ok := probe["categories"]; ok {
			f.categories, f.hasCats = body.Categories.list(), true
		}
		if _, ok := probe["colors"]; ok {
			f.colors, f.hasColors = body.Colors.list(), true
		}
		return f, nil

	default:
		return nil, invalid(op, "Unsupported content type.")
	}
}

func bodyError(op string, err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return tooLarge{limit: mbe.Limit}
	}
	if strings.Contains(err.Error(), "request body too large") {
		return tooLarge{}
	}
	return invalid(op, "Malformed request body.")
}

type tooLarge struct{ limit int64 }

func (e tooLarge) Error() string { return fmt.Sprintf("closet: body exceeds %d bytes", e.limit) }
