package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sort"
	"strconv"
	"strings"

	"github.com/aretw0/canopy/pkg/ports"
)

// MultipartEncoder implements ports.ArgsEncoder.
// Each argument becomes one part named by its position: strings as plain fields,
// []byte and io.Reader as file parts, everything else as a JSON part.
type MultipartEncoder struct{}

var _ ports.ArgsEncoder = MultipartEncoder{}

// Encode writes args into a multipart/form-data body.
func (MultipartEncoder) Encode(args []any) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for i, arg := range args {
		name := strconv.Itoa(i)
		if err := writePart(w, name, arg); err != nil {
			return nil, "", fmt.Errorf("encode arg %d: %w", i, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func writePart(w *multipart.Writer, name string, arg any) error {
	switch v := arg.(type) {
	case string:
		return w.WriteField(name, v)
	case []byte:
		part, err := w.CreateFormFile(name, name)
		if err != nil {
			return err
		}
		_, err = part.Write(v)
		return err
	case io.Reader:
		part, err := w.CreateFormFile(name, name)
		if err != nil {
			return err
		}
		_, err = io.Copy(part, v)
		return err
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"`, name))
		h.Set("Content-Type", "application/json")
		part, err := w.CreatePart(h)
		if err != nil {
			return err
		}
		_, err = part.Write(data)
		return err
	}
}

// DecodeArgs reads remote-call arguments from a request written by MultipartEncoder.
// JSON parts are unmarshalled, file parts returned as []byte, plain fields as strings.
func DecodeArgs(r *http.Request) ([]any, error) {
	return DecodeArgsFrom(r.Header.Get("Content-Type"), r.Body)
}

// DecodeArgsFrom is DecodeArgs for a bare content type and body.
func DecodeArgsFrom(contentType string, body io.Reader) ([]any, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return nil, fmt.Errorf("decode args: expected multipart body, got %q", contentType)
	}

	parts := make(map[int]any)
	mr := multipart.NewReader(body, params["boundary"])
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode args: %w", err)
		}
		idx, err := strconv.Atoi(part.FormName())
		if err != nil {
			return nil, fmt.Errorf("decode args: invalid part name %q", part.FormName())
		}
		data, err := io.ReadAll(part)
		if err != nil {
			return nil, fmt.Errorf("decode args: %w", err)
		}

		switch {
		case part.FileName() != "":
			parts[idx] = data
		case part.Header.Get("Content-Type") == "application/json":
			var v any
			if err := json.Unmarshal(data, &v); err != nil {
				return nil, fmt.Errorf("decode args: part %d: %w", idx, err)
			}
			parts[idx] = v
		default:
			parts[idx] = string(data)
		}
	}

	keys := make([]int, 0, len(parts))
	for k := range parts {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		args = append(args, parts[k])
	}
	return args, nil
}
