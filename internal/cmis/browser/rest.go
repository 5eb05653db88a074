package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strings"

	"github.com/Project-Sylos/Archivist/internal/cmis"
	"github.com/klauspost/compress/gzip"
)

// restClient is a thin JSON-over-HTTP wrapper. Its fields are fixed at
// construction so it is safe for concurrent use.
type restClient struct {
	c           *http.Client
	username    string
	password    string
	compression bool
}

func newRestClient(c *http.Client, creds cmis.Credentials, compression bool) *restClient {
	return &restClient{
		c:           c,
		username:    creds.Username,
		password:    creds.Password,
		compression: compression,
	}
}

// opts describes one call
type opts struct {
	Method     string
	URL        string
	Parameters url.Values // query string
	Form       url.Values // urlencoded body, ignored when Content is set
	Content    *cmis.ContentStream
	NoResponse bool // close the body after status checking
}

// call performs the request and returns the response with a decoded body.
// On error the body has been closed.
func (api *restClient) call(ctx context.Context, o *opts) (*http.Response, error) {
	target := o.URL
	if len(o.Parameters) > 0 {
		target += "?" + o.Parameters.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case o.Content != nil:
		body, contentType = multipartBody(o.Form, o.Content)
	case o.Form != nil:
		body = strings.NewReader(o.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	req, err := http.NewRequestWithContext(ctx, o.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	if api.username != "" || api.password != "" {
		req.SetBasicAuth(api.username, api.password)
	}
	if api.compression {
		// Setting this ourselves turns off net/http's transparent decoding
		req.Header.Set("Accept-Encoding", "gzip")
	}
	resp, err := api.c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", cmis.ErrConnection, o.Method, o.URL, err)
	}

	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("failed to open gzip response: %w", err)
		}
		resp.Body = &gzipBody{Reader: zr, raw: resp.Body}
		resp.Header.Del("Content-Encoding")
		resp.ContentLength = -1
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeError(resp)
	}
	if o.NoResponse {
		return resp, resp.Body.Close()
	}
	return resp, nil
}

// callJSON runs call and decodes the body into response. An empty body
// leaves response untouched.
func (api *restClient) callJSON(ctx context.Context, o *opts, response any) error {
	resp, err := api.call(ctx, o)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if response == nil {
		_, err = io.Copy(io.Discard, resp.Body)
		return err
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(response); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to decode %s response: %w", o.URL, err)
	}
	return nil
}

type gzipBody struct {
	*gzip.Reader
	raw io.ReadCloser
}

func (g *gzipBody) Close() error {
	zerr := g.Reader.Close()
	if err := g.raw.Close(); err != nil {
		return err
	}
	return zerr
}

// decodeError reads a browser binding error body, closing resp.Body
func decodeError(resp *http.Response) error {
	defer resp.Body.Close()

	var payload struct {
		Exception string `json:"exception"`
		Message   string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err := json.Unmarshal(data, &payload); err != nil || payload.Exception == "" {
		payload.Exception = cmis.ExceptionForStatus(resp.StatusCode)
		if payload.Message == "" {
			payload.Message = strings.TrimSpace(string(data))
		}
	}
	if payload.Message == "" {
		payload.Message = resp.Status
	}
	return &cmis.Error{
		Status:    resp.StatusCode,
		Exception: payload.Exception,
		Message:   payload.Message,
	}
}

// multipartBody streams form fields followed by the content part
func multipartBody(form url.Values, content *cmis.ContentStream) (io.Reader, string) {
	bodyReader, bodyWriter := io.Pipe()
	writer := multipart.NewWriter(bodyWriter)
	contentType := writer.FormDataContentType()

	keys := make([]string, 0, len(form))
	for key := range form {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	go func() {
		for _, key := range keys {
			for _, val := range form[key] {
				if err := writer.WriteField(key, val); err != nil {
					_ = bodyWriter.CloseWithError(fmt.Errorf("create form field %s: %w", key, err))
					return
				}
			}
		}

		mimeType := content.MimeType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="content"; filename=%q`, content.FileName))
		header.Set("Content-Type", mimeType)
		part, err := writer.CreatePart(header)
		if err != nil {
			_ = bodyWriter.CloseWithError(fmt.Errorf("create content part: %w", err))
			return
		}
		if content.Stream != nil {
			if _, err := io.Copy(part, content.Stream); err != nil {
				_ = bodyWriter.CloseWithError(fmt.Errorf("copy content: %w", err))
				return
			}
		}
		if err := writer.Close(); err != nil {
			_ = bodyWriter.CloseWithError(fmt.Errorf("close form: %w", err))
			return
		}
		_ = bodyWriter.Close()
	}()

	return bodyReader, contentType
}
