package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-rag-client/routes"
)

func (c *Client) ListDocuments(ctx context.Context, params ListDocumentsParams) ([]Document, error) {
	query := url.Values{}
	if params.Skip > 0 {
		query.Set("skip", strconv.Itoa(params.Skip))
	}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Status != "" {
		query.Set("status", string(params.Status))
	}
	var docs []Document
	if err := c.doJSON(ctx, http.MethodGet, routes.Documents, query, nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Client) GetDocument(ctx context.Context, id string) (*Document, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalid("id", "document id is required")
	}
	var doc Document
	if err := c.doJSON(ctx, http.MethodGet, routes.DocumentPath(id), nil, nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) DeleteDocument(ctx context.Context, id string) (*MessageResponse, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalid("id", "document id is required")
	}
	var msg MessageResponse
	if err := c.doJSON(ctx, http.MethodDelete, routes.DocumentPath(id), nil, nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// UploadDocument sends one file as the multipart field "file".
func (c *Client) UploadDocument(ctx context.Context, file Upload) (*Document, error) {
	body, contentType, err := multipartBody("file", []Upload{file})
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, routes.DocumentsUpload, nil, body, contentType)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := c.do(req, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// UploadDocuments sends every file under the repeated multipart field "files".
func (c *Client) UploadDocuments(ctx context.Context, files []Upload) ([]Document, error) {
	if len(files) == 0 {
		return nil, invalid("files", "at least one file is required")
	}
	body, contentType, err := multipartBody("files", files)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, routes.DocumentsUploadBulk, nil, body, contentType)
	if err != nil {
		return nil, err
	}
	var docs []Document
	if err := c.do(req, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// multipartBody buffers the whole form so the request can be replayed after a refresh.
func multipartBody(field string, files []Upload) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range files {
		if strings.TrimSpace(f.Filename) == "" {
			return nil, "", invalid(field, "filename is required")
		}
		if len(f.Content) == 0 {
			return nil, "", invalid(field, "%s is empty", f.Filename)
		}
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filepath.Base(f.Filename)))
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("[apiclient] multipart %s: %w", f.Filename, err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, "", fmt.Errorf("[apiclient] multipart %s: %w", f.Filename, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("[apiclient] multipart close: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
