package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strings"
	"time"

	"git.sr.ht/~aondrejcak/policy-console/models"
)

// File is an in-memory upload passed through to the backend as a "files" part.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Probe hits GET / and reports the backend version.
func (c *Client) Probe(ctx context.Context) (*models.ServiceInfo, error) {
	var info models.ServiceInfo
	if err := c.getJSON(ctx, "/", ProbeTimeout, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) Stats(ctx context.Context) (*models.Stats, error) {
	return c.stats(ctx, DefaultTimeout)
}

// SidebarStats is Stats with the short timeout used on every page render.
func (c *Client) SidebarStats(ctx context.Context) (*models.Stats, error) {
	return c.stats(ctx, SidebarStatsTimeout)
}

func (c *Client) stats(ctx context.Context, timeout time.Duration) (*models.Stats, error) {
	var stats models.Stats
	if err := c.getJSON(ctx, "/stats", timeout, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) ListPolicies(ctx context.Context) ([]models.Policy, error) {
	var policies []models.Policy
	if err := c.getJSON(ctx, "/policies", DefaultTimeout, &policies); err != nil {
		return nil, err
	}
	if policies == nil {
		policies = []models.Policy{}
	}
	return policies, nil
}

// CreatePolicy sends the form fields, and any files, as multipart/form-data.
func (c *Client) CreatePolicy(ctx context.Context, fields url.Values, files []File) (*Result, error) {
	body, contentType, err := encodeMultipart(fields, files)
	if err != nil {
		return nil, unexpected(err)
	}

	rsp, err := c.do(ctx, &request{
		method:      http.MethodPost,
		path:        "/policies",
		route:       "/policies",
		body:        body,
		contentType: contentType,
	})
	if err != nil {
		return nil, err
	}
	return newResult(rsp), nil
}

func (c *Client) UpdatePolicy(ctx context.Context, id models.PolicyID, fields map[string]any) (*Result, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, unexpected(err)
	}

	rsp, err := c.do(ctx, &request{
		method:      http.MethodPut,
		path:        policyPath(id),
		route:       "/policies/{id}",
		body:        b,
		contentType: "application/json",
	})
	if err != nil {
		return nil, err
	}
	return newResult(rsp), nil
}

func (c *Client) DeletePolicy(ctx context.Context, id models.PolicyID) (*Result, error) {
	rsp, err := c.do(ctx, &request{
		method: http.MethodDelete,
		path:   policyPath(id),
		route:  "/policies/{id}",
	})
	if err != nil {
		return nil, err
	}
	return newResult(rsp), nil
}

// UploadFiles attaches documents to an existing policy. Only 200 and 201 count as success.
func (c *Client) UploadFiles(ctx context.Context, id models.PolicyID, files []File) (*Result, error) {
	body, contentType, err := encodeMultipart(nil, files)
	if err != nil {
		return nil, unexpected(err)
	}

	rsp, err := c.do(ctx, &request{
		method:      http.MethodPost,
		path:        policyPath(id) + "/files",
		route:       "/policies/{id}/files",
		body:        body,
		contentType: contentType,
		timeout:     UploadTimeout,
		accept:      []int{http.StatusOK, http.StatusCreated},
	})
	if err != nil {
		return nil, err
	}
	return newResult(rsp), nil
}

func policyPath(id models.PolicyID) string {
	return fmt.Sprintf("/policies/%s", url.PathEscape(id.String()))
}

func encodeMultipart(fields url.Values, files []File) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range fields[k] {
			if err := w.WriteField(k, v); err != nil {
				return nil, "", err
			}
		}
	}

	for _, f := range files {
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="files"; filename="%s"`, quoteEscaper.Replace(f.Name)))
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err = part.Write(f.Data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
