package api

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/importdesk/importdesk/internal/model"
)

// DocUpload is the result of uploading one document to the doc service.
type DocUpload struct {
	PaperName     string           `json:"paperName"`
	QuestionCount int              `json:"questionCount"`
	Questions     []model.Question `json:"questions"`
}

type idRequest struct {
	ID int64 `json:"id"`
}

// UploadDoc sends one document for page extraction.
func (c *Client) UploadDoc(ctx context.Context, filename string, r io.Reader) (*DocUpload, error) {
	var out DocUpload
	if err := c.postMultipart(ctx, "/api/doc/upload", upload{field: "file", filename: filename, body: r}, &out); err != nil {
		return nil, fmt.Errorf("upload %s: %w", filename, err)
	}
	return &out, nil
}

// SaveDoc stores the pages of one document and returns the paper id.
func (c *Client) SaveDoc(ctx context.Context, paperName string, pages []model.Question) (int64, error) {
	var out struct {
		PaperID int64 `json:"paperId"`
	}
	req := SaveRequest{PaperName: paperName, Questions: pages}
	if err := c.postJSON(ctx, "/api/doc/save", req, &out); err != nil {
		return 0, fmt.Errorf("save document %q: %w", paperName, err)
	}
	return out.PaperID, nil
}

// DocPapers lists the saved documents.
func (c *Client) DocPapers(ctx context.Context) ([]model.Paper, error) {
	var out struct {
		Papers []model.Paper `json:"papers"`
	}
	if err := c.getJSON(ctx, "/api/doc/papers", nil, &out); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return out.Papers, nil
}

// DocPaper fetches a document and its pages.
func (c *Client) DocPaper(ctx context.Context, id int64) (*model.Paper, error) {
	var out struct {
		Paper     model.Paper      `json:"paper"`
		Questions []model.Question `json:"questions"`
	}
	if err := c.getJSON(ctx, "/api/doc/paper/"+strconv.FormatInt(id, 10), nil, &out); err != nil {
		return nil, fmt.Errorf("document %d: %w", id, err)
	}
	out.Paper.Questions = out.Questions
	return &out.Paper, nil
}

// UpdateDocPage stores an edited page. p.ID must be set.
func (c *Client) UpdateDocPage(ctx context.Context, p model.Question) error {
	if p.ID == nil {
		return fmt.Errorf("update page: %w", model.ErrMissingID)
	}
	if err := c.postJSON(ctx, "/api/doc/updateQuestion", p, nil); err != nil {
		return fmt.Errorf("update page %d: %w", *p.ID, err)
	}
	return nil
}

// DeleteDocPage removes one saved page.
func (c *Client) DeleteDocPage(ctx context.Context, id int64) error {
	if err := c.postJSON(ctx, "/api/doc/deleteQuestion", idRequest{ID: id}, nil); err != nil {
		return fmt.Errorf("delete page %d: %w", id, err)
	}
	return nil
}

// DeleteDoc removes a document and its pages.
func (c *Client) DeleteDoc(ctx context.Context, id int64) error {
	if err := c.postJSON(ctx, "/api/doc/deletePaper", idRequest{ID: id}, nil); err != nil {
		return fmt.Errorf("delete document %d: %w", id, err)
	}
	return nil
}

// SearchDocs searches documents by name or page content.
func (c *Client) SearchDocs(ctx context.Context, query string) ([]model.Paper, error) {
	q := url.Values{}
	q.Set("query", query)
	var out struct {
		Results []model.Paper `json:"results"`
	}
	if err := c.getJSON(ctx, "/api/doc/search", q, &out); err != nil {
		return nil, fmt.Errorf("search documents %q: %w", query, err)
	}
	return out.Results, nil
}
