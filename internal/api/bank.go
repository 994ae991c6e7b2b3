package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/importdesk/importdesk/internal/model"
)

// Recognition is the result of uploading a file to a question bank.
type Recognition struct {
	Questions []model.Question `json:"questions"`
	PaperID   *int64           `json:"paperId,omitempty"`
	PaperName string           `json:"paperName,omitempty"`
}

// SaveRequest stores a batch of recognized questions as one paper.
type SaveRequest struct {
	PaperName string           `json:"paperName"`
	Year      string           `json:"year,omitempty"`
	Questions []model.Question `json:"questions"`
}

func bankPath(bank model.QuestionBank, rest string) string {
	return "/api/" + string(bank) + rest
}

// Recognize uploads a PDF or image for extraction. paperName is optional.
func (c *Client) Recognize(ctx context.Context, bank model.QuestionBank, filename string, r io.Reader, paperName string) (*Recognition, error) {
	var out Recognition
	err := c.postMultipart(ctx, bankPath(bank, "/upload"), upload{
		field:    "file",
		filename: filename,
		body:     r,
		fields:   map[string]string{"paperName": paperName},
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("recognize %s: %w", filename, err)
	}
	return &out, nil
}

// SavePaper stores recognized questions and returns the new paper id.
func (c *Client) SavePaper(ctx context.Context, bank model.QuestionBank, req SaveRequest) (int64, error) {
	var out struct {
		Data int64 `json:"data"`
	}
	if err := c.postJSON(ctx, bankPath(bank, "/save"), req, &out); err != nil {
		return 0, fmt.Errorf("save paper %q: %w", req.PaperName, err)
	}
	return out.Data, nil
}

// Papers lists the saved papers of a bank.
func (c *Client) Papers(ctx context.Context, bank model.QuestionBank) ([]model.Paper, error) {
	var out struct {
		Data []model.Paper `json:"data"`
	}
	if err := c.getJSON(ctx, bankPath(bank, "/papers"), nil, &out); err != nil {
		return nil, fmt.Errorf("list papers: %w", err)
	}
	return out.Data, nil
}

// Paper fetches one paper with its questions.
func (c *Client) Paper(ctx context.Context, bank model.QuestionBank, id int64) (*model.Paper, error) {
	var out struct {
		Data *model.Paper `json:"data"`
	}
	if err := c.getJSON(ctx, bankPath(bank, "/papers/"+strconv.FormatInt(id, 10)), nil, &out); err != nil {
		return nil, fmt.Errorf("paper %d: %w", id, err)
	}
	if out.Data == nil {
		return nil, &APIError{Status: http.StatusNotFound, Message: fmt.Sprintf("paper %d not found", id)}
	}
	return out.Data, nil
}

// DeletePaper removes a paper and its questions.
func (c *Client) DeletePaper(ctx context.Context, bank model.QuestionBank, id int64) error {
	if err := c.send(ctx, http.MethodDelete, bankPath(bank, "/papers/"+strconv.FormatInt(id, 10)), nil, nil, "", nil); err != nil {
		return fmt.Errorf("delete paper %d: %w", id, err)
	}
	return nil
}

// UpdateQuestion stores an edited question. q.ID must be set.
func (c *Client) UpdateQuestion(ctx context.Context, bank model.QuestionBank, q model.Question) error {
	if q.ID == nil {
		return fmt.Errorf("update question: %w", model.ErrMissingID)
	}
	path := bankPath(bank, "/questions/"+strconv.FormatInt(*q.ID, 10))
	if err := c.sendJSON(ctx, http.MethodPut, path, q, nil); err != nil {
		return fmt.Errorf("update question %d: %w", *q.ID, err)
	}
	return nil
}

// DeleteQuestion removes one saved question.
func (c *Client) DeleteQuestion(ctx context.Context, bank model.QuestionBank, id int64) error {
	if err := c.send(ctx, http.MethodDelete, bankPath(bank, "/questions/"+strconv.FormatInt(id, 10)), nil, nil, "", nil); err != nil {
		return fmt.Errorf("delete question %d: %w", id, err)
	}
	return nil
}

// Search looks up papers by name, falling back to question content.
func (c *Client) Search(ctx context.Context, query string) (*model.SearchResult, error) {
	q := url.Values{}
	q.Set("query", query)
	var out model.SearchResult
	if err := c.getJSON(ctx, "/api/ocr/search", q, &out); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	return &out, nil
}
