package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/importdesk/importdesk/internal/model"
)

// Stats fetches the row count summary of a data source.
func (c *Client) Stats(ctx context.Context, source model.DataSource) (*model.Stats, error) {
	var s model.Stats
	if err := c.getJSON(ctx, "/api/dashboard/"+source.PathSegment()+"-stats", nil, &s); err != nil {
		return nil, fmt.Errorf("%s stats: %w", source.PathSegment(), err)
	}
	return &s, nil
}

// SourceData fetches one page of a table through the dashboard endpoint.
func (c *Client) SourceData(ctx context.Context, source model.DataSource, table string, page, size int) (*model.TablePage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	var p model.TablePage
	path := "/api/dashboard/" + source.PathSegment() + "-data/" + url.PathEscape(table)
	if err := c.getJSON(ctx, path, q, &p); err != nil {
		return nil, fmt.Errorf("%s data %s: %w", source.PathSegment(), table, err)
	}
	return &p, nil
}

func rowPath(op string, source model.DataSource, table, id string) string {
	return "/api/dashboard/" + op + "/" + source.PathSegment() + "/" + url.PathEscape(table) + "/" + url.PathEscape(id)
}

// UpdateRow replaces the stored values of one row.
func (c *Client) UpdateRow(ctx context.Context, source model.DataSource, table, id string, row model.Row) error {
	if err := c.sendJSON(ctx, http.MethodPut, rowPath("upd", source, table, id), row, nil); err != nil {
		return fmt.Errorf("update %s/%s: %w", table, id, err)
	}
	return nil
}

// DeleteRow removes one row.
func (c *Client) DeleteRow(ctx context.Context, source model.DataSource, table, id string) error {
	if err := c.send(ctx, http.MethodDelete, rowPath("del", source, table, id), nil, nil, "", nil); err != nil {
		return fmt.Errorf("delete %s/%s: %w", table, id, err)
	}
	return nil
}
