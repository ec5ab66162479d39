package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"cpaas-console/internal/domain/metrics"
	"cpaas-console/internal/domain/role"
)

func (c *Client) ListRoles(ctx context.Context, token string) ([]role.Role, error) {
	raw, err := c.do(ctx, request{
		op:     "list roles",
		method: http.MethodGet,
		url:    c.cfg.AuthURL + "/api/auth/roles",
		bearer: token,
	})
	if err != nil {
		return nil, err
	}
	roles := []role.Role{}
	if len(raw) == 0 {
		return roles, nil
	}
	if err := decode(raw, &roles); err != nil {
		return nil, fmt.Errorf("list roles: failed to decode: %w", err)
	}
	return roles, nil
}

func (c *Client) CreateRole(ctx context.Context, token string, r role.Role) (*role.Role, error) {
	raw, err := c.do(ctx, request{
		op:     "create role",
		method: http.MethodPost,
		url:    c.cfg.AuthURL + "/api/auth/roles",
		bearer: token,
		body:   r,
	})
	if err != nil {
		return nil, err
	}
	return decodeRole("create role", raw, r)
}

func (c *Client) UpdateRole(ctx context.Context, token, id string, r role.Role) (*role.Role, error) {
	raw, err := c.do(ctx, request{
		op:     "update role",
		method: http.MethodPut,
		url:    c.cfg.AuthURL + "/api/auth/roles/" + url.PathEscape(id),
		bearer: token,
		body:   r,
	})
	if err != nil {
		return nil, err
	}
	r.ID = id
	return decodeRole("update role", raw, r)
}

func (c *Client) DeleteRole(ctx context.Context, token, id string) error {
	_, err := c.do(ctx, request{
		op:     "delete role",
		method: http.MethodDelete,
		url:    c.cfg.AuthURL + "/api/auth/roles/" + url.PathEscape(id),
		bearer: token,
	})
	return err
}

// some backends answer writes with an empty body; fall back to what was sent
func decodeRole(op string, raw []byte, sent role.Role) (*role.Role, error) {
	if len(raw) == 0 {
		return &sent, nil
	}
	var out role.Role
	if err := decode(raw, &out); err != nil {
		return nil, fmt.Errorf("%s: failed to decode: %w", op, err)
	}
	if out.RoleName == "" {
		out.RoleName = sent.RoleName
		out.Permissions = sent.Permissions
	}
	return &out, nil
}

func (c *Client) MetricsSummary(ctx context.Context, token string) (*metrics.Summary, error) {
	raw, err := c.do(ctx, request{
		op:     "metrics summary",
		method: http.MethodGet,
		url:    c.cfg.MetricsURL + "/api/metrics/summary",
		bearer: token,
	})
	if err != nil {
		return nil, err
	}
	var s metrics.Summary
	if err := decode(raw, &s); err != nil {
		return nil, fmt.Errorf("metrics summary: failed to decode: %w", err)
	}
	return &s, nil
}

func (c *Client) Usage(ctx context.Context, token string, days int) ([]metrics.UsagePoint, error) {
	raw, err := c.do(ctx, request{
		op:     "metrics usage",
		method: http.MethodGet,
		url:    c.cfg.MetricsURL + "/api/metrics/usage?days=" + strconv.Itoa(days),
		bearer: token,
	})
	if err != nil {
		return nil, err
	}
	points := []metrics.UsagePoint{}
	if len(raw) == 0 {
		return points, nil
	}
	if err := decode(raw, &points); err != nil {
		return nil, fmt.Errorf("metrics usage: failed to decode: %w", err)
	}
	return points, nil
}
