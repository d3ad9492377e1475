package mushroomobserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"nemfreview/internal/services"
)

type fieldSlipPayload struct {
	ID            int64  `json:"id"`
	Code          string `json:"code"`
	ObservationID int64  `json:"observation_id"`
}

// FieldSlipByCode implements reconcile.Lookup. A code with no field slip
// yields no ids and no error.
func (c *Client) FieldSlipByCode(ctx context.Context, code string) ([]int64, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, services.Wrap(services.ErrValidation, "mushroomobserver", "field slip lookup", "code is required", nil)
	}
	env, err := c.do(ctx, call{
		method:   http.MethodGet,
		path:     "/api2/field_slips",
		endpoint: "field_slips.get",
		query:    url.Values{"code": {code}, "detail": {"low"}},
	})
	if err != nil {
		if services.Kind(err) == services.KindNotFound {
			return nil, nil
		}
		return nil, err
	}

	var ids []int64
	for _, raw := range env.Results {
		var slip fieldSlipPayload
		// Id-only results cannot say which observation the slip points at.
		if err := json.Unmarshal(raw, &slip); err != nil || slip.ObservationID <= 0 {
			continue
		}
		if slip.Code != "" && !strings.EqualFold(slip.Code, code) {
			continue
		}
		ids = append(ids, slip.ObservationID)
	}
	return ids, nil
}

// CreateFieldSlip links code to an observation, optionally inside a project.
// A code that already exists fails with an error matching ErrConflict.
func (c *Client) CreateFieldSlip(ctx context.Context, code string, observationID, projectID int64) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return services.Wrap(services.ErrValidation, "mushroomobserver", "create field slip", "code is required", nil)
	}
	form := url.Values{"code": {code}}
	if observationID > 0 {
		form.Set("observation", formatID(observationID))
	}
	if projectID > 0 {
		form.Set("project", formatID(projectID))
	}
	_, err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     "/api2/field_slips",
		endpoint: "field_slips.create",
		form:     form,
	})
	return err
}
