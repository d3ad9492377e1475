package mushroomobserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"nemfreview/internal/records"
	"nemfreview/internal/reconcile"
	"nemfreview/internal/services"
)

// NewObservation describes an observation to create.
type NewObservation struct {
	Date         string
	LocationID   int64
	LocationName string
	Coordinates  *records.Coordinates
	NameID       int64
	Notes        string
	ImageIDs     []int64
}

type namedRef struct {
	Name string `json:"name"`
}

// flexFloat accepts coordinates reported as numbers or numeric strings.
type flexFloat struct {
	value float64
	ok    bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	text := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if text == "" || text == "null" {
		return nil
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("parse coordinate %q: %w", text, err)
	}
	f.value, f.ok = value, true
	return nil
}

type observationPayload struct {
	ID           int64           `json:"id"`
	Date         string          `json:"date"`
	Name         json.RawMessage `json:"name"`
	Consensus    *namedRef       `json:"consensus"`
	Latitude     flexFloat       `json:"latitude"`
	Longitude    flexFloat       `json:"longitude"`
	LocationName string          `json:"location_name"`
	Location     *namedRef       `json:"location"`
	Notes        json.RawMessage `json:"notes"`
}

func (p observationPayload) toObservation(id int64) reconcile.Observation {
	obs := reconcile.Observation{
		ID:           id,
		Date:         strings.TrimSpace(p.Date),
		LocationName: strings.TrimSpace(p.LocationName),
	}
	if p.Consensus != nil {
		obs.Name = strings.TrimSpace(p.Consensus.Name)
	}
	if obs.Name == "" {
		obs.Name = nameText(p.Name)
	}
	if obs.LocationName == "" && p.Location != nil {
		obs.LocationName = strings.TrimSpace(p.Location.Name)
	}
	if p.Latitude.ok && p.Longitude.ok {
		obs.Coordinates = &records.Coordinates{Latitude: p.Latitude.value, Longitude: p.Longitude.value}
	}
	return obs
}

// nameText reads a name reported either as text or as an object.
func nameText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var ref namedRef
	if err := json.Unmarshal(raw, &ref); err == nil {
		return strings.TrimSpace(ref.Name)
	}
	return ""
}

// notesText flattens notes reported either as text or as a keyed object.
func notesText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var keyed map[string]string
	if err := json.Unmarshal(raw, &keyed); err != nil {
		return ""
	}
	keys := make([]string, 0, len(keyed))
	for key := range keyed {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		if value := strings.TrimSpace(keyed[key]); value != "" {
			parts = append(parts, value)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (c *Client) fetchObservation(ctx context.Context, id int64) (observationPayload, error) {
	if id <= 0 {
		return observationPayload{}, services.Wrap(services.ErrValidation, "mushroomobserver", "get observation", "observation id must be positive", nil)
	}
	env, err := c.do(ctx, call{
		method:   http.MethodGet,
		path:     "/api2/observations/" + formatID(id),
		endpoint: "observations.get",
		query:    url.Values{"detail": {"high"}},
	})
	if err != nil {
		return observationPayload{}, err
	}
	if len(env.Results) == 0 {
		return observationPayload{}, &APIError{
			Endpoint: "observations.get",
			Message:  fmt.Sprintf("observation %d not returned", id),
			kind:     services.ErrNotFound,
		}
	}
	var payload observationPayload
	if err := json.Unmarshal(env.Results[0], &payload); err != nil {
		// Low-detail responses only carry the id.
		return observationPayload{ID: id}, nil
	}
	return payload, nil
}

// Observation implements reconcile.Lookup. Unknown ids match services.ErrNotFound.
func (c *Client) Observation(ctx context.Context, id int64) (reconcile.Observation, error) {
	payload, err := c.fetchObservation(ctx, id)
	if err != nil {
		return reconcile.Observation{}, err
	}
	return payload.toObservation(id), nil
}

// VerifyObservation reports whether an observation exists.
func (c *Client) VerifyObservation(ctx context.Context, id int64) (bool, error) {
	_, err := c.fetchObservation(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case services.Kind(err) == services.KindNotFound:
		return false, nil
	default:
		return false, err
	}
}

// CreateObservation creates an observation and returns its id.
func (c *Client) CreateObservation(ctx context.Context, obs NewObservation) (int64, error) {
	if strings.TrimSpace(obs.Date) == "" {
		return 0, services.Wrap(services.ErrValidation, "mushroomobserver", "create observation", "date is required", nil)
	}
	form := url.Values{}
	form.Set("date", strings.TrimSpace(obs.Date))
	form.Set("notes", obs.Notes)
	if obs.LocationID > 0 {
		form.Set("location", formatID(obs.LocationID))
	} else if name := strings.TrimSpace(obs.LocationName); name != "" {
		form.Set("place_name", name)
	}
	if obs.Coordinates != nil {
		form.Set("latitude", strconv.FormatFloat(obs.Coordinates.Latitude, 'f', -1, 64))
		form.Set("longitude", strconv.FormatFloat(obs.Coordinates.Longitude, 'f', -1, 64))
	}
	if obs.NameID > 0 {
		form.Set("name", formatID(obs.NameID))
	}
	if len(obs.ImageIDs) > 0 {
		ids := make([]string, 0, len(obs.ImageIDs))
		for _, id := range obs.ImageIDs {
			ids = append(ids, formatID(id))
		}
		form.Set("images", strings.Join(ids, ","))
	}

	env, err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     "/api2/observations",
		endpoint: "observations.create",
		form:     form,
	})
	if err != nil {
		return 0, err
	}
	return resultID("observations.create", env)
}

// AttachImage adds an uploaded image to an observation.
func (c *Client) AttachImage(ctx context.Context, observationID, imageID int64) error {
	_, err := c.do(ctx, call{
		method:   http.MethodPatch,
		path:     "/api2/observations",
		endpoint: "observations.add_images",
		form: url.Values{
			"id":         {formatID(observationID)},
			"add_images": {formatID(imageID)},
		},
	})
	return err
}

// AppendObservationNotes appends text to the observation's existing notes.
func (c *Client) AppendObservationNotes(ctx context.Context, observationID int64, text string) error {
	payload, err := c.fetchObservation(ctx, observationID)
	if err != nil {
		return err
	}
	notes := strings.TrimSpace(text)
	if current := notesText(payload.Notes); current != "" {
		notes = current + "\n\n" + notes
	}
	_, err = c.do(ctx, call{
		method:   http.MethodPatch,
		path:     "/api2/observations",
		endpoint: "observations.set_notes",
		form: url.Values{
			"id":        {formatID(observationID)},
			"set_notes": {notes},
		},
	})
	return err
}

// AddObservationToProject assigns an observation to a project.
func (c *Client) AddObservationToProject(ctx context.Context, observationID, projectID int64) error {
	_, err := c.do(ctx, call{
		method:   http.MethodPatch,
		path:     "/api2/observations",
		endpoint: "observations.add_to_project",
		form: url.Values{
			"id":             {formatID(observationID)},
			"add_to_project": {formatID(projectID)},
		},
	})
	return err
}

var _ reconcile.Lookup = (*Client)(nil)
