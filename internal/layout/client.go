package layout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// VersionHeader carries the caller's last-known draft version on saves.
const VersionHeader = "X-Layout-Version"

// ActivationSummary reports what an activation touched.
type ActivationSummary struct {
	TableCount        int `json:"tableCount"`
	ZoneCount         int `json:"zoneCount"`
	TablesInitialized int `json:"tablesInitialized"`
}

// ActivationResult is the successful response of the activation endpoint.
type ActivationResult struct {
	Version     int64             `json:"version"`
	ActivatedAt time.Time         `json:"activatedAt"`
	Summary     ActivationSummary `json:"summary"`
}

// Client is the persistence boundary of the store: draft load/save plus the
// activation request. The server behind it is the sole authority for
// version arbitration.
type Client interface {
	LoadDraft(ctx context.Context, floorID FloorID) (Document, int64, error)
	SaveDraft(ctx context.Context, floorID FloorID, doc Document, version int64) (int64, error)
	Activate(ctx context.Context, floorID FloorID, expectVersion int64) (ActivationResult, error)
}

// APIError is a structured error response from the layout API.
type APIError struct {
	Status         int
	Code           string
	Message        string
	CurrentVersion int64
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

// IsStaleVersion reports whether err is a version conflict and, if so,
// returns the server's current version.
func IsStaleVersion(err error) (int64, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == "STALE_VERSION" {
		return apiErr.CurrentVersion, true
	}
	return 0, false
}

// HTTPClient talks to the layout API over HTTP.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewHTTPClient constructs a client for the given API base URL. The token is
// sent as a bearer credential when non-empty.
func NewHTTPClient(baseURL, token string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPClient{baseURL: baseURL, token: token, http: httpClient}
}

type draftResponsePayload struct {
	Layout  Document `json:"layout"`
	Version int64    `json:"version"`
}

type saveDraftRequestPayload struct {
	FloorID string   `json:"floorId"`
	Layout  Document `json:"layout"`
}

type activateRequestPayload struct {
	FloorID       string `json:"floorId"`
	ExpectVersion int64  `json:"expectVersion"`
}

type errorResponsePayload struct {
	Error          string `json:"error"`
	Message        string `json:"message"`
	CurrentVersion int64  `json:"currentVersion"`
}

// LoadDraft fetches the floor's saved draft and its version.
func (c *HTTPClient) LoadDraft(ctx context.Context, floorID FloorID) (Document, int64, error) {
	endpoint := c.baseURL + "/floor/layout/draft?floorId=" + url.QueryEscape(floorID.String())
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return Document{}, 0, err
	}

	var payload draftResponsePayload
	if err := c.do(request, http.StatusOK, &payload); err != nil {
		return Document{}, 0, err
	}
	return payload.Layout, payload.Version, nil
}

// SaveDraft persists the document as the floor's draft and returns the new
// version. The last-known version travels in the version header so the
// server can reject stale editors.
func (c *HTTPClient) SaveDraft(ctx context.Context, floorID FloorID, doc Document, version int64) (int64, error) {
	body, err := json.Marshal(saveDraftRequestPayload{FloorID: floorID.String(), Layout: doc})
	if err != nil {
		return 0, err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/floor/layout/draft", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set(VersionHeader, strconv.FormatInt(version, 10))

	var payload draftResponsePayload
	if err := c.do(request, http.StatusOK, &payload); err != nil {
		return 0, err
	}
	return payload.Version, nil
}

// Activate requests promotion of the floor's draft at the expected version.
func (c *HTTPClient) Activate(ctx context.Context, floorID FloorID, expectVersion int64) (ActivationResult, error) {
	body, err := json.Marshal(activateRequestPayload{FloorID: floorID.String(), ExpectVersion: expectVersion})
	if err != nil {
		return ActivationResult{}, err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/floor/layout/activate", bytes.NewReader(body))
	if err != nil {
		return ActivationResult{}, err
	}
	request.Header.Set("Content-Type", "application/json")

	var payload ActivationResult
	if err := c.do(request, http.StatusOK, &payload); err != nil {
		return ActivationResult{}, err
	}
	return payload, nil
}

func (c *HTTPClient) do(request *http.Request, expectStatus int, out any) error {
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}

	response, err := c.http.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}

	if response.StatusCode != expectStatus {
		apiErr := &APIError{Status: response.StatusCode, Code: "INTERNAL_ERROR"}
		var payload errorResponsePayload
		if unmarshalErr := json.Unmarshal(data, &payload); unmarshalErr == nil && payload.Error != "" {
			apiErr.Code = payload.Error
			apiErr.Message = payload.Message
			apiErr.CurrentVersion = payload.CurrentVersion
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
