package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultHTTPTimeout bounds each Realtime Database request.
const DefaultHTTPTimeout = 30 * time.Second

// FirebaseStore talks to a Firebase Realtime Database over its REST API.
// The auth token is a pre-issued ID token; signing in is done elsewhere.
type FirebaseStore struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewFirebaseStore creates a store for the database at baseURL
// (e.g. "https://my-db.firebaseio.com"). A nil client uses a client with
// DefaultHTTPTimeout.
func NewFirebaseStore(baseURL, token string, client *http.Client) (*FirebaseStore, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("NewFirebaseStore: database URL is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("NewFirebaseStore: invalid database URL %q: %w", baseURL, err)
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &FirebaseStore{baseURL: baseURL, token: token, client: client}, nil
}

func (s *FirebaseStore) collectionURL(collection string) string {
	u := s.baseURL + "/" + url.PathEscape(collection) + ".json"
	if s.token != "" {
		u += "?auth=" + url.QueryEscape(s.token)
	}
	return u
}

// Get reads the whole collection. A null document is an empty collection.
func (s *FirebaseStore) Get(ctx context.Context, collection string) (map[string]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.collectionURL(collection), nil)
	if err != nil {
		return nil, fmt.Errorf("Get: building request for %s: %w", collection, err)
	}

	body, err := s.do(req)
	if err != nil {
		return nil, fmt.Errorf("Get: %s: %w", collection, err)
	}

	if bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return map[string]Record{}, nil
	}

	records, err := decodeCollection(body)
	if err != nil {
		return nil, fmt.Errorf("Get: %s: %w", collection, err)
	}
	return records, nil
}

// Append pushes record to the collection and returns the generated key.
func (s *FirebaseStore) Append(ctx context.Context, collection string, record interface{}) (string, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("Append: encoding record for %s: %w", collection, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.collectionURL(collection), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("Append: building request for %s: %w", collection, err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := s.do(req)
	if err != nil {
		return "", fmt.Errorf("Append: %s: %w", collection, err)
	}

	var resp struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("Append: decoding push response for %s: %w", collection, err)
	}
	if resp.Name == "" {
		return "", fmt.Errorf("Append: push response for %s carries no id", collection)
	}
	return resp.Name, nil
}

func (s *FirebaseStore) do(req *http.Request) ([]byte, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return body, nil
}

var _ Store = (*FirebaseStore)(nil)
