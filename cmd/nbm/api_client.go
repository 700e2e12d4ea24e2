package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nextbestmove/nbm/internal/planner"
	"github.com/spf13/viper"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// apiClient is the shared HTTP client with timeout.
var apiClient = &http.Client{
	Timeout: DefaultClientTimeout,
}

func apiAddr() string {
	return viper.GetString("api")
}

// apiGet performs a GET request to the API with timeout.
func apiGet(path string) ([]byte, error) {
	return apiDo(http.MethodGet, path, nil)
}

// apiPost performs a POST request to the API with timeout.
func apiPost(path string, data interface{}) ([]byte, error) {
	return apiDo(http.MethodPost, path, data)
}

// apiPut performs a PUT request to the API with timeout.
func apiPut(path string, data interface{}) ([]byte, error) {
	return apiDo(http.MethodPut, path, data)
}

// apiDelete performs a DELETE request to the API with timeout.
func apiDelete(path string) error {
	_, err := apiDo(http.MethodDelete, path, nil)
	return err
}

func apiDo(method, path string, data interface{}) ([]byte, error) {
	var reader io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, apiAddr()+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set(planner.UserHeader, viper.GetString("user"))
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := apiClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(bytes.TrimSpace(body)))
	}

	return body, nil
}

// apiJSON performs a request and decodes the JSON response into v.
func apiJSON(method, path string, data, v interface{}) error {
	body, err := apiDo(method, path, data)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// CheckHealth checks if the daemon is healthy and returns the health response.
// The parsed payload is returned alongside the error on non-200 responses.
func CheckHealth() (*planner.HealthResponse, error) {
	resp, err := apiClient.Get(apiAddr() + "/health")
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var health planner.HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, fmt.Errorf("failed to parse health response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &health, fmt.Errorf("health check failed (status %d): %s", resp.StatusCode, string(body))
	}

	return &health, nil
}
