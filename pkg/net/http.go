// Package net fetches remote artifacts such as precomputed heatmap stacks.
package net

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	maxIdleConns     = 10
	timeoutInSeconds = 60
	clientAgent      = "lstvscan"
)

// ErrorURLNotFound is returned when the server responds with 404.
var ErrorURLNotFound = errors.New("URL not found")

var (
	reqTransport = &http.Transport{
		MaxIdleConns:          maxIdleConns,
		IdleConnTimeout:       timeoutInSeconds * time.Second,
		DisableCompression:    false,
		DisableKeepAlives:     false,
		ResponseHeaderTimeout: time.Duration(timeoutInSeconds) * time.Second,
	}
)

// GetHTTPClient returns a client sharing the package transport.
func GetHTTPClient() *http.Client {
	return &http.Client{
		Timeout:   time.Duration(timeoutInSeconds) * time.Second,
		Transport: reqTransport,
	}
}

func getResp(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP Get request: %w", err)
	}
	req.Header.Set("User-Agent", clientAgent)

	resp, err := GetHTTPClient().Do(req) //nolint:gosec // URL is built from configured base
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp, nil
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrorURLNotFound, url)
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status (%d - %s): %s", resp.StatusCode, resp.Status, url)
	}
}

// GetJSON retrieves the HTTP content and decodes it into the passed target.
func GetJSON[T any](ctx context.Context, url string, target *T) error {
	resp, err := getResp(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("error decoding content: %w", err)
	}
	return nil
}

// Download saves the content at url to path.
func Download(ctx context.Context, url string, path string) (retErr error) {
	resp, err := getResp(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("closing file: %w", cerr)
		}
	}()

	if _, err = io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("error saving downloaded content to file: %w", err)
	}
	return nil
}
