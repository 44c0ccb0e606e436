package workflow

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/orderflow/core/pkg/shared/httpclient"
)

// HTTPBlobFetcher retrieves an uploaded spreadsheet from the blob_uri a
// start request carries, over plain HTTP(S) (the uploader's object
// store is expected to hand back a pre-signed GET url).
type HTTPBlobFetcher struct {
	client *http.Client
}

func NewHTTPBlobFetcher() *HTTPBlobFetcher {
	return &HTTPBlobFetcher{client: httpclient.NewClient(httpclient.DefaultClientConfig())}
}

func (f *HTTPBlobFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch blob %s: unexpected status %d", uri, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
