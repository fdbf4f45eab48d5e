package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kailua-zk/kailua-go/backend"
	"github.com/kailua-zk/kailua-go/kerrors"
)

// bonsaiClient implements backend.SessionClient against a Bonsai-shaped
// REST API: GET /images/upload/{id} and GET /{inputs,receipts}/upload return
// a presigned URL the bytes are then PUT to; POST /sessions/create,
// GET /sessions/status/{id}, POST /sessions/snark/{id}.
type bonsaiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newBonsaiClient(baseURL, apiKey string) *bonsaiClient {
	return &bonsaiClient{baseURL: baseURL, apiKey: apiKey, http: &http.Client{}}
}

func (b *bonsaiClient) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return kerrors.Wrap(kerrors.RpcUnavailable, "build bonsai request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("x-api-key", b.apiKey)
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return kerrors.Wrap(kerrors.RpcUnavailable, "bonsai request "+path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return kerrors.Wrap(kerrors.RpcUnavailable, "read bonsai response", err)
	}
	if resp.StatusCode >= 300 {
		return kerrors.New(kerrors.RpcUnavailable, fmt.Sprintf("bonsai %s returned %d: %s", path, resp.StatusCode, payload))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return kerrors.Wrap(kerrors.RpcUnavailable, "decode bonsai response", err)
	}
	return nil
}

func (b *bonsaiClient) UploadImage(ctx context.Context, imageIDHex string, image []byte) error {
	var uploadURL struct {
		URL string `json:"url"`
	}
	if err := b.do(ctx, http.MethodGet, "/images/upload/"+imageIDHex, nil, &uploadURL); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL.URL, bytes.NewReader(image))
	if err != nil {
		return kerrors.Wrap(kerrors.RpcUnavailable, "build image put request", err)
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return kerrors.Wrap(kerrors.RpcUnavailable, "put image", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return kerrors.New(kerrors.RpcUnavailable, fmt.Sprintf("image upload returned %d", resp.StatusCode))
	}
	return nil
}

func (b *bonsaiClient) upload(ctx context.Context, kind string, data []byte) (string, error) {
	var uploadURL struct {
		URL string `json:"url"`
		ID  string `json:"uuid"`
	}
	if err := b.do(ctx, http.MethodGet, "/"+kind+"/upload", nil, &uploadURL); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL.URL, bytes.NewReader(data))
	if err != nil {
		return "", kerrors.Wrap(kerrors.RpcUnavailable, "build "+kind+" put request", err)
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return "", kerrors.Wrap(kerrors.RpcUnavailable, "put "+kind, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", kerrors.New(kerrors.RpcUnavailable, fmt.Sprintf("%s upload returned %d", kind, resp.StatusCode))
	}
	return uploadURL.ID, nil
}

func (b *bonsaiClient) UploadInput(ctx context.Context, input []byte) (string, error) {
	return b.upload(ctx, "inputs", input)
}

func (b *bonsaiClient) UploadReceipt(ctx context.Context, receipt []byte) (string, error) {
	return b.upload(ctx, "receipts", receipt)
}

func (b *bonsaiClient) CreateSession(ctx context.Context, imageIDHex, inputID string, assumptionReceiptIDs []string) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"img":         imageIDHex,
		"input":       inputID,
		"assumptions": assumptionReceiptIDs,
	})
	if err != nil {
		return "", kerrors.Wrap(kerrors.OtherError, "encode session create body", err)
	}
	var out struct {
		UUID string `json:"uuid"`
	}
	if err := b.do(ctx, http.MethodPost, "/sessions/create", body, &out); err != nil {
		return "", err
	}
	return out.UUID, nil
}

func (b *bonsaiClient) SessionStatus(ctx context.Context, sessionID string) (status backend.SessionStatus, err error) {
	var out struct {
		Status       string `json:"status"`
		ReceiptURL   string `json:"receipt_url"`
		ErrorMessage string `json:"error_msg"`
	}
	if err = b.do(ctx, http.MethodGet, "/sessions/status/"+sessionID, nil, &out); err != nil {
		return status, err
	}
	status.Status = out.Status
	status.ReceiptURL = out.ReceiptURL
	status.ErrorMsg = out.ErrorMessage
	return status, nil
}

func (b *bonsaiClient) CreateSnarkSession(ctx context.Context, sessionID string) (string, error) {
	var out struct {
		UUID string `json:"uuid"`
	}
	if err := b.do(ctx, http.MethodPost, "/sessions/snark/"+sessionID, nil, &out); err != nil {
		return "", err
	}
	return out.UUID, nil
}

func (b *bonsaiClient) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.RpcUnavailable, "build download request", err)
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.RpcUnavailable, "download receipt", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.RpcUnavailable, "read downloaded receipt", err)
	}
	return data, nil
}
