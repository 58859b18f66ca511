package serverless

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/artpar/flexdeploy/internal/core/domain"
)

// =============================================================================
// Asset Operations
// =============================================================================

// Asset visibilities accepted by the upload endpoint.
const (
	VisibilityPublic    = "public"
	VisibilityProtected = "protected"
)

type assetRequest struct {
	FriendlyName string `json:"friendly_name"`
}

type assetResponse struct {
	Sid          string `json:"sid"`
	FriendlyName string `json:"friendly_name"`
}

type assetVersionResponse struct {
	Sid        string `json:"sid"`
	Path       string `json:"path"`
	Visibility string `json:"visibility"`
}

// Upload creates an asset named appName and uploads localPath as its first
// version, served at destinationURI.
func (c *Client) Upload(ctx context.Context, serviceSid, appName, destinationURI, localPath string, isPrivate bool) (domain.VersionRecord, error) {
	var asset assetResponse
	if err := c.postJSON(ctx, "create asset", c.serviceURL(serviceSid)+"/Assets", assetRequest{FriendlyName: appName}, &asset); err != nil {
		return domain.VersionRecord{}, err
	}

	visibility := VisibilityPublic
	if isPrivate {
		visibility = VisibilityProtected
	}

	body, contentType, err := multipartBody(localPath, destinationURI, visibility)
	if err != nil {
		return domain.VersionRecord{}, err
	}

	var version assetVersionResponse
	url := fmt.Sprintf("%s/v1/Services/%s/Assets/%s/Versions", c.uploadURL, serviceSid, asset.Sid)
	if err := c.do(ctx, "upload asset version", http.MethodPost, url, body, contentType, &version); err != nil {
		return domain.VersionRecord{}, err
	}

	c.logger.Debug("uploaded asset version",
		"asset_sid", asset.Sid,
		"version_sid", version.Sid,
		"path", version.Path,
		"visibility", visibility,
	)
	return domain.VersionRecord{Sid: version.Sid, Path: version.Path}, nil
}

func multipartBody(localPath, destinationURI, visibility string) (io.Reader, string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer file.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("Path", destinationURI); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("Visibility", visibility); err != nil {
		return nil, "", err
	}
	part, err := w.CreateFormFile("Content", filepath.Base(localPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("read %s: %w", localPath, err)
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
