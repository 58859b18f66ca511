package serverless

import (
	"context"
	"fmt"
	"time"

	"github.com/artpar/flexdeploy/internal/core/domain"
)

// =============================================================================
// Build Operations
// =============================================================================

// Build statuses reported by the remote API.
const (
	BuildStatusBuilding  = "building"
	BuildStatusCompleted = "completed"
	BuildStatusFailed    = "failed"
)

type buildStatusResponse struct {
	Sid    string `json:"sid"`
	Status string `json:"status"`
}

type deploymentRequest struct {
	BuildSid string `json:"build_sid"`
}

type deploymentResponse struct {
	Sid      string `json:"sid"`
	BuildSid string `json:"build_sid"`
}

// CreateBuild submits a new build and waits until the remote side finishes
// building it.
func (c *Client) CreateBuild(ctx context.Context, serviceSid string, data domain.BuildData) (string, error) {
	var created buildStatusResponse
	if err := c.postJSON(ctx, "create build", c.serviceURL(serviceSid)+"/Builds", data, &created); err != nil {
		return "", err
	}

	c.logger.Info("build created",
		"build_sid", created.Sid,
		"asset_versions", len(data.AssetVersionSids),
		"function_versions", len(data.FunctionVersionSids),
	)

	if created.Status == BuildStatusCompleted {
		return created.Sid, nil
	}
	if err := c.WaitForBuild(ctx, serviceSid, created.Sid); err != nil {
		return "", err
	}
	return created.Sid, nil
}

// WaitForBuild polls the build status until it completes, fails, or the poll
// timeout elapses.
func (c *Client) WaitForBuild(ctx context.Context, serviceSid, buildSid string) error {
	deadline := time.Now().Add(c.pollTimeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		var status buildStatusResponse
		url := c.serviceURL(serviceSid) + "/Builds/" + buildSid + "/Status"
		if err := c.getJSON(ctx, "get build status", url, &status); err != nil {
			return err
		}

		switch status.Status {
		case BuildStatusCompleted:
			return nil
		case BuildStatusFailed:
			return fmt.Errorf("build %s: %w", buildSid, ErrBuildFailed)
		}

		c.logger.Debug("waiting for build", "build_sid", buildSid, "status", status.Status)

		if time.Now().After(deadline) {
			return fmt.Errorf("build %s still %q after %s", buildSid, status.Status, c.pollTimeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// CreateDeployment points the environment at the given build.
func (c *Client) CreateDeployment(ctx context.Context, serviceSid, environmentSid, buildSid string) (string, error) {
	var result deploymentResponse
	url := c.serviceURL(serviceSid) + "/Environments/" + environmentSid + "/Deployments"
	if err := c.postJSON(ctx, "create deployment", url, deploymentRequest{BuildSid: buildSid}, &result); err != nil {
		return "", err
	}

	c.logger.Info("deployment created",
		"deployment_sid", result.Sid,
		"environment_sid", environmentSid,
		"build_sid", buildSid,
	)
	return result.Sid, nil
}
