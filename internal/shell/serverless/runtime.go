package serverless

import (
	"context"
	"fmt"

	"github.com/artpar/flexdeploy/internal/core/domain"
)

// =============================================================================
// Wire Types
// =============================================================================

type serviceResource struct {
	Sid        string `json:"sid"`
	AccountSid string `json:"account_sid"`
	UniqueName string `json:"unique_name"`
}

type servicesResponse struct {
	Services []serviceResource `json:"services"`
}

type environmentResource struct {
	Sid        string `json:"sid"`
	UniqueName string `json:"unique_name"`
	DomainName string `json:"domain_name"`
	BuildSid   string `json:"build_sid"`
}

type environmentsResponse struct {
	Environments []environmentResource `json:"environments"`
}

type versionResource struct {
	Sid  string `json:"sid"`
	Path string `json:"path"`
}

type buildResource struct {
	Sid              string              `json:"sid"`
	Status           string              `json:"status"`
	AssetVersions    []versionResource   `json:"asset_versions"`
	FunctionVersions []versionResource   `json:"function_versions"`
	Dependencies     []domain.Dependency `json:"dependencies"`
}

func (b buildResource) toDomain() *domain.Build {
	build := &domain.Build{
		Sid:              b.Sid,
		AssetVersions:    make([]domain.VersionRecord, 0, len(b.AssetVersions)),
		FunctionVersions: make([]domain.VersionRecord, 0, len(b.FunctionVersions)),
		Dependencies:     b.Dependencies,
	}
	for _, v := range b.AssetVersions {
		build.AssetVersions = append(build.AssetVersions, domain.VersionRecord{Sid: v.Sid, Path: v.Path})
	}
	for _, v := range b.FunctionVersions {
		build.FunctionVersions = append(build.FunctionVersions, domain.VersionRecord{Sid: v.Sid, Path: v.Path})
	}
	return build
}

// =============================================================================
// Runtime Discovery
// =============================================================================

// GetService finds the plugin service by its unique name. A missing service
// yields an error matching domain.ErrNotFound.
func (c *Client) GetService(ctx context.Context) (*domain.Service, error) {
	var result servicesResponse
	if err := c.getJSON(ctx, "list services", c.baseURL+"/v1/Services", &result); err != nil {
		return nil, err
	}

	for _, s := range result.Services {
		if s.UniqueName == c.serviceName {
			return &domain.Service{
				Sid:        s.Sid,
				AccountSid: s.AccountSid,
				UniqueName: s.UniqueName,
			}, nil
		}
	}

	return nil, fmt.Errorf("service %q: %w", c.serviceName, domain.ErrNotFound)
}

// GetEnvironment returns the service's first environment, or nil if the
// service has none.
func (c *Client) GetEnvironment(ctx context.Context, serviceSid string) (*domain.Environment, error) {
	var result environmentsResponse
	if err := c.getJSON(ctx, "list environments", c.serviceURL(serviceSid)+"/Environments", &result); err != nil {
		return nil, err
	}
	if len(result.Environments) == 0 {
		return nil, nil
	}

	env := result.Environments[0]
	return &domain.Environment{
		Sid:        env.Sid,
		DomainName: env.DomainName,
		BuildSid:   env.BuildSid,
	}, nil
}

// GetBuild fetches a build by sid.
func (c *Client) GetBuild(ctx context.Context, serviceSid, buildSid string) (*domain.Build, error) {
	var result buildResource
	if err := c.getJSON(ctx, "get build", c.serviceURL(serviceSid)+"/Builds/"+buildSid, &result); err != nil {
		return nil, err
	}
	return result.toDomain(), nil
}

// GetRuntime fetches a fresh snapshot of service, environment and build.
// Environment and Build are nil when they do not exist yet.
func (c *Client) GetRuntime(ctx context.Context) (domain.Runtime, error) {
	service, err := c.GetService(ctx)
	if err != nil {
		return domain.Runtime{}, err
	}
	rt := domain.Runtime{Service: *service}

	env, err := c.GetEnvironment(ctx, service.Sid)
	if err != nil {
		return domain.Runtime{}, err
	}
	if env == nil {
		return rt, nil
	}
	rt.Environment = env

	if env.BuildSid == "" {
		return rt, nil
	}
	build, err := c.GetBuild(ctx, service.Sid, env.BuildSid)
	if err != nil {
		return domain.Runtime{}, err
	}
	rt.Build = build

	c.logger.Debug("fetched runtime",
		"service_sid", service.Sid,
		"environment_sid", env.Sid,
		"build_sid", build.Sid,
		"asset_versions", len(build.AssetVersions),
	)
	return rt, nil
}
