package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeployRecord is a completed deploy as kept in the local ledger.
type DeployRecord struct {
	ID             string    `json:"id" yaml:"id"`
	Plugin         string    `json:"plugin" yaml:"plugin"`
	Version        string    `json:"version" yaml:"version"`
	ServiceSid     string    `json:"service_sid" yaml:"service_sid"`
	EnvironmentSid string    `json:"environment_sid" yaml:"environment_sid"`
	AccountSid     string    `json:"account_sid" yaml:"account_sid"`
	DomainName     string    `json:"domain_name" yaml:"domain_name"`
	PluginURL      string    `json:"plugin_url" yaml:"plugin_url"`
	IsPublic       bool      `json:"is_public" yaml:"is_public"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
}

// NewDeployRecord builds a ledger record for a finished deploy.
func NewDeployRecord(plugin string, result DeployResult, now time.Time) DeployRecord {
	return DeployRecord{
		ID:             uuid.New().String(),
		Plugin:         plugin,
		Version:        result.NextVersion,
		ServiceSid:     result.ServiceSid,
		EnvironmentSid: result.EnvironmentSid,
		AccountSid:     result.AccountSid,
		DomainName:     result.DomainName,
		PluginURL:      result.PluginURL,
		IsPublic:       result.IsPublic,
		CreatedAt:      now.UTC(),
	}
}
