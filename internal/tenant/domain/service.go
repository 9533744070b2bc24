package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/tenantdesk/pkg/db/pagination"
)

type OnboardRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type ListTenantRequest struct {
	PageToken string
	PageSize  int32
	Tier      string
}

type ListTenantFilter struct {
	Tier string
}

type ListTenantResponse struct {
	pagination.PageInfo
	Tenants []Tenant `json:"tenants"`
}

type Service interface {
	// Onboard creates a tenant on the trial tier.
	Onboard(ctx context.Context, req OnboardRequest) (Tenant, error)
	Get(ctx context.Context, id string) (Tenant, error)
	List(ctx context.Context, req ListTenantRequest) (ListTenantResponse, error)
}

var (
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidSlug    = errors.New("invalid_slug")
	ErrInvalidID      = errors.New("invalid_id")
	ErrSlugTaken      = errors.New("slug_taken")
	ErrTenantNotFound = errors.New("tenant_not_found")
)
