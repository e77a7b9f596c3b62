package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/medqueue/backend/internal/domain/entities"
	"github.com/medqueue/backend/internal/domain/repositories"
	tsclient "github.com/medqueue/backend/internal/infrastructure/clients/typesense"
)

// TypesenseAdapter implements hospital search using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

var _ repositories.HospitalSearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

func hospitalDocument(h *entities.Hospital) map[string]interface{} {
	return map[string]interface{}{
		"id":            h.ID,
		"name":          h.Name,
		"address":       h.Address,
		"city":          h.City,
		"type":          string(h.Summary().Type),
		"location":      []float64{h.Location.Lat, h.Location.Lng},
		"rating":        h.Rating,
		"total_ratings": h.TotalRatings,
	}
}

// Index upserts a hospital document
func (a *TypesenseAdapter) Index(ctx context.Context, hospital *entities.Hospital) error {
	_, err := a.client.Client().Collection(a.client.Collection()).Documents().
		Upsert(ctx, hospitalDocument(hospital))
	if err != nil {
		return fmt.Errorf("failed to index hospital %s: %w", hospital.ID, err)
	}
	return nil
}

// BulkIndex upserts every hospital, stopping at the first failure
func (a *TypesenseAdapter) BulkIndex(ctx context.Context, hospitals []*entities.Hospital) error {
	for _, h := range hospitals {
		if err := a.Index(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

// Search returns ids of matching hospitals
func (a *TypesenseAdapter) Search(ctx context.Context, params repositories.HospitalSearchParams) ([]string, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}

	q := strings.TrimSpace(params.Query)
	if q == "" {
		q = "*"
	}

	searchParams := &api.SearchCollectionParams{
		Q:       pointer.String(q),
		QueryBy: pointer.String("name,address,city"),
		PerPage: pointer.Int(limit),
	}
	if filter := buildFilter(params); filter != "" {
		searchParams.FilterBy = pointer.String(filter)
	}
	if params.Near != nil {
		searchParams.SortBy = pointer.String(fmt.Sprintf("location(%f, %f):asc", params.Near.Lat, params.Near.Lng))
	}

	result, err := a.client.Client().Collection(a.client.Collection()).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("failed to search hospitals: %w", err)
	}
	if result.Hits == nil {
		return []string{}, nil
	}

	ids := make([]string, 0, len(*result.Hits))
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		if id, ok := (*hit.Document)["id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func buildFilter(params repositories.HospitalSearchParams) string {
	var clauses []string
	if params.City != "" {
		clauses = append(clauses, fmt.Sprintf("city:=`%s`", params.City))
	}
	if params.Type != "" {
		clauses = append(clauses, fmt.Sprintf("type:=`%s`", params.Type))
	}
	if params.Near != nil && params.RadiusKm > 0 {
		clauses = append(clauses, fmt.Sprintf("location:(%f, %f, %f km)", params.Near.Lat, params.Near.Lng, params.RadiusKm))
	}
	return strings.Join(clauses, " && ")
}
