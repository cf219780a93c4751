package usecase

import (
	"context"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/trebuchet-org/treb-release/internal/domain/models"
)

// ListReleasesParams contains parameters for listing releases
type ListReleasesParams struct {
	Network      string
	ContractType string // empty lists every type
	Tag          string // case-insensitive filter, empty lists all
}

// ReleaseGroup is the history of one contract type, oldest first
type ReleaseGroup struct {
	ContractType string                    `json:"contractType"`
	Records      []models.DeploymentRecord `json:"records"`
}

// ReleaseListResult contains the registry view for one network
type ReleaseListResult struct {
	Network string         `json:"network"`
	Groups  []ReleaseGroup `json:"groups"`
	Total   int            `json:"total"`
}

// ListReleases reads the deployment registry of a network. It needs no RPC
// access.
type ListReleases struct {
	store RecordStore
	sink  ProgressSink
}

// NewListReleases creates a new ListReleases use case
func NewListReleases(store RecordStore, sink ProgressSink) *ListReleases {
	return &ListReleases{
		store: store,
		sink:  sink,
	}
}

// Run executes the list releases use case
func (uc *ListReleases) Run(ctx context.Context, params ListReleasesParams) (*ReleaseListResult, error) {
	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "loading",
		Message: "Loading releases from registry",
		Spinner: true,
	})

	registry, err := uc.store.Load(ctx, params.Network)
	if err != nil {
		return nil, err
	}

	types := make([]string, 0, len(registry))
	for contractType := range registry {
		if params.ContractType == "" || contractType == params.ContractType {
			types = append(types, contractType)
		}
	}
	sort.Strings(types)

	result := &ReleaseListResult{Network: params.Network, Groups: []ReleaseGroup{}}
	for _, contractType := range types {
		records := registry.Records(contractType)
		if params.Tag != "" {
			records = filterByTag(records, params.Tag)
		}
		if len(records) == 0 {
			continue
		}
		result.Groups = append(result.Groups, ReleaseGroup{ContractType: contractType, Records: records})
		result.Total += len(records)
	}

	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "complete",
		Current: result.Total,
		Total:   result.Total,
		Message: "Releases loaded",
	})
	return result, nil
}

func filterByTag(records []models.DeploymentRecord, tag string) []models.DeploymentRecord {
	return lo.Filter(records, func(r models.DeploymentRecord, _ int) bool {
		return strings.EqualFold(r.DisplayTag(), tag)
	})
}
