// Package sync implements cursor-tracked backfill pulls across a vendor's
// resource types.
package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/healthsync/go-connectors/core"
)

const DefaultInitialLookback = 7 * 24 * time.Hour

// Fetcher is the outbound read path, satisfied by the core service.
type Fetcher interface {
	FetchVendorData(ctx context.Context, vendor core.Vendor, req core.FetchRequest) (core.FetchResponse, error)
}

// PullRequest describes one backfill run.
type PullRequest struct {
	Vendor        core.Vendor
	UserID        string
	ResourceTypes []string
	Since         *time.Time
	Limit         int
}

// Puller resolves the pull window from the stored cursor, fetches every
// requested resource type, and advances the cursor once at the end.
// Per-resource failures are captured in the result instead of aborting the
// run, so one failing endpoint cannot starve the others.
type Puller struct {
	Fetcher         Fetcher
	Registry        core.Registry
	Cursors         core.SyncCursorStore
	Logger          core.Logger
	InitialLookback time.Duration
	Now             func() time.Time
}

func NewPuller(fetcher Fetcher, registry core.Registry, cursors core.SyncCursorStore) *Puller {
	return &Puller{
		Fetcher:         fetcher,
		Registry:        registry,
		Cursors:         cursors,
		Logger:          glog.Ensure(nil),
		InitialLookback: DefaultInitialLookback,
		Now:             func() time.Time { return time.Now().UTC() },
	}
}

// Pull runs one backfill. An explicit Since forces a manual pull; otherwise
// an existing cursor makes the pull incremental from its last sync
// timestamp, and a missing cursor falls back to the initial lookback.
func (p *Puller) Pull(ctx context.Context, req PullRequest) (core.PullResult, error) {
	if p == nil || p.Fetcher == nil || p.Cursors == nil {
		return core.PullResult{}, fmt.Errorf("sync: puller requires fetcher and cursor store")
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return core.PullResult{}, core.NewBadInputError("user id is required")
	}

	vendor := core.NormalizeVendor(string(req.Vendor))
	resourceTypes := req.ResourceTypes
	if len(resourceTypes) == 0 {
		if p.Registry == nil {
			return core.PullResult{}, fmt.Errorf("sync: resource types or registry required")
		}
		connector, ok := p.Registry.Get(vendor)
		if !ok {
			return core.PullResult{}, fmt.Errorf("%w: %s", core.ErrConnectorNotFound, vendor)
		}
		resourceTypes = connector.ResourceTypes()
	}

	since, pullType, err := p.resolveWindow(ctx, vendor, userID, req.Since)
	if err != nil {
		return core.PullResult{}, err
	}

	now := p.now()
	result := core.PullResult{
		Vendor:   vendor,
		UserID:   userID,
		PullType: pullType,
		Since:    since,
		PulledAt: now,
	}

	lastResourceID := ""
	for _, resourceType := range resourceTypes {
		resourceType = strings.TrimSpace(resourceType)
		if resourceType == "" {
			continue
		}
		start := since
		resp, fetchErr := p.Fetcher.FetchVendorData(ctx, vendor, core.FetchRequest{
			UserID:       userID,
			ResourceType: resourceType,
			Start:        &start,
			End:          &now,
			Limit:        req.Limit,
		})
		if fetchErr != nil {
			p.Logger.Warn("resource pull failed",
				"vendor", vendor.String(),
				"user_id", userID,
				"resource_type", resourceType,
				"error", fetchErr.Error(),
			)
			result.Results = append(result.Results, core.ResourceResult{
				ResourceType: resourceType,
				Err:          fetchErr,
			})
			continue
		}
		result.TotalRecords += len(resp.Records)
		if id := lastRecordID(resp.Records); id != "" {
			lastResourceID = id
		}
		result.Results = append(result.Results, core.ResourceResult{
			ResourceType: resourceType,
			Records:      resp.Records,
		})
	}

	cursor, err := p.Cursors.AdvanceCursor(ctx, core.AdvanceCursorInput{
		Vendor:         vendor,
		UserID:         userID,
		LastSyncTS:     now,
		RecordsSynced:  result.TotalRecords,
		LastResourceID: lastResourceID,
	})
	if err != nil {
		return core.PullResult{}, err
	}
	result.Cursor = cursor
	return result, nil
}

func (p *Puller) resolveWindow(ctx context.Context, vendor core.Vendor, userID string, since *time.Time) (time.Time, core.PullType, error) {
	if since != nil && !since.IsZero() {
		return since.UTC(), core.PullTypeManual, nil
	}
	cursor, err := p.Cursors.GetCursor(ctx, vendor, userID)
	if err == nil && !cursor.LastSyncTS.IsZero() {
		return cursor.LastSyncTS.UTC(), core.PullTypeIncremental, nil
	}
	if err != nil && !errors.Is(err, core.ErrCursorNotFound) {
		return time.Time{}, "", err
	}
	lookback := p.InitialLookback
	if lookback <= 0 {
		lookback = DefaultInitialLookback
	}
	return p.now().Add(-lookback), core.PullTypeInitial, nil
}

func (p *Puller) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func lastRecordID(records []map[string]any) string {
	for i := len(records) - 1; i >= 0; i-- {
		for _, key := range []string{"id", "summaryId", "activityId", "sleepId"} {
			if value, ok := records[i][key]; ok && value != nil {
				if text := strings.TrimSpace(fmt.Sprint(value)); text != "" && text != "<nil>" {
					return text
				}
			}
		}
	}
	return ""
}
