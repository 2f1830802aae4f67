package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/healthsync/go-connectors/core"
	connectormigrations "github.com/healthsync/go-connectors/migrations"
	"github.com/healthsync/go-connectors/ratelimit"
	sqlstore "github.com/healthsync/go-connectors/store/sql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-connectors-tests"
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	for _, table := range []string{
		"connector_tokens",
		"connector_sync_cursors",
		"connector_events",
		"connector_rate_limit_states",
	} {
		var tableName string
		if err := client.DB().NewRaw(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
			table,
		).Scan(context.Background(), &tableName); err != nil {
			t.Fatalf("query sqlite master for %s: %v", table, err)
		}
		if tableName != table {
			t.Fatalf("expected %s table, got %q", table, tableName)
		}
	}
}

func TestTokenStore_SaveReplaceRevokeAndTouch(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	tokenStore := factory.TokenStore()
	if tokenStore == nil {
		t.Fatalf("expected token store from factory")
	}

	expires := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	saved, err := tokenStore.SaveTokens(ctx, core.TokenRecord{
		Vendor: core.VendorGarmin,
		UserID: "usr_tokens",
		Tokens: core.OAuthTokens{
			AccessToken:  "at-1",
			RefreshToken: "rt-1",
			TokenType:    "bearer",
			ExpiresAt:    expires,
			Scopes:       []string{"wellness:read"},
		},
	})
	if err != nil {
		t.Fatalf("save tokens: %v", err)
	}
	if saved.Tokens.AccessToken != "at-1" || saved.CreatedAt.IsZero() {
		t.Fatalf("unexpected saved record: %+v", saved)
	}

	replaced, err := tokenStore.SaveTokens(ctx, core.TokenRecord{
		Vendor: core.VendorGarmin,
		UserID: "usr_tokens",
		Tokens: core.OAuthTokens{
			AccessToken:  "at-2",
			RefreshToken: "rt-2",
			TokenType:    "bearer",
		},
	})
	if err != nil {
		t.Fatalf("replace tokens: %v", err)
	}
	if replaced.Tokens.AccessToken != "at-2" {
		t.Fatalf("expected replacement access token, got %q", replaced.Tokens.AccessToken)
	}
	if !replaced.CreatedAt.Equal(saved.CreatedAt) {
		t.Fatalf("expected created_at preserved across replace: %v %v", replaced.CreatedAt, saved.CreatedAt)
	}

	var rowCount int
	if err := client.DB().NewRaw(
		"SELECT COUNT(*) FROM connector_tokens WHERE vendor = ? AND user_id = ?",
		string(core.VendorGarmin),
		"usr_tokens",
	).Scan(ctx, &rowCount); err != nil {
		t.Fatalf("count token rows: %v", err)
	}
	if rowCount != 1 {
		t.Fatalf("expected single row per vendor and user, got %d", rowCount)
	}

	pullAt := time.Now().UTC().Truncate(time.Second)
	if err := tokenStore.TouchLastPull(ctx, core.VendorGarmin, "usr_tokens", pullAt); err != nil {
		t.Fatalf("touch last pull: %v", err)
	}
	if err := tokenStore.TouchLastWebhook(ctx, core.VendorGarmin, "usr_tokens", pullAt); err != nil {
		t.Fatalf("touch last webhook: %v", err)
	}
	record, err := tokenStore.GetTokens(ctx, core.VendorGarmin, "usr_tokens")
	if err != nil {
		t.Fatalf("get tokens: %v", err)
	}
	if record.LastPullAt == nil || record.LastWebhookAt == nil {
		t.Fatalf("expected touch timestamps, got %+v", record)
	}

	if err := tokenStore.Revoke(ctx, core.VendorGarmin, "usr_tokens"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := tokenStore.GetTokens(ctx, core.VendorGarmin, "usr_tokens"); !errors.Is(err, core.ErrTokensNotFound) {
		t.Fatalf("expected tokens not found after revoke, got %v", err)
	}
	if err := tokenStore.Revoke(ctx, core.VendorGarmin, "usr_tokens"); !errors.Is(err, core.ErrTokensNotFound) {
		t.Fatalf("expected tokens not found on double revoke, got %v", err)
	}
}

func TestSyncCursorStore_AccumulatesAcrossAdvances(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	cursorStore, err := sqlstore.NewSyncCursorStore(client.DB())
	if err != nil {
		t.Fatalf("new sync cursor store: %v", err)
	}

	firstSync := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	first, err := cursorStore.AdvanceCursor(ctx, core.AdvanceCursorInput{
		Vendor:        core.VendorWhoop,
		UserID:        "usr_cursor",
		LastSyncTS:    firstSync,
		RecordsSynced: 4,
	})
	if err != nil {
		t.Fatalf("first advance: %v", err)
	}
	if first.RecordsSynced != 4 {
		t.Fatalf("expected initial total 4, got %d", first.RecordsSynced)
	}

	secondSync := time.Now().UTC().Truncate(time.Second)
	second, err := cursorStore.AdvanceCursor(ctx, core.AdvanceCursorInput{
		Vendor:         core.VendorWhoop,
		UserID:         "usr_cursor",
		LastSyncTS:     secondSync,
		RecordsSynced:  6,
		LastResourceID: "cycle-42",
	})
	if err != nil {
		t.Fatalf("second advance: %v", err)
	}
	if second.RecordsSynced != 10 {
		t.Fatalf("expected accumulated total 10, got %d", second.RecordsSynced)
	}
	if second.LastResourceID != "cycle-42" {
		t.Fatalf("expected last resource id, got %q", second.LastResourceID)
	}

	loaded, err := cursorStore.GetCursor(ctx, core.VendorWhoop, "usr_cursor")
	if err != nil {
		t.Fatalf("get cursor: %v", err)
	}
	if !loaded.LastSyncTS.Equal(secondSync) {
		t.Fatalf("expected persisted sync timestamp %v, got %v", secondSync, loaded.LastSyncTS)
	}

	if err := cursorStore.ResetCursor(ctx, core.VendorWhoop, "usr_cursor"); err != nil {
		t.Fatalf("reset cursor: %v", err)
	}
	if _, err := cursorStore.GetCursor(ctx, core.VendorWhoop, "usr_cursor"); !errors.Is(err, core.ErrCursorNotFound) {
		t.Fatalf("expected cursor not found after reset, got %v", err)
	}
}

func TestEventStore_EnqueueDequeueAndDispatchLedger(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	eventStore, err := sqlstore.NewEventStore(client.DB())
	if err != nil {
		t.Fatalf("new event store: %v", err)
	}

	older := time.Now().UTC().Add(-2 * time.Minute).Truncate(time.Second)
	firstID, err := eventStore.Enqueue(ctx, core.NormalizedEvent{
		Vendor:     core.VendorGarmin,
		UserID:     "usr_events",
		EventType:  "daily.updated",
		ResourceID: "summary-1",
		TraceID:    "summary-1",
		RawPayload: map[string]any{"summaryId": "summary-1"},
		ReceivedAt: older,
	})
	if err != nil {
		t.Fatalf("enqueue first event: %v", err)
	}
	secondID, err := eventStore.Enqueue(ctx, core.NormalizedEvent{
		Vendor:    core.VendorWhoop,
		UserID:    "usr_events",
		EventType: "recovery.updated",
		TraceID:   "rec-1",
	})
	if err != nil {
		t.Fatalf("enqueue second event: %v", err)
	}

	events, messageIDs, err := eventStore.DequeuePending(ctx, 10)
	if err != nil {
		t.Fatalf("dequeue pending: %v", err)
	}
	if len(events) != 2 || len(messageIDs) != 2 {
		t.Fatalf("expected two pending events, got %d", len(events))
	}
	if messageIDs[0] != firstID || messageIDs[1] != secondID {
		t.Fatalf("expected oldest-first order, got %v", messageIDs)
	}
	if events[0].RawPayload["summaryId"] != "summary-1" {
		t.Fatalf("expected raw payload round trip, got %v", events[0].RawPayload)
	}

	if err := eventStore.MarkDispatched(ctx, firstID); err != nil {
		t.Fatalf("mark dispatched: %v", err)
	}
	if err := eventStore.MarkDispatched(ctx, firstID); err == nil {
		t.Fatalf("expected second dispatch of same message to fail")
	}

	remaining, _, err := eventStore.DequeuePending(ctx, 10)
	if err != nil {
		t.Fatalf("dequeue after dispatch: %v", err)
	}
	if len(remaining) != 1 || remaining[0].EventType != "recovery.updated" {
		t.Fatalf("expected one pending event left, got %v", remaining)
	}
}

func TestRateLimitStateStore_RoundTripWithPolicyBookkeeping(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	stateStore, err := sqlstore.NewRateLimitStateStore(client.DB())
	if err != nil {
		t.Fatalf("new rate-limit state store: %v", err)
	}

	if _, err := stateStore.Get(ctx, core.VendorGarmin); !errors.Is(err, ratelimit.ErrStateNotFound) {
		t.Fatalf("expected state not found before upsert, got %v", err)
	}

	resetAt := time.Now().UTC().Add(10 * time.Minute).Truncate(time.Second)
	throttledUntil := time.Now().UTC().Add(30 * time.Second).Truncate(time.Second)
	retryAfter := 30 * time.Second
	if err := stateStore.Upsert(ctx, ratelimit.State{
		Vendor:         core.VendorGarmin,
		Limit:          100,
		Remaining:      0,
		ResetAt:        &resetAt,
		RetryAfter:     &retryAfter,
		Attempts:       3,
		LastStatus:     429,
		ThrottledUntil: &throttledUntil,
		UpdatedAt:      time.Now().UTC().Truncate(time.Second),
		Metadata:       map[string]any{"source": "integration-test"},
	}); err != nil {
		t.Fatalf("upsert state: %v", err)
	}

	state, err := stateStore.Get(ctx, core.VendorGarmin)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.Limit != 100 || state.Remaining != 0 {
		t.Fatalf("unexpected counters: %+v", state)
	}
	if state.Attempts != 3 || state.LastStatus != 429 {
		t.Fatalf("expected policy bookkeeping restored, got attempts=%d status=%d", state.Attempts, state.LastStatus)
	}
	if state.ThrottledUntil == nil || !state.ThrottledUntil.Equal(throttledUntil) {
		t.Fatalf("expected throttled-until round trip, got %v", state.ThrottledUntil)
	}
	if state.RetryAfter == nil || *state.RetryAfter != retryAfter {
		t.Fatalf("expected retry-after round trip, got %v", state.RetryAfter)
	}
	if state.Metadata["source"] != "integration-test" {
		t.Fatalf("expected caller metadata preserved, got %v", state.Metadata)
	}
	if _, leak := state.Metadata["_attempts"]; leak {
		t.Fatalf("expected bookkeeping keys stripped from metadata")
	}

	// Recovery clears the throttle markers instead of accumulating them.
	if err := stateStore.Upsert(ctx, ratelimit.State{
		Vendor:    core.VendorGarmin,
		Limit:     100,
		Remaining: 99,
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}); err != nil {
		t.Fatalf("upsert recovered state: %v", err)
	}
	recovered, err := stateStore.Get(ctx, core.VendorGarmin)
	if err != nil {
		t.Fatalf("get recovered state: %v", err)
	}
	if recovered.Attempts != 0 || recovered.ThrottledUntil != nil {
		t.Fatalf("expected cleared throttle markers, got %+v", recovered)
	}

	var rowCount int
	if err := client.DB().NewRaw(
		"SELECT COUNT(*) FROM connector_rate_limit_states WHERE vendor = ?",
		string(core.VendorGarmin),
	).Scan(ctx, &rowCount); err != nil {
		t.Fatalf("count state rows: %v", err)
	}
	if rowCount != 1 {
		t.Fatalf("expected single state row per vendor, got %d", rowCount)
	}
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:connectors-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = connectormigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != connectormigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, connectormigrations.WithValidationTargets(connectormigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}
