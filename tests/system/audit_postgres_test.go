// Copyright 2026 The Classdeck Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package system

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classdeck/classdeck/internal/audit"
	"github.com/classdeck/classdeck/internal/store/postgres"
)

// Test Execution:
//
//	INTEGRATION_TEST=true go test -v ./tests/system/...
//
// Prerequisites:
//
//	docker compose up -d postgres
func auditTestDB(t *testing.T) *postgres.DB {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("set INTEGRATION_TEST=true to run postgres-backed tests")
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         getEnv("DB_HOST", "localhost"),
		Port:         getEnv("DB_PORT", "5432"),
		User:         getEnv("DB_USER", "classdeck"),
		Password:     getEnv("DB_PASSWORD", "classdeck"),
		Database:     getEnv("DB_NAME", "classdeck_test"),
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(ctx, postgres.InitialSchema))
	return db
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// TestPurpose: Validates persistence of gateway audit events into postgres.
// Scope: Integration Test (requires postgres)
// Expected: A logged event is durably stored with its type, tenant scope, and metadata.
// Test Case ID: AUD-01
func TestAuditRepository_Log(t *testing.T) {
	db := auditTestDB(t)
	repo := postgres.NewAuditRepository(db)
	ctx := context.Background()

	event := audit.Event{
		Type:      audit.TypeLoginSuccess,
		TenantID:  "t-sys-1",
		Subdomain: "escola-sys",
		ActorID:   "u-sys-1",
		Resource:  "session",
		Metadata:  map[string]any{"source": "system-test"},
		IPAddress: "192.0.2.10",
		UserAgent: "system-test/1.0",
	}
	repo.Log(ctx, event)

	var count int
	err := db.Pool().QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_events WHERE tenant_id = $1 AND event_type = $2`,
		"t-sys-1", audit.TypeLoginSuccess,
	).Scan(&count)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 1)
}

// TestPurpose: Validates the best-effort contract of the audit sink.
// Scope: Integration Test (requires postgres)
// Expected: Logging with a cancelled context does not panic or error out of the caller.
// Test Case ID: AUD-02
func TestAuditRepository_BestEffort(t *testing.T) {
	db := auditTestDB(t)
	repo := postgres.NewAuditRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NotPanics(t, func() {
		repo.Log(ctx, audit.Event{Type: audit.TypeLogout, Timestamp: time.Now()})
	})
}
