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

package postgres

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/classdeck/classdeck/internal/audit"
	"github.com/classdeck/classdeck/internal/observability/logger"
)

// AuditRepository persists audit events. Writes are best effort: a failed
// insert is logged and dropped rather than failing the request that
// produced the event.
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a postgres-backed audit logger.
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Log implements audit.Logger.
func (r *AuditRepository) Log(ctx context.Context, event audit.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	metadata := []byte("{}")
	if len(event.Metadata) > 0 {
		if b, err := json.Marshal(event.Metadata); err == nil {
			metadata = b
		}
	}

	_, err := r.db.pool.Exec(ctx,
		`INSERT INTO audit_events
		   (id, event_type, tenant_id, subdomain, actor_id, resource, ip_address, user_agent, metadata, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.NewString(),
		event.Type,
		event.TenantID,
		event.Subdomain,
		event.ActorID,
		event.Resource,
		event.IPAddress,
		event.UserAgent,
		metadata,
		event.Timestamp,
	)
	if err != nil {
		slog.ErrorContext(ctx, "failed to persist audit event",
			logger.Error(err),
			logger.String("audit_type", event.Type),
		)
	}
}
