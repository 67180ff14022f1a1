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

// Command migrate applies the audit event schema to the configured
// postgres database. Only needed when AUDIT_BACKEND=postgres.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/classdeck/classdeck/internal/config"
	"github.com/classdeck/classdeck/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Audit.Database.Host,
		Port:         cfg.Audit.Database.Port,
		User:         cfg.Audit.Database.User,
		Password:     cfg.Audit.Database.Password,
		Database:     cfg.Audit.Database.Database,
		SSLMode:      cfg.Audit.Database.SSLMode,
		MaxOpenConns: cfg.Audit.Database.MaxOpenConns,
		MaxIdleConns: cfg.Audit.Database.MaxIdleConns,
	})
	if err != nil {
		fmt.Printf("Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Println("Applying audit schema...")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		fmt.Printf("Migration failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Migration successful.")
}
