/*
Copyright 2025 The Meridian Authors
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at
    http://www.apache.org/licenses/LICENSE-2.0
Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianerp/finance-core/metadata"
)

const (
	defaultTimeout = 20 * time.Second

	errMissingConnectionString = "missing connection string"
)

type pgMetadata struct {
	ConnectionString string        `json:"connectionString" mapstructure:"connectionString"`
	Timeout          time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxConns         int32         `json:"maxConns" mapstructure:"maxConns"`
	MinConns         int32         `json:"minConns" mapstructure:"minConns"`
}

func (m *pgMetadata) InitWithMetadata(meta metadata.Base) error {
	m.reset()

	err := metadata.DecodeMetadata(meta.Properties, &m)
	if err != nil {
		return err
	}

	if m.ConnectionString == "" {
		return errors.New(errMissingConnectionString)
	}
	if m.Timeout <= 0 {
		m.Timeout = defaultTimeout
	}

	return nil
}

func (m *pgMetadata) reset() {
	m.ConnectionString = ""
	m.Timeout = defaultTimeout
	m.MaxConns = 0
	m.MinConns = 0
}

// GetPgxPoolConfig returns the pgxpool.Config for the metadata.
func (m *pgMetadata) GetPgxPoolConfig() (*pgxpool.Config, error) {
	config, err := pgxpool.ParseConfig(m.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if m.MaxConns > 0 {
		config.MaxConns = m.MaxConns
	}
	if m.MinConns > 0 {
		config.MinConns = m.MinConns
	}
	return config, nil
}
