// Copyright (C) 2025 aicollab-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package config provides configuration management for the platform daemon.
package config

import "time"

// Config is the root configuration structure for cmd/agentd.
type Config struct {
	EntityID string      `yaml:"entity_id" json:"entity_id"`
	Listen   ListenConfig `yaml:"listen" json:"listen"`
	DataDir  string      `yaml:"data_dir" json:"data_dir"`

	JWT       JWTConfig       `yaml:"jwt" json:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" json:"cors"`

	Session   SessionConfig   `yaml:"session" json:"session"`
	Message   MessageConfig   `yaml:"message" json:"message"`
	Relay     RelayConfig     `yaml:"relay" json:"relay"`
	DHT       DHTConfig       `yaml:"dht" json:"dht"`

	Postgres PostgresConfig `yaml:"postgres" json:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite" json:"sqlite"`

	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ListenConfig is the HTTP bind address.
type ListenConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// JWTConfig configures bearer-token authentication.
type JWTConfig struct {
	Secret string        `yaml:"secret" json:"secret"`
	Issuer string        `yaml:"issuer" json:"issuer"`
	TTL    time.Duration `yaml:"ttl" json:"ttl"`
}

// RateLimitConfig bounds per-peer request rates (relay and HTTP ingress).
type RateLimitConfig struct {
	MessagesPerMinute int `yaml:"messages_per_minute" json:"messages_per_minute"`
}

// CORSConfig configures allowed browser origins for the marketplace API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
}

// SessionConfig tunes session lifetime and cleanup cadence.
type SessionConfig struct {
	TTL             time.Duration `yaml:"ttl" json:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
	MaxSequenceGap  int           `yaml:"max_sequence_gap" json:"max_sequence_gap"`
}

// MessageConfig tunes wire-protocol thresholds.
type MessageConfig struct {
	ClockSkew        time.Duration `yaml:"clock_skew" json:"clock_skew"`
	NonceCapacity    int           `yaml:"nonce_capacity" json:"nonce_capacity"`
	ChunkThreshold   int           `yaml:"chunk_threshold" json:"chunk_threshold"`
	ChunkSize        int           `yaml:"chunk_size" json:"chunk_size"`
	MaxMessageBytes  int           `yaml:"max_message_bytes" json:"max_message_bytes"`
	TransferTTL      time.Duration `yaml:"transfer_ttl" json:"transfer_ttl"`
	TransferGCPeriod time.Duration `yaml:"transfer_gc_period" json:"transfer_gc_period"`
}

// RelayConfig configures the NAT-traversal relay client/server.
type RelayConfig struct {
	Endpoints        []string      `yaml:"endpoints" json:"endpoints"`
	HeartbeatPeriod  time.Duration `yaml:"heartbeat_period" json:"heartbeat_period"`
	StaleAfter       time.Duration `yaml:"stale_after" json:"stale_after"`
	MessageTTL       time.Duration `yaml:"message_ttl" json:"message_ttl"`
	MaxHops          int           `yaml:"max_hops" json:"max_hops"`
	QueueCapacity    int           `yaml:"queue_capacity" json:"queue_capacity"`
}

// DHTConfig configures the Kademlia overlay.
type DHTConfig struct {
	Bootstrap      []string      `yaml:"bootstrap" json:"bootstrap"`
	ListenUDP      string        `yaml:"listen_udp" json:"listen_udp"`
	K              int           `yaml:"k" json:"k"`
	Alpha          int           `yaml:"alpha" json:"alpha"`
	ValueTTL       time.Duration `yaml:"value_ttl" json:"value_ttl"`
	RepublishEvery time.Duration `yaml:"republish_every" json:"republish_every"`
}

// PostgresConfig is optional; when DSN is empty the in-memory store is used.
type PostgresConfig struct {
	DSN string `yaml:"dsn" json:"dsn"`
}

// SQLiteConfig points at the offline message queue database.
type SQLiteConfig struct {
	Path string `yaml:"path" json:"path"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Defaults returns a Config populated with the spec's stated defaults.
func Defaults() *Config {
	return &Config{
		Listen:  ListenConfig{Host: "0.0.0.0", Port: 8443},
		DataDir: "./data",
		JWT: JWTConfig{
			Issuer: "aicollab-platform",
			TTL:    time.Hour,
		},
		RateLimit: RateLimitConfig{MessagesPerMinute: 100},
		Session: SessionConfig{
			TTL:             time.Hour,
			CleanupInterval: 5 * time.Minute,
			MaxSequenceGap:  100,
		},
		Message: MessageConfig{
			ClockSkew:        300 * time.Second,
			NonceCapacity:    1000,
			ChunkThreshold:   32 * 1024,
			ChunkSize:        32 * 1024,
			MaxMessageBytes:  10 * 1024 * 1024,
			TransferTTL:      30 * time.Minute,
			TransferGCPeriod: time.Minute,
		},
		Relay: RelayConfig{
			HeartbeatPeriod: 60 * time.Second,
			StaleAfter:      300 * time.Second,
			MessageTTL:      300 * time.Second,
			MaxHops:         5,
			QueueCapacity:   1000,
		},
		DHT: DHTConfig{
			ListenUDP:      "0.0.0.0:9944",
			K:              20,
			Alpha:          3,
			ValueTTL:       time.Hour,
			RepublishEvery: 10 * time.Minute,
		},
		SQLite:  SQLiteConfig{Path: "./data/offline_queue.db"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}
