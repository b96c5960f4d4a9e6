// Package config loads runtime configuration for the registrar client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c / --config.
//  3. REGISTRAR_* environment variables (e.g. REGISTRAR_ACCESS_TOKEN,
//     REGISTRAR_LOCATION_IDS=loc-1,loc-2).
//  4. Command-line flags registered by BindFlags, which override earlier
//     values when given explicitly.
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "database_path": "registrar.db",
//	  "location_ids": ["office-1"],
//	  "sync_interval": "30s",
//	  "online_check_interval": "3s",
//	  "retry_backoff": "5s",
//	  "retry_max_delay": "5m"
//	}
package config
