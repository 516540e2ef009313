// Package config loads runtime configuration for the splitsync CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// # JSON schema
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "online_check_interval": "3s",
//	  "database_path": "splitsync.db",
//	  "batch_size": 50,
//	  "push_workers": 4,
//	  "call_timeout": "15s",
//	  "log_level": "info"
//	}
package config
