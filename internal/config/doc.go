// Package config defines configuration structures for the csvsync job.
//
// Configuration can be provided via:
//   - YAML configuration file
//   - Environment variables (CSVSYNC_ prefix), optionally loaded from .env
//   - Command-line flags (applied with Merge)
//
// # Structure
//
//	service:
//	  name: cepr-sync
//	  env: production
//	database:
//	  client: postgres        # postgres | clickhouse | sqlite
//	  model: cepr
//	  dsn: postgres://user:pass@db:5432/exports
//	auth:
//	  base_url: https://sso.example.com
//	  realm: file-vault
//	  client_id: csvsync
//	  client_secret: secret
//	http:
//	  response_header_timeout: 30s
//	  retry:
//	    attempts: 0
//	logging:
//	  format: json
//	  level: info
//	archive:
//	  bucket: s3://raw-exports
//	  buffer_size: 8MB
package config
