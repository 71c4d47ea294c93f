// Package config handles configuration loading for tokstore.
//
// Configuration is loaded from YAML files with ${VAR} environment variable
// expansion. When no file is given, the TOKSTORE_DIR environment variable
// alone can supply the store override directory.
//
// Sections:
//
//	store:
//	  dir: /var/lib/tokens      # override directory, tried first
//	  system_dir: /srv/tokstore # replaces the compiled-in system dir
//	logging:
//	  level: info               # debug, info, warn, error
//	  format: text              # text or json
package config
