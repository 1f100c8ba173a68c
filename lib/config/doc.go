// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the YAML hardening policy for secure memory and
// file locks.
//
// The policy is read from a single file named by the caller
// ([LoadFile]) or from bytes ([Parse]). There is no discovery and no
// environment override of values: the file is the single source of
// truth. The only expansion performed is ${VAR} and ${VAR:-default} in
// lock.directory.
//
//	environment: production
//	memory:
//	  platform: native
//	  lock: true
//	  exclude_from_dumps: true
//	  non_inheritable: true
//	  disable_core_dumps: true
//	lock:
//	  retry_interval: 50ms
//	  default_timeout: 10s
//	  permissions: "0600"
//	  directory: ${XDG_RUNTIME_DIR:-/tmp}/keyguard
//
// In production, [Config.Validate] rejects the portable platform and a
// disabled page lock. Development accepts both so that constrained test
// machines still work.
//
// Key exports:
//
//   - [Config] -- Memory and Lock sections
//   - [Default] -- every control requested on the native platform
//   - [LoadFile] and [Parse] -- the two entry points for loading
//
// lib/secret and lib/filelock turn a Config into an Allocator and a
// Locker. This package depends on no other Bureau packages.
package config
