// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package clip holds the domain model shared by every pipeline stage: the job and its state
// machine, stored files, the retention policy, the saturation parameter and the typed error
// taxonomy returned to callers.
package clip
