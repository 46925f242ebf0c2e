// Copyright 2025 Poiesic Systems
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

// Package server exposes the retrieval engine over HTTP.
//
// Routes:
//
//	POST /v1/search   hybrid retrieval, optionally with per-plan traces
//	POST /v1/ask      retrieval followed by answer generation
//	GET  /v1/users    known user display names
//	GET  /healthz     liveness
//	GET  /metrics     Prometheus metrics
//
// Errors are returned as JSON objects with a code and a message.
package server
