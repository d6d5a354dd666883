// Copyright 2025 The Rivaas Authors
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

// Package longpoll watches the config service for namespace changes.
//
// One [Engine] serves every namespace of an (app, cluster) pair with a
// single outstanding request. The server holds the request until one of the
// namespaces changes (200) or its hold time lapses (304). On 200 the engine
// records the new notification ids, merges the per-key messages, and
// notifies each repository registered for the namespace so that it fetches
// the new release.
//
// The loop moves through the states IDLE, POLLING, then NOTIFIED,
// TIMED_OUT or FAILED, back to POLLING, and ends in STOPPED.
package longpoll
