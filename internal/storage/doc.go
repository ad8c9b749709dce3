/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage implements the screenplay library on disk.
// The library is one JSON array (scripts.json) validated against an embedded JSON schema on load,
// saved with a debounce, atomic temp+rename writes and timestamped backups.
// A SQLite FTS5 index (index.sqlite) next to it serves line search; it is derived from scripts.json and rebuildable.
package storage
