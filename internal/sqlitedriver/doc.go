// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sqlitedriver registers the "sqlite3" database/sql driver used by the
// audit journal and opens journal databases. CGO builds link go-sqlcipher, so
// a journal can be encrypted with a key. Builds without CGO use the pure-Go
// modernc.org/sqlite driver, which reads and writes plaintext only.
package sqlitedriver
