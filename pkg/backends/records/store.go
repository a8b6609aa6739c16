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

package records

import "context"

// DefaultSheetName is the worksheet used when none is configured.
const DefaultSheetName = "Customers"

// Store is a tabular store addressed by row. Row indexes passed to Update
// count data rows from zero, the header excluded.
type Store interface {
	// Header returns the first row, or nil for an empty sheet.
	Header(ctx context.Context) ([]string, error)

	// Rows returns every data row below the header.
	Rows(ctx context.Context) ([][]string, error)

	// Append writes a row after the last non-empty row.
	Append(ctx context.Context, row []string) error

	// Update overwrites data row index.
	Update(ctx context.Context, index int, row []string) error
}
