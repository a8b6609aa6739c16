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

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"
)

// WorkbookStore keeps records in a local .xlsx file. The file is created on
// first write and saved after every write.
type WorkbookStore struct {
	path  string
	sheet string
	mu    sync.Mutex
}

// NewWorkbookStore opens or prepares the workbook at path.
func NewWorkbookStore(path, sheet string) (*WorkbookStore, error) {
	if path == "" {
		return nil, fmt.Errorf("workbook path is required")
	}
	if sheet == "" {
		sheet = DefaultSheetName
	}
	if _, err := os.Stat(path); err == nil {
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("open workbook %s: %w", path, err)
		}
		_ = f.Close()
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat workbook %s: %w", path, err)
	}
	return &WorkbookStore{path: path, sheet: sheet}, nil
}

// Path is the workbook location.
func (w *WorkbookStore) Path() string {
	return w.path
}

// open returns the workbook with the record sheet present.
func (w *WorkbookStore) open() (*excelize.File, error) {
	var f *excelize.File
	if _, err := os.Stat(w.path); errors.Is(err, fs.ErrNotExist) {
		f = excelize.NewFile()
		if err := f.SetSheetName(f.GetSheetName(0), w.sheet); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("name sheet: %w", err)
		}
	} else {
		f, err = excelize.OpenFile(w.path)
		if err != nil {
			return nil, fmt.Errorf("open workbook %s: %w", w.path, err)
		}
	}
	idx, err := f.GetSheetIndex(w.sheet)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("find sheet %s: %w", w.sheet, err)
	}
	if idx < 0 {
		if _, err := f.NewSheet(w.sheet); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("create sheet %s: %w", w.sheet, err)
		}
	}
	return f, nil
}

func (w *WorkbookStore) allRows() ([][]string, error) {
	f, err := w.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := f.GetRows(w.sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", w.sheet, err)
	}
	return rows, nil
}

func (w *WorkbookStore) Header(_ context.Context) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	rows, err := w.allRows()
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (w *WorkbookStore) Rows(_ context.Context) ([][]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	rows, err := w.allRows()
	if err != nil || len(rows) <= 1 {
		return nil, err
	}
	return rows[1:], nil
}

func (w *WorkbookStore) Append(_ context.Context, row []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.write(func(f *excelize.File) (int, error) {
		rows, err := f.GetRows(w.sheet)
		if err != nil {
			return 0, err
		}
		return len(rows) + 1, nil
	}, row)
}

func (w *WorkbookStore) Update(_ context.Context, index int, row []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.write(func(f *excelize.File) (int, error) {
		rows, err := f.GetRows(w.sheet)
		if err != nil {
			return 0, err
		}
		if index < 0 || index+1 >= len(rows) {
			return 0, fmt.Errorf("row %d out of range", index)
		}
		return index + 2, nil
	}, row)
}

// write places row at the sheet row chosen by locate, then saves.
func (w *WorkbookStore) write(locate func(*excelize.File) (int, error), row []string) error {
	f, err := w.open()
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := locate(f)
	if err != nil {
		return fmt.Errorf("locate row: %w", err)
	}
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(w.sheet, cell, &row); err != nil {
		return fmt.Errorf("write row %d: %w", n, err)
	}
	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("save workbook %s: %w", w.path, err)
	}
	return nil
}
