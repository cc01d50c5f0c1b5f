package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"qkart-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

var requiredColumns = []string{"name", "category", "cost", "rating", "image"}

// CSVImporter reads a product catalogue CSV and inserts or updates products by name.
// Columns: id (optional), name, category, cost, rating, image.
type CSVImporter struct {
	reader      *csv.Reader
	productRepo ProductWriter
}

func NewCSVImporter(r io.Reader, repo ProductWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	return &CSVImporter{
		reader:      csvr,
		productRepo: repo,
	}
}

// Run upserts every data row and returns how many products were written.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return 0, fmt.Errorf("missing column %q", col)
		}
	}

	imported := 0
	line := 1
	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return imported, fmt.Errorf("read row %d: %w", line, err)
		}
		if blank(record) {
			continue
		}

		p, err := parseRow(record, index)
		if err != nil {
			return imported, fmt.Errorf("row %d: %w", line, err)
		}
		if _, err := i.productRepo.Upsert(ctx, p); err != nil {
			return imported, fmt.Errorf("upsert product %q: %w", p.Name, err)
		}
		imported++
	}

	return imported, nil
}

func parseRow(record []string, index map[string]int) (domain.Product, error) {
	p := domain.Product{
		ID:       pick(record, index, "id"),
		Name:     pick(record, index, "name"),
		Category: pick(record, index, "category"),
		Image:    pick(record, index, "image"),
	}
	if p.Name == "" || p.Category == "" {
		return domain.Product{}, errors.New("name and category are required")
	}
	if p.ID != "" {
		if _, err := uuid.Parse(p.ID); err != nil {
			return domain.Product{}, fmt.Errorf("invalid id %q", p.ID)
		}
	}

	cost, err := decimal.NewFromString(pick(record, index, "cost"))
	if err != nil || cost.IsNegative() {
		return domain.Product{}, fmt.Errorf("invalid cost %q for %q", pick(record, index, "cost"), p.Name)
	}
	p.Cost = cost.Round(2)

	if raw := pick(record, index, "rating"); raw != "" {
		rating, err := strconv.Atoi(raw)
		if err != nil || rating < 0 || rating > 5 {
			return domain.Product{}, fmt.Errorf("invalid rating %q for %q", raw, p.Name)
		}
		p.Rating = rating
	}
	return p, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
