package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"clubpadel/backend/internal/domain"
)

var csvHeader = []string{"name", "category", "price", "cost", "stock", "min_stock"}

// ImportProductsCSV reads the upload row by row. A bad row is recorded with
// its line number and skipped; the remaining rows still import.
func (s *Service) ImportProductsCSV(ctx context.Context, r io.Reader) (domain.ProductImportResult, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.ProductImportResult{}, fmt.Errorf("admin role required")
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return domain.ProductImportResult{}, fmt.Errorf("read csv header: %w", err)
	}
	if !isExpectedHeader(header) {
		return domain.ProductImportResult{}, fmt.Errorf("unexpected csv header, want %s", strings.Join(csvHeader, ","))
	}

	result := domain.ProductImportResult{Errors: make([]domain.ImportRowError, 0, 8)}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			result.Rejected++
			result.Errors = append(result.Errors, domain.ImportRowError{Line: line, Message: "malformed row"})
			continue
		}

		req, rowErr := parseProductRow(record)
		if rowErr != "" {
			result.Rejected++
			result.Errors = append(result.Errors, domain.ImportRowError{Line: line, Message: rowErr})
			continue
		}

		if _, err := s.CreateProduct(ctx, req); err != nil {
			result.Rejected++
			result.Errors = append(result.Errors, domain.ImportRowError{Line: line, Message: err.Error()})
			continue
		}
		result.Imported++
	}

	s.logAudit(ctx, "product_import", "product", "", fmt.Sprintf("imported=%d,rejected=%d", result.Imported, result.Rejected))
	return result, nil
}

func parseProductRow(record []string) (domain.ProductCreateRequest, string) {
	var req domain.ProductCreateRequest
	if len(record) < 5 || len(record) > 6 {
		return req, "wrong number of fields"
	}

	req.Name = strings.TrimSpace(record[0])
	if req.Name == "" {
		return req, "missing name"
	}

	req.Category = strings.ToLower(strings.TrimSpace(record[1]))
	if !domain.IsProductCategory(req.Category) {
		return req, fmt.Sprintf("unknown category %q", record[1])
	}

	price, err := parseMoneyCents(record[2])
	if err != nil || price < 1 {
		return req, "invalid price"
	}
	req.PriceCents = price

	cost, err := parseMoneyCents(record[3])
	if err != nil || cost < 0 {
		return req, "invalid cost"
	}
	req.CostCents = cost

	stock, err := strconv.Atoi(strings.TrimSpace(record[4]))
	if err != nil || stock < 0 {
		return req, "invalid stock"
	}
	req.Stock = stock

	if len(record) == 6 && strings.TrimSpace(record[5]) != "" {
		minStock, err := strconv.Atoi(strings.TrimSpace(record[5]))
		if err != nil || minStock < 0 {
			return req, "invalid min_stock"
		}
		req.MinStock = minStock
	}

	return req, ""
}

func (s *Service) ExportProductsCSV(ctx context.Context, w io.Writer) error {
	products, err := s.repo.ListProducts(ctx, true)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, p := range products {
		record := []string{
			p.Name,
			p.Category,
			formatMoneyCents(p.PriceCents),
			formatMoneyCents(p.CostCents),
			strconv.Itoa(p.Stock),
			strconv.Itoa(p.MinStock),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func isExpectedHeader(header []string) bool {
	if len(header) < 5 || len(header) > 6 {
		return false
	}
	for i, col := range header {
		if strings.ToLower(strings.TrimSpace(col)) != csvHeader[i] {
			return false
		}
	}
	return true
}

// parseMoneyCents converts a decimal currency amount ("12.50") into cents
// without going through floating point.
func parseMoneyCents(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty amount")
	}

	negative := false
	if strings.HasPrefix(value, "-") {
		negative = true
		value = value[1:]
	}

	wholePart := value
	fracPart := ""
	if idx := strings.IndexByte(value, '.'); idx >= 0 {
		wholePart = value[:idx]
		fracPart = value[idx+1:]
	}
	if wholePart == "" {
		wholePart = "0"
	}
	if len(fracPart) > 2 {
		return 0, fmt.Errorf("too many decimal places")
	}
	for len(fracPart) < 2 {
		fracPart += "0"
	}

	whole, err := strconv.ParseInt(wholePart, 10, 64)
	if err != nil {
		return 0, err
	}
	frac, err := strconv.ParseInt(fracPart, 10, 64)
	if err != nil {
		return 0, err
	}

	cents := whole*100 + frac
	if negative {
		cents = -cents
	}
	return cents, nil
}

func formatMoneyCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
