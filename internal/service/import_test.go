package service

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubpadel/backend/internal/cache"
	"clubpadel/backend/internal/store/memory"
)

func newImportService() *Service {
	return New(memory.New(), cache.NoopCatalogCache{}, 500, 300)
}

func TestImportProductsCSV(t *testing.T) {
	svc := newImportService()
	ctx := adminCtx()

	csv := strings.Join([]string{
		"name,category,price,cost,stock,min_stock",
		"Agua 500ml,drinks,1.50,0.60,48,12",
		"Toalla club,apparel,12.00,5.00,10,",
		"Raqueta demo,weapons,99.00,50.00,5,1",
		"Grip overgrip,accessories,3.00,1.30,30,8",
	}, "\n")

	result, err := svc.ImportProductsCSV(ctx, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Imported)
	assert.Equal(t, 1, result.Rejected)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 4, result.Errors[0].Line)
	assert.Contains(t, result.Errors[0].Message, "unknown category")

	products, err := svc.ListProducts(ctx, false)
	require.NoError(t, err)
	require.Len(t, products, 3)

	var water, towel bool
	for _, p := range products {
		switch p.Name {
		case "Agua 500ml":
			water = true
			assert.Equal(t, int64(150), p.PriceCents)
			assert.Equal(t, int64(60), p.CostCents)
			assert.Equal(t, 48, p.Stock)
			assert.Equal(t, 12, p.MinStock)
		case "Toalla club":
			towel = true
			assert.Equal(t, int64(1200), p.PriceCents)
			assert.Equal(t, 0, p.MinStock)
		}
	}
	assert.True(t, water, "expected water row imported")
	assert.True(t, towel, "expected towel row imported despite rejected sibling")
}

func TestImportProductsCSVRejectsBadHeader(t *testing.T) {
	svc := newImportService()

	_, err := svc.ImportProductsCSV(adminCtx(), strings.NewReader("sku,name,price\nX,Y,1.00\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv header")
}

func TestImportProductsCSVRequiresAdmin(t *testing.T) {
	svc := newImportService()

	_, err := svc.ImportProductsCSV(staffCtx(), strings.NewReader("name,category,price,cost,stock\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin role required")
}

func TestImportProductsCSVRowErrors(t *testing.T) {
	svc := newImportService()

	csv := strings.Join([]string{
		"name,category,price,cost,stock",
		",drinks,1.00,0.50,5",
		"Agua,drinks,0.00,0.50,5",
		"Agua,drinks,1.00,-0.50,5",
		"Agua,drinks,1.005,0.50,5",
		"Agua,drinks,1.00,0.50,-1",
	}, "\n")

	result, err := svc.ImportProductsCSV(adminCtx(), strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Imported)
	assert.Equal(t, 5, result.Rejected)
	require.Len(t, result.Errors, 5)
	assert.Equal(t, "missing name", result.Errors[0].Message)
	assert.Equal(t, "invalid price", result.Errors[1].Message)
	assert.Equal(t, "invalid cost", result.Errors[2].Message)
	assert.Equal(t, "invalid price", result.Errors[3].Message)
	assert.Equal(t, "invalid stock", result.Errors[4].Message)
}

func TestExportRoundTrip(t *testing.T) {
	svc := newImportService()
	ctx := adminCtx()

	source := strings.Join([]string{
		"name,category,price,cost,stock,min_stock",
		"Agua 500ml,drinks,1.50,0.60,48,12",
		"Barrita energetica,snacks,1.80,0.90,24,6",
	}, "\n")
	_, err := svc.ImportProductsCSV(ctx, strings.NewReader(source))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportProductsCSV(ctx, &buf))

	reimport := New(memory.New(), cache.NoopCatalogCache{}, 500, 300)
	result, err := reimport.ImportProductsCSV(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 0, result.Rejected)

	exported, err := reimport.ListProducts(ctx, false)
	require.NoError(t, err)
	original, err := svc.ListProducts(ctx, false)
	require.NoError(t, err)
	require.Len(t, exported, len(original))
	for i := range original {
		assert.Equal(t, original[i].Name, exported[i].Name)
		assert.Equal(t, original[i].Category, exported[i].Category)
		assert.Equal(t, original[i].PriceCents, exported[i].PriceCents)
		assert.Equal(t, original[i].CostCents, exported[i].CostCents)
		assert.Equal(t, original[i].Stock, exported[i].Stock)
		assert.Equal(t, original[i].MinStock, exported[i].MinStock)
	}
}

func TestParseMoneyCents(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1.50", 150, false},
		{"12", 1200, false},
		{"0.05", 5, false},
		{".5", 50, false},
		{"-2.25", -225, false},
		{"1.005", 0, true},
		{"", 0, true},
		{"abc", 0, true},
	}
	for _, tc := range cases {
		got, err := parseMoneyCents(tc.in)
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}
