package earnings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/sautihub/core-api/internal/earnings/entity"
)

type fakeRepo struct {
	totals  []entity.WeeklyCreatorTotal
	rows    []entity.ExportRow
	settled int64
	err     error
}

func (f *fakeRepo) WeeklyTotals(ctx context.Context, weekStart time.Time) ([]entity.WeeklyCreatorTotal, error) {
	return f.totals, f.err
}

func (f *fakeRepo) ExportRows(ctx context.Context, weekStart time.Time) ([]entity.ExportRow, error) {
	return f.rows, f.err
}

func (f *fakeRepo) MarkWeekPaid(ctx context.Context, weekStart time.Time) (int64, error) {
	return f.settled, f.err
}

func newEarningsHandler(repo Repository) *Handler {
	return NewHandler(NewService(repo, zap.NewNop().Sugar()), zap.NewNop().Sugar())
}

func TestWeeklyEndpoint(t *testing.T) {
	phone := "254712345678"
	h := newEarningsHandler(&fakeRepo{totals: []entity.WeeklyCreatorTotal{
		{CreatorID: 1, CreatorName: "Achieng", PhoneNumber: &phone, TotalCents: 750, ContentCount: 3},
	}})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/earnings/weekly?week_start=2025-01-06", nil)
	rec := httptest.NewRecorder()
	h.Weekly(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		WeekStart string                      `json:"week_start"`
		WeekEnd   string                      `json:"week_end"`
		Creators  []entity.WeeklyCreatorTotal `json:"creators"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2025-01-06", body.WeekStart)
	assert.Equal(t, "2025-01-12", body.WeekEnd)
	require.Len(t, body.Creators, 1)
	assert.Equal(t, int64(750), body.Creators[0].TotalCents)
}

func TestWeeklyEndpointBadParams(t *testing.T) {
	h := newEarningsHandler(&fakeRepo{})

	for _, target := range []string{
		"/api/admin/earnings/weekly",
		"/api/admin/earnings/weekly?week_start=06-01-2025",
		"/api/admin/earnings/weekly?week_start=next-monday",
	} {
		rec := httptest.NewRecorder()
		h.Weekly(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestWeeklyEndpointQueryFailure(t *testing.T) {
	h := newEarningsHandler(&fakeRepo{err: errors.New("db down")})

	rec := httptest.NewRecorder()
	h.Weekly(rec, httptest.NewRequest(http.MethodGet, "/api/admin/earnings/weekly?week_start=2025-01-06", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestExportEndpoint(t *testing.T) {
	weekStart := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	h := newEarningsHandler(&fakeRepo{rows: []entity.ExportRow{
		{CreatorName: "Achieng", ContentTitle: "Benga Mix Vol 1", AmountCents: 250, WeekStart: weekStart, WeekEnd: weekStart.AddDate(0, 0, 6)},
	}})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/earnings/export?week_start=2025-01-06", nil)
	rec := httptest.NewRecorder()
	h.Export(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "earnings_2025-01-06_to_2025-01-12.xlsx")

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Achieng", rows[1][0])
}

func TestSettleEndpoint(t *testing.T) {
	h := newEarningsHandler(&fakeRepo{settled: 12})

	req := httptest.NewRequest(http.MethodPost, "/api/admin/earnings/settle?week_start=2025-01-06", nil)
	rec := httptest.NewRecorder()
	h.Settle(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(12), body["rows_settled"])
}
