package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/shiftbot/internal/ingest"
	"github.com/m3rciful/shiftbot/internal/production"
	"github.com/m3rciful/shiftbot/internal/storage/memstore"
)

var day = time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func loadFixture(t *testing.T) ingest.Document {
	t.Helper()
	doc, err := ingest.FileSource{Path: "testdata/plan.json"}.Fetch(context.Background())
	require.NoError(t, err)
	return doc
}

func TestDecodeAcceptsBothShapes(t *testing.T) {
	bare, err := ingest.Decode(strings.NewReader(`[{"id":"o1"}]`))
	require.NoError(t, err)
	wrapped, err := ingest.Decode(strings.NewReader(`{"orders":[{"id":"o1"}]}`))
	require.NoError(t, err)
	assert.Equal(t, bare, wrapped)
}

func TestDecodeTypeMismatchIsValidationError(t *testing.T) {
	_, err := ingest.Decode(strings.NewReader(`{"orders":[{"id":"o1","totalMass":"heavy"}]}`))
	var verr *ingest.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 1)
	assert.Contains(t, verr.Violations[0].Path, "totalMass")
}

func TestValidateReportsEveryViolation(t *testing.T) {
	raw := `[{
		"id": "o1", "name": "", "productionLineId": "l1",
		"totalMass": 10, "totalLength": 1, "executionTime": 5,
		"bundles": [
			{"bundleId": "b1", "totalMass": 1, "totalLength": 1, "executionTime": 1, "products": [
				{"productId": "p1", "profile": "C8", "width": 1, "thickness": 1, "length": 1, "quantity": 3, "rollNumber": 1}
			]},
			{"bundleId": "b2", "totalMass": 1, "totalLength": 1, "executionTime": 1, "products": [
				{"profile": "C8", "width": 0, "thickness": 1, "length": 1, "quantity": 3, "rollNumber": 1}
			]}
		]
	}]`
	doc, err := ingest.Decode(strings.NewReader(raw))
	require.NoError(t, err)

	err = doc.Validate()
	var verr *ingest.ValidationError
	require.ErrorAs(t, err, &verr)

	paths := make([]string, 0, len(verr.Violations))
	for _, v := range verr.Violations {
		paths = append(paths, v.String())
	}
	assert.ElementsMatch(t, []string{
		"orders[0].name: required",
		"orders[0].bundles[1].products[0].productId: required",
		"orders[0].bundles[1].products[0].width: must be positive",
	}, paths)
	assert.Contains(t, err.Error(), "3 violations")
}

func TestValidateEmptyDocument(t *testing.T) {
	err := ingest.Document{}.Validate()
	var verr *ingest.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "orders: required", verr.Violations[0].String())
}

func TestImportBuildsTree(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	im := ingest.NewImporter(store, time.UTC, seqIDs())

	sum, err := im.Import(ctx, loadFixture(t), day)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Orders)
	assert.Equal(t, 3, sum.Bundles)
	assert.Equal(t, 4, sum.Products)
	assert.InDelta(t, 1550.5, sum.TotalMass, 1e-9)

	plan, err := store.Plans().FindByDate(ctx, production.Day(day, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, sum.PlanID, plan.ID)

	orders, err := store.Orders().ListByPlan(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "ORD-1001", orders[0].NativeID)
	assert.Equal(t, "line-1", orders[0].LineRef)
	assert.False(t, orders[0].Finished)

	bundles, err := store.Bundles().ListByOrder(ctx, orders[0].ID)
	require.NoError(t, err)
	require.Len(t, bundles, 2)
	assert.Equal(t, "B-1", bundles[0].NativeID)

	products, err := store.Products().ListByBundle(ctx, bundles[0].ID)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "P-1", products[0].NativeID)
	assert.Equal(t, 50.0, products[0].QuantityStatic)
	assert.Equal(t, 50.0, products[0].Quantity)
	assert.Equal(t, 12, products[0].RollNumber)
}

func TestImportRefusesSecondPlanForDay(t *testing.T) {
	ctx := context.Background()
	im := ingest.NewImporter(memstore.New(), time.UTC, nil)

	_, err := im.Import(ctx, loadFixture(t), day)
	require.NoError(t, err)
	_, err = im.Import(ctx, loadFixture(t), day.Add(3*time.Hour))
	require.ErrorIs(t, err, production.ErrPlanExists)
}

func TestImportInvalidWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	doc := loadFixture(t)
	doc.Orders[1].Bundles[0].Products[0].Quantity = nil

	_, err := ingest.NewImporter(store, time.UTC, nil).Import(ctx, doc, day)
	var verr *ingest.ValidationError
	require.ErrorAs(t, err, &verr)
	_, err = store.Plans().FindByDate(ctx, production.Day(day, time.UTC))
	require.ErrorIs(t, err, production.ErrNotFound)
}

type failingStore struct{ production.Store }

func (f failingStore) Products() production.ProductRepository {
	return failingProducts{f.Store.Products()}
}

func (f failingStore) Tx(ctx context.Context, fn func(production.Store) error) error {
	return f.Store.Tx(ctx, func(s production.Store) error { return fn(failingStore{s}) })
}

type failingProducts struct{ production.ProductRepository }

func (failingProducts) Save(context.Context, production.Product) error {
	return errors.New("disk full")
}

func TestImportRollsBackOnWriteFailure(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	_, err := ingest.NewImporter(failingStore{store}, time.UTC, seqIDs()).Import(ctx, loadFixture(t), day)
	require.ErrorContains(t, err, "disk full")

	_, err = store.Plans().FindByDate(ctx, production.Day(day, time.UTC))
	require.ErrorIs(t, err, production.ErrNotFound)
	// id-1 is the plan, id-2 the first order, id-3 its first bundle.
	_, err = store.Orders().Find(ctx, "id-2")
	require.ErrorIs(t, err, production.ErrNotFound)
	_, err = store.Bundles().Find(ctx, "id-3")
	require.ErrorIs(t, err, production.ErrNotFound)
}

func TestHTTPSource(t *testing.T) {
	raw, err := os.ReadFile("testdata/plan.json")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/plan" {
			http.Error(w, "no such plan", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(raw)
	}))
	defer srv.Close()

	ctx := context.Background()
	src := ingest.HTTPSource{URL: srv.URL + "/plan", Client: srv.Client(), Timeout: time.Second}
	sum, err := ingest.NewImporter(memstore.New(), time.UTC, nil).Run(ctx, src, day)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Products)

	_, err = ingest.HTTPSource{URL: srv.URL + "/missing", Client: srv.Client()}.Fetch(ctx)
	require.ErrorContains(t, err, "status 404")
}
