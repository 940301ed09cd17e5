package flow_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/shiftbot/core/telegram/state"
	"github.com/m3rciful/shiftbot/internal/flow"
	"github.com/m3rciful/shiftbot/internal/locale"
	"github.com/m3rciful/shiftbot/internal/production"
	"github.com/m3rciful/shiftbot/internal/storage/memstore"
)

const (
	operatorUser int64 = 100
	adminUser    int64 = 200
)

type harness struct {
	store  *memstore.Store
	now    time.Time
	engine *flow.Engine
	user   int64
	sess   state.Session
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	h := &harness{store: memstore.New(), now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), user: operatorUser}
	clock := func() time.Time { return h.now }
	seq := 0
	ids := func() string { seq++; return fmt.Sprintf("gen-%d", seq) }
	texts, err := locale.New("", "en")
	require.NoError(t, err)

	h.engine = flow.NewEngine(flow.Deps{
		Plans:    production.NewPlanService(h.store, clock, time.UTC),
		Registry: production.NewRegistry(h.store, ids),
		Shifts:   production.NewShiftTracker(h.store, clock, ids, production.DefaultDensity),
		Idles:    production.NewIdleTracker(h.store, clock, ids, time.UTC),
		Texts:    texts,
	}, flow.Options{})

	require.NoError(t, h.store.Lines().Save(ctx, production.ProductionLine{ID: "l1", Name: "Line 1"}))
	require.NoError(t, h.store.Operators().Save(ctx, production.Operator{ID: "op", Name: "Ann", Rate: 1000, LineID: "l1"}))
	require.NoError(t, h.store.Accounts().Save(ctx, production.Account{ID: "acc-op", Phone: "79001110000", TelegramID: operatorUser, Role: production.RoleOperator}))
	require.NoError(t, h.store.Accounts().Save(ctx, production.Account{ID: "acc-admin", Phone: "79002220000", TelegramID: adminUser, Role: production.RoleAdmin}))
	require.NoError(t, h.store.Plans().Save(ctx, production.Plan{ID: "plan", Date: h.now, TotalMass: 0.0314}))
	return h
}

func (h *harness) addOrder(t *testing.T, id string, seq int) {
	t.Helper()
	require.NoError(t, h.store.Orders().Save(context.Background(), production.Order{ID: id, PlanID: "plan", Seq: seq, NativeID: id}))
}

func (h *harness) addBundle(t *testing.T, id, orderID string, seq int) {
	t.Helper()
	require.NoError(t, h.store.Bundles().Save(context.Background(), production.Bundle{ID: id, OrderID: orderID, Seq: seq, NativeID: id}))
}

func (h *harness) addProduct(t *testing.T, id, bundleID string, seq int, qty float64) {
	t.Helper()
	require.NoError(t, h.store.Products().Save(context.Background(), production.Product{
		ID: id, BundleID: bundleID, Seq: seq, NativeID: id,
		Width: 1, Thickness: 1, Length: 1, QuantityStatic: 50, Quantity: qty,
	}))
}

func (h *harness) do(t *testing.T, ev flow.Event) flow.Response {
	t.Helper()
	resp, err := h.engine.Handle(context.Background(), flow.Request{UserID: h.user, Lang: "en", Session: h.sess, Event: ev})
	require.NoError(t, err)
	h.sess = resp.Session
	return resp
}

func (h *harness) press(t *testing.T, a flow.Action) flow.Response {
	t.Helper()
	return h.do(t, flow.ActionEvent{Action: a})
}

func (h *harness) tap(t *testing.T, tag string) flow.Response {
	t.Helper()
	return h.press(t, flow.Action{Tag: tag})
}

func (h *harness) text(t *testing.T, s string) flow.Response {
	t.Helper()
	return h.do(t, flow.TextEvent{Text: s})
}

func (h *harness) start(t *testing.T) flow.Response {
	t.Helper()
	resp, err := h.engine.Start(context.Background(), flow.Request{UserID: h.user, Lang: "en", Session: h.sess})
	require.NoError(t, err)
	h.sess = resp.Session
	return resp
}

// clockIn walks an operator from /start to the first screen of the shift.
func (h *harness) clockIn(t *testing.T) flow.Response {
	t.Helper()
	h.start(t)
	require.Equal(t, flow.StateChooseLine, h.sess.State)
	h.press(t, flow.Action{Tag: flow.TagLine, ID: "l1"})
	require.Equal(t, flow.StateChooseOperator, h.sess.State)
	h.press(t, flow.Action{Tag: flow.TagOperator, ID: "op"})
	require.Equal(t, flow.StateChooseAction, h.sess.State)
	return h.tap(t, flow.TagStartShift)
}

func (h *harness) product(t *testing.T, id string) production.Product {
	t.Helper()
	p, err := h.store.Products().Find(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (h *harness) operator(t *testing.T) production.Operator {
	t.Helper()
	op, err := h.store.Operators().Find(context.Background(), "op")
	require.NoError(t, err)
	return op
}

func buttonTags(resp flow.Response) []string {
	prompt, _ := resp.Prompt()
	var tags []string
	for _, row := range prompt.Buttons {
		for _, b := range row {
			tags = append(tags, b.Action.Tag)
		}
	}
	return tags
}

func findButton(t *testing.T, resp flow.Response, tag string) flow.Button {
	t.Helper()
	prompt, ok := resp.Prompt()
	require.True(t, ok)
	for _, row := range prompt.Buttons {
		for _, b := range row {
			if b.Action.Tag == tag {
				return b
			}
		}
	}
	require.FailNow(t, "button not found", tag)
	return flow.Button{}
}

func TestStartRoutesByRole(t *testing.T) {
	h := newHarness(t)

	resp := h.start(t)
	assert.Equal(t, flow.StateChooseLine, h.sess.State)
	assert.Contains(t, buttonTags(resp), flow.TagLine)

	h.user, h.sess = adminUser, state.Session{}
	h.start(t)
	assert.Equal(t, flow.StateAdminMain, h.sess.State)

	h.user, h.sess = 999, state.Session{}
	resp = h.start(t)
	assert.Equal(t, flow.StateContactConfirm, h.sess.State)
	prompt, _ := resp.Prompt()
	assert.NotEmpty(t, prompt.RequestContact)
}

func TestStartClearsScratchData(t *testing.T) {
	h := newHarness(t)
	h.sess = state.Session{State: flow.StateEnterResult, Data: map[string]string{flow.KeyProduct: "p1"}}
	h.start(t)
	assert.Empty(t, h.sess.Get(flow.KeyProduct))
}

func TestContactBindsAccount(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.store.Accounts().Save(ctx, production.Account{ID: "new", Phone: "79003334455", Role: production.RoleOperator}))
	h.user = 300
	h.start(t)

	resp := h.do(t, flow.ContactEvent{Phone: "+79003334455", UserID: 1})
	assert.Equal(t, flow.StateContactConfirm, h.sess.State)
	assert.Equal(t, []string{"Please share your own contact."}, resp.Notices)

	resp = h.do(t, flow.ContactEvent{Phone: "+7 999 000-00-00", UserID: 300})
	assert.Equal(t, flow.StateContactConfirm, h.sess.State)
	assert.Len(t, resp.Notices, 1)

	resp = h.do(t, flow.ContactEvent{Phone: "8 (900) 333-44-55", UserID: 300})
	require.True(t, resp.Handled)
	assert.Equal(t, flow.StateChooseLine, h.sess.State)
	require.Len(t, resp.Messages, 2)
	assert.True(t, resp.Messages[0].RemoveKeyboard)

	acc, err := h.store.Accounts().FindByTelegramID(ctx, 300)
	require.NoError(t, err)
	assert.Equal(t, "new", acc.ID)
}

func TestAutoSkipSingleOrderAndBundle(t *testing.T) {
	h := newHarness(t)
	h.addOrder(t, "o1", 0)
	h.addBundle(t, "b1", "o1", 0)
	h.addProduct(t, "p1", "b1", 0, 50)
	h.addProduct(t, "p2", "b1", 1, 50)

	resp := h.clockIn(t)
	assert.Equal(t, flow.StateChooseProduct, h.sess.State)
	assert.Equal(t, "o1", h.sess.Get(flow.KeyOrder))
	assert.Equal(t, "b1", h.sess.Get(flow.KeyBundle))
	assert.Len(t, resp.Messages, 1)
}

func TestAutoSkipSingleProductLandsOnResult(t *testing.T) {
	h := newHarness(t)
	h.addOrder(t, "o1", 0)
	h.addBundle(t, "b1", "o1", 0)
	h.addProduct(t, "p1", "b1", 0, 50)

	resp := h.clockIn(t)
	assert.Equal(t, flow.StateEnterResult, h.sess.State)
	assert.Equal(t, "p1", h.sess.Get(flow.KeyProduct))
	batch := findButton(t, resp, flow.TagBatch)
	assert.Equal(t, 10.0, batch.Action.Quantity)
}

func TestBatchShrinksWithRemaining(t *testing.T) {
	h := newHarness(t)
	h.addOrder(t, "o1", 0)
	h.addBundle(t, "b1", "o1", 0)
	h.addProduct(t, "p1", "b1", 0, 4)

	resp := h.clockIn(t)
	assert.Equal(t, 4.0, findButton(t, resp, flow.TagBatch).Action.Quantity)
}

func TestOrdersListedWhenSeveral(t *testing.T) {
	h := newHarness(t)
	h.addOrder(t, "o1", 0)
	h.addOrder(t, "o2", 1)
	h.addBundle(t, "b1", "o1", 0)
	h.addProduct(t, "p1", "b1", 0, 50)

	resp := h.clockIn(t)
	assert.Equal(t, flow.StateChooseOrder, h.sess.State)
	assert.Equal(t, []string{flow.TagOrder, flow.TagOrder, flow.TagIdle, flow.TagFinishShift}, buttonTags(resp))
}

func TestLoggingTwiceAccumulatesMass(t *testing.T) {
	h := newHarness(t)
	h.addOrder(t, "o1", 0)
	h.addBundle(t, "b1", "o1", 0)
	h.addProduct(t, "p1", "b1", 0, 50)
	h.clockIn(t)

	resp := h.press(t, flow.Action{Tag: flow.TagBatch, Quantity: 10})
	assert.Equal(t, []string{"Logged 10, 40 left."}, resp.Notices)
	h.tap(t, flow.TagInputCount)
	require.Equal(t, flow.StateInputCount, h.sess.State)
	h.text(t, "10")

	assert.Equal(t, flow.StateEnterResult, h.sess.State)
	assert.Equal(t, 30.0, h.product(t, "p1").Quantity)
	assert.InDelta(t, 0.00314, h.operator(t).ShiftMassProduced, 1e-12)
}

func TestDecimalCountAccepted(t *testing.T) {
	h := newHarness(t)
	h.addOrder(t, "o1", 0)
	h.addBundle(t, "b1", "o1", 0)
	h.addProduct(t, "p1", "b1", 0, 10)
	h.clockIn(t)

	h.tap(t, flow.TagInputCount)
	h.text(t, "2,5")
	assert.Equal(t, 7.5, h.product(t, "p1").Quantity)
}

func TestOverdrawIsRejected(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addOrder(t, "o1", 0)
	h.addBundle(t, "b1", "o1", 0)
	h.addProduct(t, "p1", "b1", 0, 10)
	h.clockIn(t)
	h.tap(t, flow.TagInputCount)

	resp := h.text(t, "15")
	assert.Equal(t, []string{"Cannot book 15: only 10 left."}, resp.Notices)
	assert.Equal(t, flow.StateInputCount, h.sess.State)
	assert.Equal(t, 10.0, h.product(t, "p1").Quantity)
	entries, err := h.store.Progress().ListByOperator(ctx, "op")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestInvalidCountRePrompts(t *testing.T) {
	h := newHarness(t)
	h.addOrder(t, "o1", 0)
	h.addBundle(t, "b1", "o1", 0)
	h.addProduct(t, "p1", "b1", 0, 10)
	h.clockIn(t)
	h.tap(t, flow.TagInputCount)

	for _, in := range []string{"abc", "0", "-3", ""} {
		resp := h.text(t, in)
		assert.Equal(t, []string{"Enter a positive number."}, resp.Notices, in)
		assert.Equal(t, flow.StateInputCount, h.sess.State)
	}
	assert.Equal(t, 10.0, h.product(t, "p1").Quantity)
}

func TestFinishingLastProductCascadesUp(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addOrder(t, "o1", 0)
	h.addBundle(t, "b1", "o1", 0)
	h.addProduct(t, "p1", "b1", 0, 5)
	h.clockIn(t)

	resp := h.press(t, flow.Action{Tag: flow.TagBatch, Quantity: 5})
	assert.Equal(t, flow.StateChooseOrder, h.sess.State)
	assert.Equal(t, []string{flow.TagIdle, flow.TagFinishShift}, buttonTags(resp))
	assert.Contains(t, resp.Notices, "Product p1 is done.")
	assert.Contains(t, resp.Notices, "Bundle b1 is done.")
	assert.Contains(t, resp.Notices, "Order o1 is done.")

	b, err := h.store.Bundles().Find(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, b.Finished)
	o, err := h.store.Orders().Find(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, o.Finished)
}

func TestEmptyBundleIsFinishedOnEntry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addOrder(t, "o1", 0)
	h.addBundle(t, "b1", "o1", 0)
	h.addBundle(t, "b2", "o1", 1)
	for i := range 3 {
		h.addProduct(t, fmt.Sprintf("empty-%d", i), "b1", i, 0)
	}
	h.addProduct(t, "p2", "b2", 0, 20)

	h.clockIn(t)
	require.Equal(t, flow.StateChooseBundle, h.sess.State)

	resp := h.press(t, flow.Action{Tag: flow.TagBundle, ID: "b1"})
	assert.Contains(t, resp.Notices, "Bundle b1 is done.")
	b1, err := h.store.Bundles().Find(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, b1.Finished)

	assert.Equal(t, flow.StateEnterResult, h.sess.State)
	assert.Equal(t, "b2", h.sess.Get(flow.KeyBundle))
	assert.Equal(t, "p2", h.sess.Get(flow.KeyProduct))
}

func TestFinishBundleBooksEverything(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addOrder(t, "o1", 0)
	h.addBundle(t, "b1", "o1", 0)
	h.addBundle(t, "b2", "o1", 1)
	h.addProduct(t, "p1", "b1", 0, 5)
	h.addProduct(t, "p2", "b1", 1, 7)
	h.addProduct(t, "p3", "b2", 0, 1)
	h.addProduct(t, "p4", "b2", 1, 1)
	h.clockIn(t)
	h.press(t, flow.Action{Tag: flow.TagBundle, ID: "b1"})
	require.Equal(t, flow.StateChooseProduct, h.sess.State)

	h.tap(t, flow.TagFinishBundle)
	assert.Zero(t, h.product(t, "p1").Quantity)
	assert.Zero(t, h.product(t, "p2").Quantity)
	entries, err := h.store.Progress().ListByOperator(ctx, "op")
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	assert.Equal(t, flow.StateChooseProduct, h.sess.State)
	assert.Equal(t, "b2", h.sess.Get(flow.KeyBundle))
}

func TestIdleResumesBundleChoice(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addOrder(t, "o1", 0)
	h.addBundle(t, "b1", "o1", 0)
	h.addBundle(t, "b2", "o1", 1)
	h.addProduct(t, "p1", "b1", 0, 5)
	h.addProduct(t, "p2", "b2", 0, 5)
	h.clockIn(t)
	require.Equal(t, flow.StateChooseBundle, h.sess.State)

	resp := h.tap(t, flow.TagIdle)
	assert.Equal(t, flow.StateIdle, h.sess.State)
	assert.Equal(t, []string{flow.TagIdleType, flow.TagIdleType, flow.TagReturn}, buttonTags(resp))

	resp = h.press(t, flow.Action{Tag: flow.TagIdleType, IdleType: production.IdleScheduled})
	assert.Equal(t, flow.StateIdleOption, h.sess.State)
	assert.Len(t, buttonTags(resp), 4)

	h.press(t, flow.Action{Tag: flow.TagIdleReason, IdleType: production.IdleScheduled, Reason: production.ReasonRepair})
	assert.Equal(t, flow.StateIdleNow, h.sess.State)

	h.now = h.now.Add(90 * time.Second)
	resp = h.tap(t, flow.TagFinishIdle)
	assert.Equal(t, []string{"Idle finished (1m30s)."}, resp.Notices)
	assert.Equal(t, flow.StateChooseBundle, h.sess.State)
	assert.Equal(t, "o1", h.sess.Get(flow.KeyOrder))
	assert.Empty(t, h.sess.Get(flow.KeyIdleReturn))

	idles, err := h.store.Idles().ListByLine(ctx, "l1")
	require.NoError(t, err)
	require.Len(t, idles, 1)
	require.NotNil(t, idles[0].DurationSec)
	assert.Equal(t, int64(90), *idles[0].DurationSec)
}

func TestIdleResumesResultScreen(t *testing.T) {
	h := newHarness(t)
	h.addOrder(t, "o1", 0)
	h.addBundle(t, "b1", "o1", 0)
	h.addProduct(t, "p1", "b1", 0, 5)
	h.clockIn(t)
	require.Equal(t, flow.StateEnterResult, h.sess.State)

	h.tap(t, flow.TagIdle)
	h.press(t, flow.Action{Tag: flow.TagIdleType, IdleType: production.IdleUnscheduled})
	h.press(t, flow.Action{Tag: flow.TagIdleReason, IdleType: production.IdleUnscheduled, Reason: production.ReasonBreakdown})
	h.tap(t, flow.TagFinishIdle)
	assert.Equal(t, flow.StateEnterResult, h.sess.State)
	assert.Equal(t, "p1", h.sess.Get(flow.KeyProduct))
}

func TestIdleWithoutMarkerFallsBackToLines(t *testing.T) {
	h := newHarness(t)
	h.sess = state.Session{State: flow.StateIdleNow, Data: map[string]string{flow.KeyLine: "l1"}}
	h.tap(t, flow.TagFinishIdle)
	assert.Equal(t, flow.StateChooseLine, h.sess.State)
}

func TestIdleRejectsMismatchedReason(t *testing.T) {
	h := newHarness(t)
	h.addOrder(t, "o1", 0)
	h.addBundle(t, "b1", "o1", 0)
	h.addProduct(t, "p1", "b1", 0, 5)
	h.clockIn(t)
	h.tap(t, flow.TagIdle)
	h.press(t, flow.Action{Tag: flow.TagIdleType, IdleType: production.IdleScheduled})

	resp := h.press(t, flow.Action{Tag: flow.TagIdleReason, IdleType: production.IdleScheduled, Reason: production.ReasonBreakdown})
	assert.Equal(t, []string{"Unknown idle reason."}, resp.Notices)
	assert.Equal(t, flow.StateIdle, h.sess.State)
}

func TestReturnNavigation(t *testing.T) {
	h := newHarness(t)
	h.addOrder(t, "o1", 0)
	h.addBundle(t, "b1", "o1", 0)
	h.addProduct(t, "p1", "b1", 0, 5)
	h.clockIn(t)
	require.Equal(t, flow.StateEnterResult, h.sess.State)

	h.tap(t, flow.TagInputCount)
	h.tap(t, flow.TagReturn)
	assert.Equal(t, flow.StateEnterResult, h.sess.State)

	steps := []state.State{flow.StateChooseProduct, flow.StateChooseBundle, flow.StateChooseOrder}
	for _, want := range steps {
		h.tap(t, flow.TagReturn)
		assert.Equal(t, want, h.sess.State)
	}

	resp := h.tap(t, flow.TagReturn)
	assert.False(t, resp.Handled)
	assert.Equal(t, flow.StateChooseOrder, h.sess.State)
}

func TestReturnFromOperatorScreens(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.press(t, flow.Action{Tag: flow.TagLine, ID: "l1"})
	h.press(t, flow.Action{Tag: flow.TagOperator, ID: "op"})

	h.tap(t, flow.TagReturn)
	assert.Equal(t, flow.StateChooseOperator, h.sess.State)
	h.tap(t, flow.TagReturn)
	assert.Equal(t, flow.StateChooseLine, h.sess.State)
	assert.Empty(t, h.sess.Get(flow.KeyLine))
}

func TestMismatchedEventsAreIgnored(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	before := h.sess.Clone()

	resp := h.text(t, "hello")
	assert.False(t, resp.Handled)
	resp = h.press(t, flow.Action{Tag: flow.TagBatch, Quantity: 10})
	assert.False(t, resp.Handled)
	assert.Equal(t, before, h.sess)
}

func TestRoleGate(t *testing.T) {
	h := newHarness(t)
	h.user = adminUser
	h.sess = state.Session{State: flow.StateChooseLine}
	resp := h.press(t, flow.Action{Tag: flow.TagLine, ID: "l1"})
	assert.False(t, resp.Handled)
	assert.Equal(t, flow.StateChooseLine, h.sess.State)

	h.user = operatorUser
	h.sess = state.Session{State: flow.StateAdminMain}
	resp = h.tap(t, flow.TagAddOperator)
	assert.False(t, resp.Handled)

	resp, err := h.engine.Admin(context.Background(), flow.Request{UserID: operatorUser, Lang: "en"})
	require.NoError(t, err)
	assert.False(t, resp.Handled)

	h.user = 12345
	h.sess = state.Session{State: flow.StateChooseLine}
	resp = h.press(t, flow.Action{Tag: flow.TagLine, ID: "l1"})
	assert.False(t, resp.Handled)
}

func TestMissingEntityRedrawsCurrentScreen(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	before := h.sess.Clone()

	resp := h.press(t, flow.Action{Tag: flow.TagLine, ID: "missing"})
	assert.True(t, resp.Handled)
	assert.Equal(t, []string{"Record not found, the list was refreshed."}, resp.Notices)
	assert.Equal(t, before, h.sess)
	assert.Equal(t, []string{flow.TagLine}, buttonTags(resp))
}

func TestMissingProductRedrawsProductList(t *testing.T) {
	h := newHarness(t)
	h.addOrder(t, "o1", 0)
	h.addBundle(t, "b1", "o1", 0)
	h.addProduct(t, "p1", "b1", 0, 5)
	h.addProduct(t, "p2", "b1", 1, 5)
	h.clockIn(t)
	require.Equal(t, flow.StateChooseProduct, h.sess.State)
	before := h.sess.Clone()

	resp := h.press(t, flow.Action{Tag: flow.TagProduct, ID: "gone"})
	assert.Equal(t, []string{"Record not found, the list was refreshed."}, resp.Notices)
	assert.Equal(t, before, h.sess)
	assert.Equal(t, []string{
		flow.TagProduct, flow.TagProduct, flow.TagFinishBundle, flow.TagIdle, flow.TagFinishShift, flow.TagReturn,
	}, buttonTags(resp))
}

func TestUnrenderableScreenFallsBackToLines(t *testing.T) {
	h := newHarness(t)
	h.sess = state.Session{State: flow.StateEnterResult, Data: map[string]string{flow.KeyLine: "l1", flow.KeyOperator: "op"}}

	resp := h.tap(t, flow.TagFinishProduct)
	assert.Equal(t, []string{"Record not found, the list was refreshed."}, resp.Notices)
	assert.Equal(t, flow.StateChooseLine, h.sess.State)
	assert.Empty(t, h.sess.Get(flow.KeyOperator))
	assert.Equal(t, []string{flow.TagLine}, buttonTags(resp))
}

func TestDecimalEntriesFinishProduct(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addOrder(t, "o1", 0)
	h.addBundle(t, "b1", "o1", 0)
	h.addProduct(t, "p1", "b1", 0, 1)
	h.clockIn(t)

	var resp flow.Response
	for i := range 10 {
		require.Equal(t, flow.StateEnterResult, h.sess.State, "entry %d", i)
		h.tap(t, flow.TagInputCount)
		resp = h.text(t, "0.1")
		left := h.product(t, "p1").Quantity
		assert.GreaterOrEqual(t, left, 0.0)
		assert.LessOrEqual(t, left, 1.0)
	}
	assert.Zero(t, h.product(t, "p1").Quantity)
	assert.Equal(t, flow.StateChooseOrder, h.sess.State)
	assert.Contains(t, resp.Notices, "Product p1 is done.")
	assert.Contains(t, resp.Notices, "Order o1 is done.")

	b, err := h.store.Bundles().Find(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, b.Finished)
}

func TestOperatorFromAnotherLineIsRejected(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.store.Lines().Save(ctx, production.ProductionLine{ID: "l2", Name: "Line 2"}))
	require.NoError(t, h.store.Operators().Save(ctx, production.Operator{ID: "bob", Name: "Bob", Rate: 1, LineID: "l2"}))
	h.start(t)
	h.press(t, flow.Action{Tag: flow.TagLine, ID: "l1"})

	resp := h.press(t, flow.Action{Tag: flow.TagOperator, ID: "bob"})
	assert.Len(t, resp.Notices, 1)
	assert.Equal(t, flow.StateChooseOperator, h.sess.State)
}

func TestOperatorPaging(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	for i := range 12 {
		require.NoError(t, h.store.Operators().Save(ctx, production.Operator{
			ID: fmt.Sprintf("x%02d", i), Name: fmt.Sprintf("Op %02d", i), Rate: 1, LineID: "l1",
		}))
	}
	h.start(t)
	resp := h.press(t, flow.Action{Tag: flow.TagLine, ID: "l1"})

	tags := buttonTags(resp)
	assert.Len(t, tags, 12) // 10 operators, next, return
	next := findButton(t, resp, flow.TagPage)
	assert.Equal(t, 1, next.Action.Page)

	resp = h.press(t, next.Action)
	assert.Equal(t, []string{flow.TagOperator, flow.TagOperator, flow.TagOperator, flow.TagPage, flow.TagReturn}, buttonTags(resp))
	assert.Equal(t, "1", h.sess.Get(flow.KeyPage))
}

func TestNoPlanStaysOnActionScreen(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Plans().DeleteAll(context.Background()))

	resp := h.clockIn(t)
	assert.Equal(t, []string{"There is no plan for today."}, resp.Notices)
	assert.Equal(t, flow.StateChooseAction, h.sess.State)
}

func TestFinishShiftForceCompletesBundleAndReports(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addOrder(t, "o1", 0)
	h.addBundle(t, "b1", "o1", 0)
	h.addProduct(t, "p1", "b1", 0, 50)
	h.clockIn(t)
	h.press(t, flow.Action{Tag: flow.TagBatch, Quantity: 10})

	resp := h.tap(t, flow.TagFinishShift)
	assert.Equal(t, flow.StateChooseOperator, h.sess.State)
	assert.Empty(t, h.sess.Get(flow.KeyOperator))
	assert.Equal(t, "l1", h.sess.Get(flow.KeyLine))
	assert.Zero(t, h.product(t, "p1").Quantity)

	require.Len(t, resp.Messages, 2)
	report := resp.Messages[0].Text
	assert.Contains(t, report, "Ann")
	assert.Contains(t, report, "Pay: 250.00")
	assert.Contains(t, report, "Idle: 0.0 min")

	latest, err := h.store.Shifts().Latest(ctx, "op")
	require.NoError(t, err)
	assert.False(t, latest.Open())
}

func TestFinishShiftCountsTodaysIdle(t *testing.T) {
	h := newHarness(t)
	h.addOrder(t, "o1", 0)
	h.addOrder(t, "o2", 1)
	h.addBundle(t, "b1", "o1", 0)
	h.addProduct(t, "p1", "b1", 0, 5)
	h.clockIn(t)
	require.Equal(t, flow.StateChooseOrder, h.sess.State)

	h.tap(t, flow.TagIdle)
	h.press(t, flow.Action{Tag: flow.TagIdleType, IdleType: production.IdleScheduled})
	h.press(t, flow.Action{Tag: flow.TagIdleReason, IdleType: production.IdleScheduled, Reason: production.ReasonCoilReplace})
	h.now = h.now.Add(3 * time.Minute)
	h.tap(t, flow.TagFinishIdle)
	require.Equal(t, flow.StateChooseOrder, h.sess.State)

	resp := h.tap(t, flow.TagFinishShift)
	require.NotEmpty(t, resp.Messages)
	assert.Contains(t, resp.Messages[0].Text, "Idle: 3.0 min")
	assert.Equal(t, 5.0, h.product(t, "p1").Quantity)
}

func TestAdminAddsOperator(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.user = adminUser
	resp, err := h.engine.Admin(ctx, flow.Request{UserID: adminUser, Lang: "en"})
	require.NoError(t, err)
	h.sess = resp.Session
	require.Equal(t, flow.StateAdminMain, h.sess.State)

	h.tap(t, flow.TagAddOperator)
	resp = h.text(t, "   ")
	assert.Equal(t, flow.StateAddOperator, h.sess.State)
	assert.Len(t, resp.Notices, 1)

	h.text(t, "Bob")
	require.Equal(t, flow.StateOperatorRate, h.sess.State)
	h.text(t, "lots")
	assert.Equal(t, flow.StateOperatorRate, h.sess.State)
	h.text(t, "1500")
	require.Equal(t, flow.StateOperatorLine, h.sess.State)

	resp = h.press(t, flow.Action{Tag: flow.TagLine, ID: "l1"})
	assert.Equal(t, []string{"Operator Bob added to line Line 1."}, resp.Notices)
	assert.Equal(t, flow.StateAdminMain, h.sess.State)
	assert.Empty(t, h.sess.Get(flow.KeyOperatorName))

	ops, err := h.store.Operators().ListByLine(ctx, "l1")
	require.NoError(t, err)
	require.Len(t, ops, 2)
	for _, op := range ops {
		if op.Name == "Bob" {
			assert.Equal(t, 1500.0, op.Rate)
		}
	}
}

func TestAdminAddsAccount(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.user = adminUser
	h.sess = state.Session{State: flow.StateAdminMain}

	h.tap(t, flow.TagAddAccount)
	resp := h.text(t, "12")
	assert.Equal(t, []string{"Invalid phone number."}, resp.Notices)
	assert.Equal(t, flow.StateAddAccount, h.sess.State)

	resp = h.text(t, "+7 (900) 555-66-77")
	assert.Equal(t, []string{"Account 79005556677 created."}, resp.Notices)
	assert.Equal(t, flow.StateAdminMain, h.sess.State)
	acc, err := h.store.Accounts().FindByPhone(ctx, "79005556677")
	require.NoError(t, err)
	assert.Equal(t, production.RoleOperator, acc.Role)

	h.tap(t, flow.TagAddAccount)
	resp = h.text(t, "89005556677")
	assert.Equal(t, []string{"An account with this phone already exists."}, resp.Notices)
	assert.Equal(t, flow.StateAdminMain, h.sess.State)
}

func TestAdminReturnGoesToMain(t *testing.T) {
	h := newHarness(t)
	h.user = adminUser
	h.sess = state.Session{State: flow.StateAdminMain}
	h.tap(t, flow.TagAddOperator)
	h.text(t, "Bob")
	h.tap(t, flow.TagReturn)
	assert.Equal(t, flow.StateAdminMain, h.sess.State)
	assert.Empty(t, h.sess.Get(flow.KeyOperatorName))
}

func TestActionPayload(t *testing.T) {
	assert.Equal(t, "2", flow.Action{Tag: flow.TagPage, Page: 2}.Payload())
	assert.Equal(t, "2.5", flow.Action{Tag: flow.TagBatch, Quantity: 2.5}.Payload())
	assert.Equal(t, "scheduled:repair", flow.Action{
		Tag: flow.TagIdleReason, IdleType: production.IdleScheduled, Reason: production.ReasonRepair,
	}.Payload())
	assert.Equal(t, "o1", flow.Action{Tag: flow.TagOrder, ID: "o1"}.Payload())
}
