package purchasebills

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type grnFixture struct {
	api   *fakeAPI
	store *Store
	audit *recordingAudit
	grn   *GRN

	mu    sync.Mutex
	bills map[int64]PurchaseBill
}

func newGRNFixture(t *testing.T) *grnFixture {
	t.Helper()
	f := &grnFixture{api: newFakeAPI(), audit: &recordingAudit{}, bills: map[int64]PurchaseBill{}}
	f.bills[1] = sampleBill(1, 0)
	f.bills[2] = sampleBill(2, 0)
	f.api.listFn = func() ([]PurchaseBill, error) {
		return []PurchaseBill{f.bill(1), f.bill(2)}, nil
	}
	f.api.lineFn = func(lineID int64, received bool) (PurchaseBill, error) {
		return f.serverToggleLine(lineID, received), nil
	}
	f.api.hardcopyFn = func(billID int64, received, handed bool) (PurchaseBill, error) {
		return f.serverSetHardcopy(billID, received, handed), nil
	}
	f.store = NewStore(f.api, discardLogger)
	_, err := f.store.FetchList(context.Background())
	require.NoError(t, err)
	f.grn = NewGRN(f.api, f.store, f.audit, nil, discardLogger)
	return f
}

func (f *grnFixture) bill(id int64) PurchaseBill {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bills[id].Clone()
}

func (f *grnFixture) serverToggleLine(lineID int64, received bool) PurchaseBill {
	f.mu.Lock()
	defer f.mu.Unlock()
	billID := lineID / 100
	bill := f.bills[billID].Clone()
	all := true
	for i := range bill.BillItems {
		if bill.BillItems[i].ID == lineID {
			bill.BillItems[i].GRNReceivedForItem = received
		}
		all = all && bill.BillItems[i].GRNReceivedForItem
	}
	bill.OverallGRNStatus = GRNStatusPartial
	if all {
		bill.OverallGRNStatus = GRNStatusFull
	}
	bill.UpdatedAt.Time = bill.UpdatedAt.Add(time.Second)
	f.bills[billID] = bill
	return bill.Clone()
}

func (f *grnFixture) serverSetHardcopy(billID int64, received, handed bool) PurchaseBill {
	f.mu.Lock()
	defer f.mu.Unlock()
	bill := f.bills[billID].Clone()
	bill.GRNHardcopyReceivedByPurchaser = received
	bill.GRNHardcopyHandedToAccountant = handed
	bill.UpdatedAt.Time = bill.UpdatedAt.Add(time.Second)
	f.bills[billID] = bill
	return bill.Clone()
}

func TestLineReceiptAppliesServerResponse(t *testing.T) {
	f := newGRNFixture(t)

	bill, err := f.grn.UpdateLineReceipt(context.Background(), "u-1", 101, true, strPtr("ok"))
	require.NoError(t, err)
	require.Equal(t, GRNStatusPartial, bill.OverallGRNStatus)

	stored, ok := f.store.Bill(1)
	require.True(t, ok)
	require.True(t, stored.BillItems[0].GRNReceivedForItem)
	require.Equal(t, GRNStatusPartial, stored.OverallGRNStatus)

	status := f.grn.Status()
	require.Equal(t, StatusSucceeded, status.Line.Status)
	require.Empty(t, status.Line.InFlight)
	require.Equal(t, StatusIdle, status.Header.Status)
	require.Equal(t, []string{"GRN_LINE_UPDATE"}, f.audit.actions())
}

func TestLineReceiptIsNotOptimistic(t *testing.T) {
	f := newGRNFixture(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.api.lineFn = func(lineID int64, received bool) (PurchaseBill, error) {
		close(entered)
		<-release
		return f.serverToggleLine(lineID, received), nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.grn.UpdateLineReceipt(context.Background(), "", 101, true, nil)
		done <- err
	}()
	<-entered

	stored, _ := f.store.Bill(1)
	require.False(t, stored.BillItems[0].GRNReceivedForItem)
	status := f.grn.Status()
	require.Equal(t, StatusLoading, status.Line.Status)
	require.Equal(t, []int64{101}, status.Line.InFlight)

	close(release)
	require.NoError(t, <-done)
	stored, _ = f.store.Bill(1)
	require.True(t, stored.BillItems[0].GRNReceivedForItem)
}

func TestSameLineIsGuardedOtherTargetsProceed(t *testing.T) {
	f := newGRNFixture(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.api.lineFn = func(lineID int64, received bool) (PurchaseBill, error) {
		if lineID == 101 {
			close(entered)
			<-release
		}
		return f.serverToggleLine(lineID, received), nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.grn.UpdateLineReceipt(context.Background(), "", 101, true, nil)
		done <- err
	}()
	<-entered

	_, err := f.grn.UpdateLineReceipt(context.Background(), "", 101, false, nil)
	require.ErrorIs(t, err, ErrUpdateInFlight)

	_, err = f.grn.UpdateLineReceipt(context.Background(), "", 201, true, nil)
	require.NoError(t, err)

	_, err = f.grn.ToggleHardcopy(context.Background(), "", 1, HardcopyReceivedByPurchaser)
	require.NoError(t, err)

	require.Equal(t, StatusLoading, f.grn.Status().Line.Status)

	close(release)
	require.NoError(t, <-done)
	require.Equal(t, StatusSucceeded, f.grn.Status().Line.Status)

	bill, _ := f.store.Bill(1)
	require.True(t, bill.BillItems[0].GRNReceivedForItem)
	require.True(t, bill.GRNHardcopyReceivedByPurchaser)
}

func TestLineReceiptFailureLeavesStoreUnchanged(t *testing.T) {
	f := newGRNFixture(t)
	f.api.lineFn = func(int64, bool) (PurchaseBill, error) {
		return PurchaseBill{}, errors.New("connection reset")
	}
	before, _ := f.store.Bill(1)

	_, err := f.grn.UpdateLineReceipt(context.Background(), "", 101, true, nil)
	require.Error(t, err)

	after, _ := f.store.Bill(1)
	require.Equal(t, before, after)

	status := f.grn.Status()
	require.Equal(t, StatusFailed, status.Line.Status)
	require.Equal(t, lineFallbackMessage, status.Line.Error)
	require.Empty(t, f.audit.actions())

	f.grn.ResetLineChannel()
	status = f.grn.Status()
	require.Equal(t, StatusIdle, status.Line.Status)
	require.Empty(t, status.Line.Error)
}

func TestLineFailureStaysVisibleUntilThatLineIsRetried(t *testing.T) {
	f := newGRNFixture(t)
	f.api.lineFn = func(lineID int64, received bool) (PurchaseBill, error) {
		if lineID == 101 {
			return PurchaseBill{}, &userFacingError{msg: "Line is closed"}
		}
		return f.serverToggleLine(lineID, received), nil
	}

	_, err := f.grn.UpdateLineReceipt(context.Background(), "", 101, true, nil)
	require.Error(t, err)
	_, err = f.grn.UpdateLineReceipt(context.Background(), "", 102, true, nil)
	require.NoError(t, err)

	status := f.grn.Status()
	require.Equal(t, StatusFailed, status.Line.Status)
	require.Equal(t, "Line is closed", status.Line.Error)

	f.api.lineFn = func(lineID int64, received bool) (PurchaseBill, error) {
		return f.serverToggleLine(lineID, received), nil
	}
	_, err = f.grn.UpdateLineReceipt(context.Background(), "", 101, true, nil)
	require.NoError(t, err)

	status = f.grn.Status()
	require.Equal(t, StatusSucceeded, status.Line.Status)
	require.Empty(t, status.Line.Error)
}

func TestToggleHardcopySendsBothFlags(t *testing.T) {
	f := newGRNFixture(t)

	_, err := f.grn.ToggleHardcopy(context.Background(), "", 2, HardcopyReceivedByPurchaser)
	require.NoError(t, err)
	bill, err := f.grn.ToggleHardcopy(context.Background(), "", 2, HardcopyHandedToAccountant)
	require.NoError(t, err)
	require.True(t, bill.GRNHardcopyReceivedByPurchaser)
	require.True(t, bill.GRNHardcopyHandedToAccountant)

	bill, err = f.grn.ToggleHardcopy(context.Background(), "", 2, HardcopyReceivedByPurchaser)
	require.NoError(t, err)
	require.False(t, bill.GRNHardcopyReceivedByPurchaser)
	require.True(t, bill.GRNHardcopyHandedToAccountant)

	require.Equal(t, [][2]bool{{true, false}, {true, true}, {false, true}}, f.api.hardcopyArg)
	require.Equal(t, StatusSucceeded, f.grn.Status().Header.Status)
}

func TestToggleHardcopyRejectsUnknownTargets(t *testing.T) {
	f := newGRNFixture(t)

	_, err := f.grn.ToggleHardcopy(context.Background(), "", 42, HardcopyReceivedByPurchaser)
	require.ErrorIs(t, err, ErrBillNotFound)

	_, err = f.grn.ToggleHardcopy(context.Background(), "", 1, "approved")
	require.ErrorIs(t, err, ErrValidation)
	require.Empty(t, f.api.hardcopyArg)
}

func TestHeaderChannelFailureIsIndependent(t *testing.T) {
	f := newGRNFixture(t)
	f.api.hardcopyFn = func(int64, bool, bool) (PurchaseBill, error) {
		return PurchaseBill{}, &userFacingError{msg: "Bill is locked"}
	}

	_, err := f.grn.UpdateHardcopyStatus(context.Background(), "", 1, true, false)
	require.Error(t, err)
	_, err = f.grn.UpdateLineReceipt(context.Background(), "", 101, true, nil)
	require.NoError(t, err)

	status := f.grn.Status()
	require.Equal(t, StatusFailed, status.Header.Status)
	require.Equal(t, "Bill is locked", status.Header.Error)
	require.Equal(t, StatusSucceeded, status.Line.Status)

	f.grn.ResetHeaderChannel()
	require.Equal(t, StatusIdle, f.grn.Status().Header.Status)
}
