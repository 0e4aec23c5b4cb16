package ledger

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"guild_ledger/internal/config"
	"guild_ledger/internal/ledger/ledgertest"
	"guild_ledger/internal/metrics"
	"guild_ledger/internal/retry"
	"guild_ledger/internal/sheets"
)

var errRateLimited = &googleapi.Error{Code: http.StatusTooManyRequests, Message: "quota exceeded"}

// Columns: C Rank, D Username, then stats. Blocks start at rows 2 and 10.
func mainGrid() [][]string {
	return [][]string{
		{"Main roster"},
		{"", "", "Rank", "Username", "EP", "CEP", "Total EP", "Total CEP"},
		{"", "", "ST", "U2", "3", "0", "10", "0"},
		{"", "", "ST", "U3", "0", "1", "5", "1"},
		{"", "", "ST", "Ghostly", "1", "0", "1", "0"},
		{"", "", "ST", "U4", "abc", "", "", ""},
		{"", "", "ST", "Dual", "0", "0", "0", "0"},
		{},
		{},
		{"", "", "Rank", "Username", "Total EP", "EP"},
		{"", "", "SGT", "U9", "7", "2"},
	}
}

func officerGrid() [][]string {
	return [][]string{
		{"Officers"},
		{"", "", "Rank", "Username", "OP", "Events Hosted", "Company Events Hosted"},
		{"", "", "LT", "U1", "4", "1", "0"},
		{"", "", "CPT", "Dual", "0", "0", "0"},
	}
}

type sleepRecorder struct {
	sleeps []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.sleeps = append(r.sleeps, d)
	return nil
}

type fixture struct {
	ledger  *Ledger
	book    memBook
	main    *ledgertest.Sheet
	officer *ledgertest.Sheet
	sleeper *sleepRecorder
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		main:    ledgertest.NewSheet("main/Main", mainGrid()),
		officer: ledgertest.NewSheet("officer/Officers", officerGrid()),
		sleeper: &sleepRecorder{},
		metrics: metrics.New(),
	}
	f.book = memBook{SectionMain: f.main, SectionOfficer: f.officer}

	write := retry.NewPolicy(config.DefaultResilienceConfig.SheetWrite, sheets.IsRateLimited)
	write.Sleep = f.sleeper.sleep
	read := retry.NewPolicy(config.DefaultResilienceConfig.SheetRead, sheets.IsRateLimited)
	read.Sleep = f.sleeper.sleep

	cfg := config.DefaultLedgerConfig()
	cfg.HeaderRows = []int{2, 10}
	cfg.Onboarding.InsertRow = 3

	l, err := New(f.book, cfg, WithWritePolicy(write), WithReadPolicy(read), WithMetrics(f.metrics))
	require.NoError(t, err)
	f.ledger = l
	return f
}

func TestApplyDelta(t *testing.T) {
	tests := []struct {
		name    string
		current int
		amount  int
		isAdd   bool
		want    int
	}{
		{"add", 3, 2, true, 5},
		{"subtract", 5, 2, false, 3},
		{"subtract to zero", 2, 2, false, 0},
		{"clamp below zero", 1, 4, false, 0},
		{"subtract from zero", 0, 3, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, applyDelta(tt.current, tt.amount, tt.isAdd))
		})
	}
}

func TestParseStat(t *testing.T) {
	tests := []struct {
		text string
		want StatValue
	}{
		{"12", Integer(12)},
		{" 7 ", Integer(7)},
		{"1,234", Integer(1234)},
		{"3.0", Integer(3)},
		{"", Unparseable},
		{"abc", Unparseable},
		{"-2", Unparseable},
		{"2.5", Unparseable},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := ParseStat(tt.text)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Int(), got.Int())
		})
	}
}

func TestPendingUpdateDelta(t *testing.T) {
	assert.Equal(t, 3, PendingUpdate{Amount: 3, IsAdd: true}.Delta())
	assert.Equal(t, -3, PendingUpdate{Amount: 3}.Delta())
}

func TestAddPointsMirrorsTotalEP(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.ledger.AddPoints(ctx, "U2", HeaderEP, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, "6", f.main.At(3, 5))
	assert.Equal(t, "13", f.main.At(3, 7))
	assert.Equal(t, 1, f.main.Writes(), "stat and total share one batch write")
	assert.Equal(t, 0, f.officer.Writes())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.UpdatesApplied.WithLabelValues("Main", "EP")))
}

func TestAddCEPLeavesTotalEPAlone(t *testing.T) {
	f := newFixture(t)

	ok, err := f.ledger.AddPoints(context.Background(), "U3", HeaderCEP, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, "3", f.main.At(4, 6))
	assert.Equal(t, "3", f.main.At(4, 8))
	assert.Equal(t, "5", f.main.At(4, 7))
}

func TestRemovePointsClampsAtZero(t *testing.T) {
	f := newFixture(t)

	ok, err := f.ledger.RemovePoints(context.Background(), "U2", HeaderEP, 5)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, "0", f.main.At(3, 5))
	assert.Equal(t, "5", f.main.At(3, 7), "total is clamped independently")
}

func TestRemovePointsForMissingUser(t *testing.T) {
	f := newFixture(t)

	ok, err := f.ledger.RemovePoints(context.Background(), "Ghost", HeaderEP, 3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, f.book.totalWrites())
}

func TestAdjustRejectsNonPositiveAmount(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.AddPoints(context.Background(), "U2", HeaderEP, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Equal(t, 0, f.book.totalWrites())
}

func TestUnparseableCellCountsAsZero(t *testing.T) {
	f := newFixture(t)

	ok, err := f.ledger.AddPoints(context.Background(), "U4", HeaderEP, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2", f.main.At(6, 5))
	assert.Equal(t, "2", f.main.At(6, 7))
}

func TestOfficerPointsHaveNoTotal(t *testing.T) {
	f := newFixture(t)

	ok, err := f.ledger.AddPoints(context.Background(), "U1", HeaderOP, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "6", f.officer.At(3, 5))
	assert.Equal(t, 0, f.main.Writes())
}

func TestFindRowExactMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rows := f.ledger.Rows()

	lookup, err := rows.FindRow(ctx, SectionMain, "Ghostly")
	require.NoError(t, err)
	assert.Equal(t, RowLookup{Row: 5, Found: true}, lookup)

	for _, name := range []string{"Ghost", "U", "ghostly", "Ghostly "} {
		lookup, err := rows.FindRow(ctx, SectionMain, name)
		require.NoError(t, err)
		assert.False(t, lookup.Found, name)
	}
}

func TestFindRowUsesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rows := f.ledger.Rows()

	_, err := rows.FindRow(ctx, SectionMain, "U3")
	require.NoError(t, err)
	lookup, err := rows.FindRow(ctx, SectionMain, "U3")
	require.NoError(t, err)

	assert.Equal(t, 4, lookup.Row)
	assert.Equal(t, 1, f.main.Reads())
}

func TestFindSectionPrefersOfficer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rows := f.ledger.Rows()

	section, found, err := rows.FindSection(ctx, "Dual")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, SectionOfficer, section)

	section, found, err = rows.FindSection(ctx, "U2")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, SectionMain, section)

	_, found, err = rows.FindSection(ctx, "Nobody")
	require.NoError(t, err)
	assert.False(t, found)

	section, err = rows.SectionFor(ctx, "Nobody")
	require.NoError(t, err)
	assert.Equal(t, SectionMain, section)
}

func TestFindSectionsReadsEachSectionOnce(t *testing.T) {
	f := newFixture(t)

	got, err := f.ledger.Rows().FindSections(context.Background(), []string{"U1", "U2", "U3", "Dual", "Nobody"})
	require.NoError(t, err)

	assert.Equal(t, map[string]Section{
		"U1":   SectionOfficer,
		"Dual": SectionOfficer,
		"U2":   SectionMain,
		"U3":   SectionMain,
	}, got)
	assert.Equal(t, 1, f.officer.Reads())
	assert.Equal(t, 1, f.main.Reads())
}

func TestHeaderRow(t *testing.T) {
	f := newFixture(t)
	cols := f.ledger.Columns()

	_, ok := cols.HeaderRow(1)
	assert.False(t, ok)

	for row, want := range map[int]int{2: 2, 3: 2, 9: 2, 10: 10, 11: 10, 500: 10} {
		got, ok := cols.HeaderRow(row)
		assert.True(t, ok)
		assert.Equal(t, want, got, "row %d", row)
	}
}

func TestFindColumnPerBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lookup, err := f.ledger.FindColumn(ctx, SectionMain, 3, HeaderEP)
	require.NoError(t, err)
	assert.Equal(t, ColumnLookup{Column: 5, HeaderRow: 2, Found: true}, lookup)

	lookup, err = f.ledger.FindColumn(ctx, SectionMain, 11, HeaderEP)
	require.NoError(t, err)
	assert.Equal(t, ColumnLookup{Column: 6, HeaderRow: 10, Found: true}, lookup)

	lookup, err = f.ledger.FindColumn(ctx, SectionMain, 1, HeaderEP)
	require.NoError(t, err)
	assert.False(t, lookup.Found, "rows above the first boundary have no block")
}

func TestFindColumnIsStableWithinBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for row := 3; row <= 9; row++ {
		lookup, err := f.ledger.FindColumn(ctx, SectionMain, row, HeaderTotalEP)
		require.NoError(t, err)
		assert.Equal(t, 7, lookup.Column, "row %d", row)
	}
	assert.Equal(t, 1, f.main.HeaderReads(), "header row read once per block")

	lookup, err := f.ledger.FindColumn(ctx, SectionMain, 3, HeaderCEP)
	require.NoError(t, err)
	assert.Equal(t, 6, lookup.Column)
	assert.Equal(t, 1, f.main.HeaderReads(), "sibling headers come from the same read")
}

func TestFindColumnCachesAbsentHeader(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		lookup, err := f.ledger.FindColumn(ctx, SectionMain, 11, HeaderCEP)
		require.NoError(t, err)
		assert.False(t, lookup.Found)
	}
	assert.Equal(t, 1, f.main.HeaderReads())
}

func TestUpdateInSecondBlock(t *testing.T) {
	f := newFixture(t)

	ok, err := f.ledger.AddPoints(context.Background(), "U9", HeaderEP, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "3", f.main.At(11, 6))
	assert.Equal(t, "8", f.main.At(11, 5))
}

func TestMissingColumnIsSkipped(t *testing.T) {
	f := newFixture(t)

	ok, err := f.ledger.AddPoints(context.Background(), "U9", HeaderCEP, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, f.main.Writes())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.UpdatesSkipped.WithLabelValues("Main", "column_not_found")))
}

func TestReplayMatchesClampedRunningSum(t *testing.T) {
	deltas := []int{3, -5, 2, -1, 4}
	updates := make([]PendingUpdate, len(deltas))
	for i, d := range deltas {
		u := PendingUpdate{Section: SectionMain, Username: "U3", Header: HeaderEP, Amount: d, IsAdd: d > 0}
		if d < 0 {
			u.Amount = -d
		}
		updates[i] = u
	}

	batched := newFixture(t)
	result, err := batched.ledger.Commit(context.Background(), updates)
	require.NoError(t, err)
	assert.Len(t, result.Applied, len(updates))
	assert.Equal(t, 1, batched.main.Writes())

	single := newFixture(t)
	for _, u := range updates {
		ok, err := single.ledger.ApplyUpdate(context.Background(), u)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, len(updates), single.main.Writes())

	// EP: 0 -> 3 -> 0 -> 2 -> 1 -> 5, Total EP: 5 -> 8 -> 3 -> 5 -> 4 -> 8
	for _, f := range []*fixture{batched, single} {
		assert.Equal(t, "5", f.main.At(4, 5))
		assert.Equal(t, "8", f.main.At(4, 7))
	}
}

func TestCommitWritesOncePerSection(t *testing.T) {
	f := newFixture(t)
	updates := []PendingUpdate{
		{Section: SectionOfficer, Username: "U1", Header: HeaderOP, Amount: 2, IsAdd: true},
		{Section: SectionMain, Username: "U2", Header: HeaderEP, Amount: 2, IsAdd: true},
		{Section: SectionMain, Username: "U3", Header: HeaderEP, Amount: 2, IsAdd: true},
		{Section: SectionOfficer, Username: "U1", Header: HeaderEventsHosted, Amount: 1, IsAdd: true},
	}

	result, err := f.ledger.Commit(context.Background(), updates)
	require.NoError(t, err)

	assert.Len(t, result.Applied, 4)
	assert.Empty(t, result.Skipped)
	assert.Equal(t, 2, result.Writes)
	assert.Equal(t, 1, f.main.Writes())
	assert.Equal(t, 1, f.officer.Writes())
	assert.Equal(t, 1, f.main.Reads())
	assert.Equal(t, 1, f.officer.Reads())

	assert.Equal(t, "6", f.officer.At(3, 5))
	assert.Equal(t, "2", f.officer.At(3, 6))
	assert.Equal(t, "5", f.main.At(3, 5))
	assert.Equal(t, "12", f.main.At(3, 7))
	assert.Equal(t, "2", f.main.At(4, 5))
	assert.Equal(t, "7", f.main.At(4, 7))
}

func TestCommitSkipsUnknownUser(t *testing.T) {
	f := newFixture(t)
	updates := []PendingUpdate{
		{Section: SectionMain, Username: "Ghost", Header: HeaderEP, Amount: 2, IsAdd: true},
		{Section: SectionMain, Username: "U2", Header: HeaderEP, Amount: 2, IsAdd: true},
	}

	result, err := f.ledger.Commit(context.Background(), updates)
	require.NoError(t, err)

	require.Len(t, result.Skipped, 1)
	assert.ErrorIs(t, result.Skipped[0].Reason, ErrRowNotFound)
	assert.Len(t, result.Applied, 1)
	assert.Equal(t, 1, f.main.Writes())
}

func TestCommitRetriesRateLimitedWrite(t *testing.T) {
	f := newFixture(t)
	f.main.FailWrites(errRateLimited, errRateLimited, errRateLimited)

	ok, err := f.ledger.AddPoints(context.Background(), "U2", HeaderEP, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}, f.sleeper.sleeps)
	assert.Equal(t, 4, f.main.Writes())
	assert.Equal(t, "4", f.main.At(3, 5))
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.RetrySleeps))
}

func TestCommitRetriesExhausted(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 6; i++ {
		f.main.FailWrites(errRateLimited)
	}

	result, err := f.ledger.Commit(context.Background(), []PendingUpdate{
		{Section: SectionMain, Username: "U2", Header: HeaderEP, Amount: 1, IsAdd: true},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrRetriesExhausted)

	assert.Equal(t, 6, f.main.Writes())
	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second,
	}, f.sleeper.sleeps)
	assert.Len(t, result.Failed, 1)
	assert.Empty(t, result.Applied)
	assert.Equal(t, "3", f.main.At(3, 5))
}

func TestCommitDoesNotRetryOtherErrors(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")
	f.main.FailWrites(boom)

	_, err := f.ledger.AddPoints(context.Background(), "U2", HeaderEP, 1)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, f.main.Writes())
	assert.Empty(t, f.sleeper.sleeps)
}

func TestCommitRetriesRateLimitedRead(t *testing.T) {
	f := newFixture(t)
	f.main.FailReads(errRateLimited)

	result, err := f.ledger.Commit(context.Background(), []PendingUpdate{
		{Section: SectionMain, Username: "U2", Header: HeaderEP, Amount: 1, IsAdd: true},
	})
	require.NoError(t, err)
	assert.Len(t, result.Applied, 1)
	assert.Len(t, f.sleeper.sleeps, 1)
}

func TestAddPointsRetriesRateLimitedLookup(t *testing.T) {
	f := newFixture(t)
	f.officer.FailReads(errRateLimited)

	ok, err := f.ledger.AddPoints(context.Background(), "U2", HeaderEP, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Len(t, f.sleeper.sleeps, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RetrySleeps))
	assert.Equal(t, "4", f.main.At(3, 5))
}

func TestInspectRetriesRateLimitedRead(t *testing.T) {
	f := newFixture(t)
	f.officer.FailReads(errRateLimited)

	profile, found, err := f.ledger.Inspect(context.Background(), "U1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, SectionOfficer, profile.Section)
	assert.Len(t, f.sleeper.sleeps, 1)
}

func TestAddPointsReadsEachSectionOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.ledger.AddPoints(ctx, "U2", HeaderEP, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, f.officer.Reads())
	assert.Equal(t, 1, f.main.Reads())

	ok, err = f.ledger.AddPoints(ctx, "U1", HeaderOP, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, f.officer.Reads())
	assert.Equal(t, 1, f.main.Reads(), "officer rows never touch Main")
	assert.Equal(t, "5", f.officer.At(3, 5))
}

func TestLocateSectionsReturnsRowsRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	found, snapshots, err := f.ledger.Rows().LocateSections(ctx, []string{"U1"})
	require.NoError(t, err)
	assert.Equal(t, SectionOfficer, found["U1"])
	require.Contains(t, snapshots, SectionOfficer)
	assert.NotContains(t, snapshots, SectionMain)

	_, snapshots, err = f.ledger.Rows().LocateSections(ctx, []string{"U1"})
	require.NoError(t, err)
	assert.Empty(t, snapshots, "cached rows need no read")
	assert.Equal(t, 1, f.officer.Reads())
}

func TestCommitSnapshotsSkipsRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	found, snapshots, err := f.ledger.Rows().LocateSections(ctx, []string{"U2"})
	require.NoError(t, err)
	require.Equal(t, SectionMain, found["U2"])

	result, err := f.ledger.CommitSnapshots(ctx, []PendingUpdate{
		{Section: SectionMain, Username: "U2", Header: HeaderEP, Amount: 2, IsAdd: true},
	}, snapshots)
	require.NoError(t, err)
	assert.Len(t, result.Applied, 1)
	assert.Equal(t, 1, f.main.Reads())
	assert.Equal(t, "5", f.main.At(3, 5))
}

func TestNewLeavesCallerPoliciesUntouched(t *testing.T) {
	write := retry.NewPolicy(config.DefaultResilienceConfig.SheetWrite, sheets.IsRateLimited)
	read := retry.NewPolicy(config.DefaultResilienceConfig.SheetRead, sheets.IsRateLimited)
	book := memBook{
		SectionMain:    ledgertest.NewSheet("main/Main", mainGrid()),
		SectionOfficer: ledgertest.NewSheet("officer/Officers", officerGrid()),
	}
	cfg := config.DefaultLedgerConfig()

	first, err := New(book, cfg, WithWritePolicy(write), WithReadPolicy(read), WithMetrics(metrics.New()))
	require.NoError(t, err)
	second, err := New(book, cfg, WithWritePolicy(write), WithReadPolicy(read), WithMetrics(metrics.New()))
	require.NoError(t, err)

	assert.Nil(t, write.OnRetry)
	assert.Nil(t, read.OnRetry)
	assert.NotSame(t, first.writePolicy, second.writePolicy)
	assert.NotNil(t, first.readPolicy.OnRetry)
	assert.Equal(t, write.Config, first.writePolicy.Config)
}

func TestSectionFailureDoesNotStopOthers(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")
	f.officer.FailWrites(boom)

	result, err := f.ledger.Commit(context.Background(), []PendingUpdate{
		{Section: SectionOfficer, Username: "U1", Header: HeaderOP, Amount: 2, IsAdd: true},
		{Section: SectionMain, Username: "U2", Header: HeaderEP, Amount: 1, IsAdd: true},
	})
	assert.ErrorIs(t, err, boom)

	require.Len(t, result.Failed, 1)
	assert.Equal(t, "U1", result.Failed[0].Username)
	require.Len(t, result.Applied, 1)
	assert.Equal(t, "U2", result.Applied[0].Update.Username)
	assert.Equal(t, "4", f.main.At(3, 5))
	assert.Equal(t, "4", f.officer.At(3, 5))
}

func TestStaleCachedRowIsRescanned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lookup, err := f.ledger.Rows().FindRow(ctx, SectionMain, "U3")
	require.NoError(t, err)
	require.Equal(t, 4, lookup.Row)

	// someone inserts a row above U3 directly in the sheet
	require.NoError(t, f.main.InsertRow(ctx, []interface{}{"", "", "ST", "Late", 0, 0, 0, 0}, 3))

	ok, err := f.ledger.AddPoints(ctx, "U3", HeaderEP, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, "1", f.main.At(5, 5))
	assert.Equal(t, "3", f.main.At(4, 5), "U2 moved to row 4 and is untouched")

	lookup, err = f.ledger.Rows().FindRow(ctx, SectionMain, "U3")
	require.NoError(t, err)
	assert.Equal(t, 5, lookup.Row)
}

func TestInvalidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rows := f.ledger.Rows()

	_, err := rows.FindRow(ctx, SectionMain, "U2")
	require.NoError(t, err)
	_, err = rows.FindRow(ctx, SectionMain, "U3")
	require.NoError(t, err)
	assert.Equal(t, 2, f.main.Reads())

	f.ledger.Invalidate(SectionMain, "U2")
	_, err = rows.FindRow(ctx, SectionMain, "U3")
	require.NoError(t, err)
	assert.Equal(t, 2, f.main.Reads())
	_, err = rows.FindRow(ctx, SectionMain, "U2")
	require.NoError(t, err)
	assert.Equal(t, 3, f.main.Reads())

	f.ledger.InvalidateSection(SectionMain)
	_, err = rows.FindRow(ctx, SectionMain, "U3")
	require.NoError(t, err)
	assert.Equal(t, 4, f.main.Reads())
}

func TestRowCacheIsBounded(t *testing.T) {
	cache := NewRowCache(2, nil)
	cache.add(rowKey{SectionMain, "a"}, 1)
	cache.add(rowKey{SectionMain, "b"}, 2)
	cache.add(rowKey{SectionMain, "c"}, 3)

	assert.Equal(t, 2, cache.len())
	_, ok := cache.get(rowKey{SectionMain, "a"})
	assert.False(t, ok)
}

func TestInspect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.main.Paint(3, 4, "#00FF00")
	f.officer.Paint(4, 4, "#ff0000")

	profile, found, err := f.ledger.Inspect(ctx, "U2")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, SectionMain, profile.Section)
	assert.Equal(t, 3, profile.Row)
	assert.Equal(t, "ST", profile.Stat("Rank"))
	assert.Equal(t, "3", profile.Stat(HeaderEP))
	assert.Equal(t, "10", profile.Stat(HeaderTotalEP))
	assert.Equal(t, QuotaPassed, profile.Status)

	profile, found, err = f.ledger.Inspect(ctx, "Dual")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, SectionOfficer, profile.Section)
	assert.Equal(t, QuotaFailed, profile.Status)

	profile, found, err = f.ledger.Inspect(ctx, "U3")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, QuotaUnknown, profile.Status)

	_, found, err = f.ledger.Inspect(ctx, "Ghost")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestOnboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// warm the cache so the insert has something to invalidate
	_, err := f.ledger.Rows().FindRow(ctx, SectionMain, "U2")
	require.NoError(t, err)

	row, err := f.ledger.Onboard(ctx, Member{Username: "Newbie", Rank: "ST"})
	require.NoError(t, err)
	assert.Equal(t, 3, row)

	assert.Equal(t, "ST", f.main.At(3, 3))
	assert.Equal(t, "Newbie", f.main.At(3, 4))
	for col := 5; col <= 9; col++ {
		assert.Equal(t, "0", f.main.At(3, col))
	}
	assert.Equal(t, "#b7e1cd", f.main.Color(3, 4))

	lookup, err := f.ledger.Rows().FindRow(ctx, SectionMain, "U2")
	require.NoError(t, err)
	assert.Equal(t, 4, lookup.Row)
}

func TestOnboardExistingUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.Onboard(context.Background(), Member{Username: "U1", Rank: "ST"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.Equal(t, 0, f.main.Inserts())
}

func TestOnboardingRow(t *testing.T) {
	values := onboardingRow(3, 4, 2, "ST", "Newbie")
	assert.Equal(t, []interface{}{"", "", "ST", "Newbie", 0, 0}, values)
}

func TestSheetBookUnknownSection(t *testing.T) {
	book := NewSheetBook(nil, map[string]config.SectionConfig{"Main": {Worksheet: "Main"}})
	_, err := book.Worksheet(context.Background(), SectionMain)
	assert.ErrorIs(t, err, ErrUnknownSection)
	_, err = book.Worksheet(context.Background(), SectionOfficer)
	assert.ErrorIs(t, err, ErrUnknownSection)
}

func TestParseSection(t *testing.T) {
	s, ok := ParseSection(" officer ")
	assert.True(t, ok)
	assert.Equal(t, SectionOfficer, s)
	_, ok = ParseSection("Reserve")
	assert.False(t, ok)
}
