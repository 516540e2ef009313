package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/splitsync/internal/client/localid"
	"github.com/dmitrijs2005/splitsync/internal/client/models"
	"github.com/dmitrijs2005/splitsync/internal/client/repositories/entities"
	"github.com/dmitrijs2005/splitsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/splitsync/internal/client/syncer"
	"github.com/dmitrijs2005/splitsync/internal/client/translate"
)

type runnerFunc func(ctx context.Context, env syncer.Env) (*syncer.Report, error)

func (f runnerFunc) Run(ctx context.Context, env syncer.Env) (*syncer.Report, error) {
	return f(ctx, env)
}

type ledgerFixture struct {
	svc   *LedgerService
	repo  *entities.SQLiteRepository
	index *translate.Index
	me    int64
}

func newLedger(t *testing.T, runner SyncRunner) *ledgerFixture {
	t.Helper()
	ctx := context.Background()
	db := setupDB(t)
	ids, err := localid.New(ctx, metadata.NewSQLiteRepository(db), 0)
	require.NoError(t, err)
	ix, err := translate.NewIndex(ctx, db)
	require.NoError(t, err)

	svc := NewLedgerService(db, ids, ix, runner)
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	me, err := svc.EnsureProfile(ctx, Session{AccountID: 42, Username: "ann"})
	require.NoError(t, err)
	return &ledgerFixture{svc: svc, repo: entities.NewSQLiteRepository(db), index: ix, me: me}
}

func (f *ledgerFixture) status(t *testing.T, typ models.EntityType, id int64) models.SyncStatus {
	t.Helper()
	rec, err := f.repo.GetByLocalID(context.Background(), typ, id)
	require.NoError(t, err)
	return rec.Status
}

func TestEnsureProfile_IsStableAndSynced(t *testing.T) {
	f := newLedger(t, nil)

	again, err := f.svc.EnsureProfile(context.Background(), Session{AccountID: 42, Username: "ann"})
	require.NoError(t, err)
	require.Equal(t, f.me, again)
	require.Equal(t, models.StatusSynced, f.status(t, models.TypeUser, f.me))

	serverID, ok := f.index.ServerID(models.TypeUser, f.me)
	require.True(t, ok)
	require.EqualValues(t, 42, serverID)

	_, err = f.svc.EnsureProfile(context.Background(), Session{})
	require.ErrorIs(t, err, syncer.ErrNoUser)
}

func TestCreateGroup_AddsCreatorAsMember(t *testing.T) {
	ctx := context.Background()
	f := newLedger(t, nil)

	gid, err := f.svc.CreateGroup(ctx, f.me, "Trip", "EUR")
	require.NoError(t, err)
	require.Equal(t, models.StatusPendingSync, f.status(t, models.TypeGroup, gid))

	groups, err := f.svc.Groups(ctx, f.me)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, GroupView{
		LocalID:  gid,
		Name:     "Trip",
		Currency: "EUR",
		Status:   models.StatusPendingSync,
		Members:  1,
	}, groups[0])
}

func TestCreateGroup_Validation(t *testing.T) {
	ctx := context.Background()
	f := newLedger(t, nil)

	_, err := f.svc.CreateGroup(ctx, f.me, "", "EUR")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.CreateGroup(ctx, 9999, "Trip", "EUR")
	require.ErrorIs(t, err, ErrInvalidInput)

	groups, err := f.svc.Groups(ctx, f.me)
	require.NoError(t, err)
	require.Empty(t, groups)
}

func TestAddMember_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newLedger(t, nil)
	gid, err := f.svc.CreateGroup(ctx, f.me, "Trip", "EUR")
	require.NoError(t, err)

	first, err := f.svc.AddMember(ctx, gid, f.me)
	require.NoError(t, err)

	members, err := f.repo.List(ctx, models.TypeGroupMember)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, members[0].LocalID, first)

	_, err = f.svc.AddMember(ctx, 12345, f.me)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecordPayment_StoresSplits(t *testing.T) {
	ctx := context.Background()
	f := newLedger(t, nil)
	gid, err := f.svc.CreateGroup(ctx, f.me, "Trip", "EUR")
	require.NoError(t, err)

	pid, err := f.svc.RecordPayment(ctx, PaymentInput{
		GroupID:   gid,
		PaidBy:    f.me,
		CreatedBy: f.me,
		Amount:    decimal.RequireFromString("30.00"),
		Splits: []SplitInput{
			{UserID: f.me, Amount: decimal.RequireFromString("10.00")},
			{UserID: f.me, Amount: decimal.RequireFromString("20")},
		},
	})
	require.NoError(t, err)

	rec, err := f.repo.GetByLocalID(ctx, models.TypePayment, pid)
	require.NoError(t, err)
	p, err := entities.Decode[models.Payment](*rec)
	require.NoError(t, err)
	require.Equal(t, "EUR", p.Currency)
	require.Equal(t, "2024-03-01", p.PaymentDate)
	require.Equal(t, models.StatusPendingSync, p.SyncStatus)

	splits, err := f.repo.List(ctx, models.TypePaymentSplit)
	require.NoError(t, err)
	require.Len(t, splits, 2)
	for _, s := range splits {
		split, err := entities.Decode[models.PaymentSplit](s)
		require.NoError(t, err)
		require.Equal(t, pid, split.PaymentID)
	}
}

func TestRecordPayment_RejectsUnbalancedSplits(t *testing.T) {
	ctx := context.Background()
	f := newLedger(t, nil)
	gid, err := f.svc.CreateGroup(ctx, f.me, "Trip", "EUR")
	require.NoError(t, err)

	_, err = f.svc.RecordPayment(ctx, PaymentInput{
		GroupID: gid,
		PaidBy:  f.me,
		Amount:  decimal.RequireFromString("30"),
		Splits:  []SplitInput{{UserID: f.me, Amount: decimal.RequireFromString("29.99")}},
	})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.RecordPayment(ctx, PaymentInput{GroupID: gid, Amount: decimal.Zero})
	require.ErrorIs(t, err, ErrInvalidInput)

	payments, err := f.repo.List(ctx, models.TypePayment)
	require.NoError(t, err)
	require.Empty(t, payments)
}

func TestArchiveAndRestore_ReuseMarker(t *testing.T) {
	ctx := context.Background()
	f := newLedger(t, nil)
	gid, err := f.svc.CreateGroup(ctx, f.me, "Trip", "EUR")
	require.NoError(t, err)

	require.NoError(t, f.svc.RestoreGroup(ctx, f.me, gid))
	markers, err := f.repo.List(ctx, models.TypeArchive)
	require.NoError(t, err)
	require.Empty(t, markers)

	require.NoError(t, f.svc.ArchiveGroup(ctx, f.me, gid))
	groups, err := f.svc.Groups(ctx, f.me)
	require.NoError(t, err)
	require.True(t, groups[0].Archived)

	require.NoError(t, f.svc.RestoreGroup(ctx, f.me, gid))
	groups, err = f.svc.Groups(ctx, f.me)
	require.NoError(t, err)
	require.False(t, groups[0].Archived)

	markers, err = f.repo.List(ctx, models.TypeArchive)
	require.NoError(t, err)
	require.Len(t, markers, 1)
	m, err := entities.Decode[models.ArchiveMarker](markers[0])
	require.NoError(t, err)
	require.Empty(t, m.ArchivedAt)
}

func TestFlagReauthentication_MarksPending(t *testing.T) {
	ctx := context.Background()
	f := newLedger(t, nil)

	acc := &models.BankAccount{UserID: f.me, IBAN: "LV00TEST", Currency: "EUR"}
	acc.LocalID = 500
	acc.ServerID = models.Int64Ptr(77)
	acc.SyncStatus = models.StatusSynced
	acc.UpdatedAt = "2024-01-01T00:00:00.000Z"
	rec, err := entities.Encode(models.TypeBankAccount, acc)
	require.NoError(t, err)
	require.NoError(t, f.repo.Upsert(ctx, rec))

	require.NoError(t, f.svc.FlagReauthentication(ctx, 500))

	got, err := f.repo.GetByLocalID(ctx, models.TypeBankAccount, 500)
	require.NoError(t, err)
	require.Equal(t, models.StatusPendingSync, got.Status)
	decoded, err := entities.Decode[models.BankAccount](*got)
	require.NoError(t, err)
	require.True(t, decoded.NeedsReauthentication)

	require.ErrorIs(t, f.svc.FlagReauthentication(ctx, 501), ErrInvalidInput)
}

func TestStatus_CountsPerType(t *testing.T) {
	ctx := context.Background()
	f := newLedger(t, nil)
	_, err := f.svc.CreateGroup(ctx, f.me, "Trip", "EUR")
	require.NoError(t, err)

	counts, err := f.svc.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, counts[models.TypeUser][models.StatusSynced])
	require.Equal(t, 1, counts[models.TypeGroup][models.StatusPendingSync])
	require.Equal(t, 1, counts[models.TypeGroupMember][models.StatusPendingSync])
}

func TestSync_PassesSessionAndDevice(t *testing.T) {
	var got syncer.Env
	f := newLedger(t, runnerFunc(func(ctx context.Context, env syncer.Env) (*syncer.Report, error) {
		got = env
		return &syncer.Report{}, nil
	}))

	_, err := f.svc.Sync(context.Background(), Session{AccountID: 42}, "dev-1")
	require.NoError(t, err)
	require.Equal(t, syncer.Env{UserID: 42, DeviceID: "dev-1"}, got)
}

func TestEqualSplits_AddUp(t *testing.T) {
	splits := EqualSplits(decimal.RequireFromString("10"), []int64{1, 2, 3})
	require.Len(t, splits, 3)
	require.Equal(t, "3.34", splits[0].Amount.StringFixed(2))
	require.Equal(t, "3.33", splits[1].Amount.StringFixed(2))
	require.Equal(t, "3.33", splits[2].Amount.StringFixed(2))

	total := decimal.Zero
	for _, s := range splits {
		total = total.Add(s.Amount)
	}
	require.True(t, total.Equal(decimal.RequireFromString("10")))

	require.Nil(t, EqualSplits(decimal.RequireFromString("10"), nil))
}

func TestMembers_OfGroup(t *testing.T) {
	ctx := context.Background()
	f := newLedger(t, nil)
	gid, err := f.svc.CreateGroup(ctx, f.me, "Trip", "EUR")
	require.NoError(t, err)
	other, err := f.svc.CreateGroup(ctx, f.me, "Flat", "EUR")
	require.NoError(t, err)
	require.NotEqual(t, gid, other)

	members, err := f.svc.Members(ctx, gid)
	require.NoError(t, err)
	require.Equal(t, []int64{f.me}, members)
}
