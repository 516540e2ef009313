package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmitrijs2005/splitsync/internal/client/models"
	"github.com/dmitrijs2005/splitsync/internal/client/repositories/entities"
	"github.com/dmitrijs2005/splitsync/internal/client/syncer"
	"github.com/dmitrijs2005/splitsync/internal/client/translate"
	"github.com/dmitrijs2005/splitsync/internal/common"
	"github.com/dmitrijs2005/splitsync/internal/dbx"
)

var ErrInvalidInput = errors.New("invalid input")

// SyncRunner runs one sync pass.
type SyncRunner interface {
	Run(ctx context.Context, env syncer.Env) (*syncer.Report, error)
}

// GroupView is a group as listed for one user.
type GroupView struct {
	LocalID  int64
	ServerID int64
	Name     string
	Currency string
	Status   models.SyncStatus
	Members  int
	Archived bool
}

// SplitInput is one share of a payment.
type SplitInput struct {
	UserID int64
	Amount decimal.Decimal
}

// PaymentInput describes a payment; all ids are local ids.
type PaymentInput struct {
	GroupID     int64
	PaidBy      int64
	CreatedBy   int64
	Amount      decimal.Decimal
	Currency    string
	Description string
	Date        time.Time
	Splits      []SplitInput
}

// LedgerService writes user edits to the local replica. Every write
// leaves the touched rows in PENDING_SYNC; Sync pushes them.
type LedgerService struct {
	db    *sql.DB
	ids   syncer.IDSource
	index *translate.Index
	sync  SyncRunner
	now   func() time.Time
}

func NewLedgerService(db *sql.DB, ids syncer.IDSource, index *translate.Index, sync SyncRunner) *LedgerService {
	return &LedgerService{db: db, ids: ids, index: index, sync: sync, now: time.Now}
}

// EnsureProfile returns the local id of the signed-in account's user row,
// creating a placeholder when the row has not been pulled yet. The
// placeholder is already SYNCED and carries no timestamp, so the first
// pulled version replaces it.
func (s *LedgerService) EnsureProfile(ctx context.Context, sess Session) (int64, error) {
	if sess.AccountID == 0 {
		return 0, syncer.ErrNoUser
	}
	if id, ok := s.index.LocalID(models.TypeUser, sess.AccountID); ok {
		return id, nil
	}

	localID, err := s.ids.Next(ctx)
	if err != nil {
		return 0, err
	}
	u := &models.User{Username: sess.Username}
	u.LocalID = localID
	u.ServerID = models.Int64Ptr(sess.AccountID)
	u.SyncStatus = models.StatusSynced

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := put(ctx, tx, models.TypeUser, u); err != nil {
			return err
		}
		return s.index.Remember(ctx, tx, models.TypeUser, localID, sess.AccountID)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to store profile: %w", err)
	}
	s.index.Learn(models.TypeUser, localID, sess.AccountID)
	return localID, nil
}

// CreateGroup creates a group and makes its creator the first member.
func (s *LedgerService) CreateGroup(ctx context.Context, creator int64, name, currency string) (int64, error) {
	if name == "" || currency == "" {
		return 0, fmt.Errorf("%w: group name and currency are required", ErrInvalidInput)
	}
	ids, err := s.nextIDs(ctx, 2)
	if err != nil {
		return 0, err
	}

	now := s.now()
	g := &models.Group{Name: name, Currency: currency, CreatedBy: creator}
	g.LocalID = ids[0]
	g.Touch(now)
	m := &models.GroupMember{GroupID: g.LocalID, UserID: creator}
	m.LocalID = ids[1]
	m.Touch(now)

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := mustExist(ctx, tx, models.TypeUser, creator); err != nil {
			return err
		}
		if err := put(ctx, tx, models.TypeGroup, g); err != nil {
			return err
		}
		return put(ctx, tx, models.TypeGroupMember, m)
	})
	if err != nil {
		return 0, err
	}
	return g.LocalID, nil
}

func (s *LedgerService) AddMember(ctx context.Context, groupID, userID int64) (int64, error) {
	members, err := listAll[models.GroupMember](ctx, s.db, models.TypeGroupMember)
	if err != nil {
		return 0, err
	}
	for _, m := range members {
		if m.GroupID == groupID && m.UserID == userID {
			return m.LocalID, nil
		}
	}

	id, err := s.ids.Next(ctx)
	if err != nil {
		return 0, err
	}
	m := &models.GroupMember{GroupID: groupID, UserID: userID}
	m.LocalID = id
	m.Touch(s.now())

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := mustExist(ctx, tx, models.TypeGroup, groupID); err != nil {
			return err
		}
		if err := mustExist(ctx, tx, models.TypeUser, userID); err != nil {
			return err
		}
		return put(ctx, tx, models.TypeGroupMember, m)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// RecordPayment stores a payment with its splits. The splits must add up
// to the amount.
func (s *LedgerService) RecordPayment(ctx context.Context, in PaymentInput) (int64, error) {
	if !in.Amount.IsPositive() {
		return 0, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if len(in.Splits) == 0 {
		return 0, fmt.Errorf("%w: a payment needs at least one split", ErrInvalidInput)
	}
	total := decimal.Zero
	for _, sp := range in.Splits {
		total = total.Add(sp.Amount)
	}
	if !total.Equal(in.Amount) {
		return 0, fmt.Errorf("%w: splits add up to %s, amount is %s", ErrInvalidInput, total, in.Amount)
	}

	ids, err := s.nextIDs(ctx, 1+len(in.Splits))
	if err != nil {
		return 0, err
	}

	now := s.now()
	date := in.Date
	if date.IsZero() {
		date = now
	}
	p := &models.Payment{
		GroupID:     in.GroupID,
		PaidBy:      in.PaidBy,
		CreatedBy:   in.CreatedBy,
		Amount:      in.Amount,
		Currency:    in.Currency,
		Description: in.Description,
		PaymentDate: date.Format(time.DateOnly),
	}
	p.LocalID = ids[0]
	p.Touch(now)

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		group, err := get[models.Group](ctx, tx, models.TypeGroup, in.GroupID)
		if err != nil {
			return err
		}
		if p.Currency == "" {
			p.Currency = group.Currency
		}
		if err := put(ctx, tx, models.TypePayment, p); err != nil {
			return err
		}
		for i, sp := range in.Splits {
			split := &models.PaymentSplit{PaymentID: p.LocalID, UserID: sp.UserID, Amount: sp.Amount}
			split.LocalID = ids[i+1]
			split.Touch(now)
			if err := put(ctx, tx, models.TypePaymentSplit, split); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return p.LocalID, nil
}

// ArchiveGroup hides a group for userID.
func (s *LedgerService) ArchiveGroup(ctx context.Context, userID, groupID int64) error {
	return s.setArchived(ctx, userID, groupID, true)
}

// RestoreGroup reverses ArchiveGroup.
func (s *LedgerService) RestoreGroup(ctx context.Context, userID, groupID int64) error {
	return s.setArchived(ctx, userID, groupID, false)
}

func (s *LedgerService) setArchived(ctx context.Context, userID, groupID int64, archived bool) error {
	marker, err := s.archiveMarker(ctx, userID, groupID)
	if err != nil {
		return err
	}
	if marker == nil {
		if !archived {
			return nil
		}
		id, err := s.ids.Next(ctx)
		if err != nil {
			return err
		}
		marker = &models.ArchiveMarker{UserID: userID, GroupID: groupID}
		marker.LocalID = id
	} else if marker.Archived == archived {
		return nil
	}

	now := s.now()
	marker.Archived = archived
	marker.ArchivedAt = ""
	if archived {
		marker.ArchivedAt = models.Timestamp(now)
	}
	marker.Touch(now)

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := mustExist(ctx, tx, models.TypeGroup, groupID); err != nil {
			return err
		}
		return put(ctx, tx, models.TypeArchive, marker)
	})
}

func (s *LedgerService) archiveMarker(ctx context.Context, userID, groupID int64) (*models.ArchiveMarker, error) {
	markers, err := listAll[models.ArchiveMarker](ctx, s.db, models.TypeArchive)
	if err != nil {
		return nil, err
	}
	for _, m := range markers {
		if m.UserID == userID && m.GroupID == groupID {
			return m, nil
		}
	}
	return nil, nil
}

// FlagReauthentication records that a bank connection has to be renewed.
func (s *LedgerService) FlagReauthentication(ctx context.Context, bankAccountID int64) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		acc, err := get[models.BankAccount](ctx, tx, models.TypeBankAccount, bankAccountID)
		if err != nil {
			return err
		}
		if acc.NeedsReauthentication {
			return nil
		}
		acc.NeedsReauthentication = true
		acc.Touch(s.now())
		return put(ctx, tx, models.TypeBankAccount, acc)
	})
}

// Groups lists every group with its member count and whether userID
// archived it.
func (s *LedgerService) Groups(ctx context.Context, userID int64) ([]GroupView, error) {
	groups, err := listAll[models.Group](ctx, s.db, models.TypeGroup)
	if err != nil {
		return nil, err
	}
	members, err := listAll[models.GroupMember](ctx, s.db, models.TypeGroupMember)
	if err != nil {
		return nil, err
	}
	markers, err := listAll[models.ArchiveMarker](ctx, s.db, models.TypeArchive)
	if err != nil {
		return nil, err
	}

	count := map[int64]int{}
	for _, m := range members {
		count[m.GroupID]++
	}
	archived := map[int64]bool{}
	for _, m := range markers {
		if m.UserID == userID {
			archived[m.GroupID] = m.Archived
		}
	}

	out := make([]GroupView, 0, len(groups))
	for _, g := range groups {
		out = append(out, GroupView{
			LocalID:  g.LocalID,
			ServerID: models.ServerIDOf(g),
			Name:     g.Name,
			Currency: g.Currency,
			Status:   g.SyncStatus,
			Members:  count[g.LocalID],
			Archived: archived[g.LocalID],
		})
	}
	return out, nil
}

// Members returns the local user ids of groupID's members.
func (s *LedgerService) Members(ctx context.Context, groupID int64) ([]int64, error) {
	members, err := listAll[models.GroupMember](ctx, s.db, models.TypeGroupMember)
	if err != nil {
		return nil, err
	}
	var out []int64
	for _, m := range members {
		if m.GroupID == groupID {
			out = append(out, m.UserID)
		}
	}
	return out, nil
}

// EqualSplits divides amount between users to the cent. The first user
// absorbs the rounding remainder.
func EqualSplits(amount decimal.Decimal, users []int64) []SplitInput {
	if len(users) == 0 {
		return nil
	}
	n := decimal.NewFromInt(int64(len(users)))
	share := amount.DivRound(n, 2)
	out := make([]SplitInput, len(users))
	for i, u := range users {
		out[i] = SplitInput{UserID: u, Amount: share}
	}
	out[0].Amount = amount.Sub(share.Mul(n.Sub(decimal.NewFromInt(1))))
	return out
}

func (s *LedgerService) Users(ctx context.Context) ([]*models.User, error) {
	return listAll[models.User](ctx, s.db, models.TypeUser)
}

// Status counts rows per entity type and sync status.
func (s *LedgerService) Status(ctx context.Context) (entities.StatusCounts, error) {
	return entities.NewSQLiteRepository(s.db).CountByStatus(ctx)
}

// Sync runs one pass for sess.
func (s *LedgerService) Sync(ctx context.Context, sess Session, deviceID string) (*syncer.Report, error) {
	return s.sync.Run(ctx, syncer.Env{UserID: sess.AccountID, DeviceID: deviceID})
}

func (s *LedgerService) nextIDs(ctx context.Context, n int) ([]int64, error) {
	out := make([]int64, n)
	for i := range out {
		id, err := s.ids.Next(ctx)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}

func put(ctx context.Context, db dbx.DBTX, t models.EntityType, e models.Entity) error {
	rec, err := entities.Encode(t, e)
	if err != nil {
		return err
	}
	return entities.NewSQLiteRepository(db).Upsert(ctx, rec)
}

func get[T any, P interface {
	*T
	models.Entity
}](ctx context.Context, db dbx.DBTX, t models.EntityType, localID int64) (P, error) {
	rec, err := entities.NewSQLiteRepository(db).GetByLocalID(ctx, t, localID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: no %s with id %d", ErrInvalidInput, t, localID)
		}
		return nil, err
	}
	return entities.Decode[T, P](*rec)
}

func mustExist(ctx context.Context, db dbx.DBTX, t models.EntityType, localID int64) error {
	_, err := entities.NewSQLiteRepository(db).GetByLocalID(ctx, t, localID)
	if errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("%w: no %s with id %d", ErrInvalidInput, t, localID)
	}
	return err
}

func listAll[T any, P interface {
	*T
	models.Entity
}](ctx context.Context, db dbx.DBTX, t models.EntityType) ([]P, error) {
	recs, err := entities.NewSQLiteRepository(db).List(ctx, t)
	if err != nil {
		return nil, err
	}
	return entities.DecodeAll[T, P](recs)
}
