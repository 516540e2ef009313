package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/splitsync/internal/client/client"
	"github.com/dmitrijs2005/splitsync/internal/client/migrations"
	"github.com/dmitrijs2005/splitsync/internal/client/repositories/metadata"

	_ "modernc.org/sqlite"
)

// ---- helpers ----

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(context.Background(), db))
	return db
}

// ---- fake client ----

type fakeClient struct {
	client.Client

	RegisterRet int64
	RegisterErr error
	LoginRet    int64
	LoginErr    error
	PingErr     error
	CloseErr    error

	LastUser     string
	LastEmail    string
	LastPassword string
}

func (f *fakeClient) Register(ctx context.Context, username, email, password string) (int64, error) {
	f.LastUser, f.LastEmail, f.LastPassword = username, email, password
	return f.RegisterRet, f.RegisterErr
}

func (f *fakeClient) Login(ctx context.Context, username, password string) (int64, error) {
	f.LastUser, f.LastPassword = username, password
	return f.LoginRet, f.LoginErr
}

func (f *fakeClient) Ping(ctx context.Context) error { return f.PingErr }
func (f *fakeClient) Close() error                   { return f.CloseErr }

func newAuth(t *testing.T, fc *fakeClient) (AuthService, *metadata.SQLiteRepository) {
	meta := metadata.NewSQLiteRepository(setupDB(t))
	return NewAuthService(fc, meta), meta
}

// ---- tests ----

func TestRegister_DelegatesToClient(t *testing.T) {
	fc := &fakeClient{RegisterRet: 12}
	svc, _ := newAuth(t, fc)

	id, err := svc.Register(context.Background(), "ann", "ann@example.com", []byte("pw"))
	require.NoError(t, err)
	require.EqualValues(t, 12, id)
	require.Equal(t, "ann", fc.LastUser)
	require.Equal(t, "ann@example.com", fc.LastEmail)
	require.Equal(t, "pw", fc.LastPassword)
}

func TestRegister_ErrorFromClient(t *testing.T) {
	fc := &fakeClient{RegisterErr: client.ErrAlreadyExists}
	svc, _ := newAuth(t, fc)

	_, err := svc.Register(context.Background(), "ann", "", []byte("pw"))
	require.ErrorIs(t, err, client.ErrAlreadyExists)
}

func TestOnlineLogin_CachesSessionWithoutPassword(t *testing.T) {
	ctx := context.Background()
	fc := &fakeClient{LoginRet: 42}
	svc, meta := newAuth(t, fc)

	sess, err := svc.OnlineLogin(ctx, "ann", []byte("pw"))
	require.NoError(t, err)
	require.Equal(t, Session{AccountID: 42, Username: "ann", Online: true}, sess)

	all, err := meta.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("ann"), all[SessionUsernameKey])
	require.Equal(t, []byte("42"), all[SessionAccountIDKey])
	require.Len(t, all[SessionVerifierKey], 32)
	for _, v := range all {
		require.NotEqual(t, []byte("pw"), v)
	}
}

func TestOnlineLogin_ErrorLeavesCacheEmpty(t *testing.T) {
	ctx := context.Background()
	fc := &fakeClient{LoginErr: client.ErrUnauthorized}
	svc, meta := newAuth(t, fc)

	_, err := svc.OnlineLogin(ctx, "ann", []byte("pw"))
	require.ErrorIs(t, err, client.ErrUnauthorized)

	all, err := meta.List(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestOfflineLogin_NoLocalData(t *testing.T) {
	svc, _ := newAuth(t, &fakeClient{})

	_, err := svc.OfflineLogin(context.Background(), "ann", []byte("pw"))
	require.ErrorIs(t, err, client.ErrLocalDataNotAvailable)
}

func TestOfflineLogin_AfterOnlineLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuth(t, &fakeClient{LoginRet: 42})

	_, err := svc.OnlineLogin(ctx, "ann", []byte("pw"))
	require.NoError(t, err)

	sess, err := svc.OfflineLogin(ctx, "ann", []byte("pw"))
	require.NoError(t, err)
	require.Equal(t, Session{AccountID: 42, Username: "ann"}, sess)

	_, err = svc.OfflineLogin(ctx, "ann", []byte("wrong"))
	require.ErrorIs(t, err, client.ErrUnauthorized)

	_, err = svc.OfflineLogin(ctx, "bob", []byte("pw"))
	require.ErrorIs(t, err, client.ErrUnauthorized)
}

func TestLogout_ForgetsSessionOnly(t *testing.T) {
	ctx := context.Background()
	svc, meta := newAuth(t, &fakeClient{LoginRet: 42})
	require.NoError(t, meta.Set(ctx, "checkpoint:users", []byte("5")))

	_, err := svc.OnlineLogin(ctx, "ann", []byte("pw"))
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx))

	_, err = svc.OfflineLogin(ctx, "ann", []byte("pw"))
	require.ErrorIs(t, err, client.ErrLocalDataNotAvailable)

	v, err := meta.Get(ctx, "checkpoint:users")
	require.NoError(t, err)
	require.Equal(t, []byte("5"), v)
}

func TestPing_Close_Delegation(t *testing.T) {
	down := errors.New("down")
	svc, _ := newAuth(t, &fakeClient{PingErr: down, CloseErr: down})

	require.ErrorIs(t, svc.Ping(context.Background()), down)
	require.ErrorIs(t, svc.Close(context.Background()), down)
}
