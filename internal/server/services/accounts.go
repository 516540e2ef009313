// Package services contains the business logic of the sync server.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/splitsync/internal/common"
	"github.com/dmitrijs2005/splitsync/internal/dbx"
	"github.com/dmitrijs2005/splitsync/internal/server/auth"
	"github.com/dmitrijs2005/splitsync/internal/server/models"
	"github.com/dmitrijs2005/splitsync/internal/server/repositories/repomanager"
)

const profileType = "users"

// dummyHash is compared against when the username is unknown so both
// outcomes cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("splitsync"), bcrypt.MinCost)

// AccountService registers accounts and issues access tokens.
type AccountService struct {
	repos         repomanager.RepositoryManager
	jwtSecret     []byte
	tokenValidity time.Duration
	bcryptCost    int
	now           func() time.Time
}

func NewAccountService(m repomanager.RepositoryManager, secret []byte, tokenValidity time.Duration) *AccountService {
	return &AccountService{
		repos:         m,
		jwtSecret:     secret,
		tokenValidity: tokenValidity,
		bcryptCost:    bcrypt.DefaultCost,
		now:           time.Now,
	}
}

// SetBcryptCost overrides the password hashing cost.
func (s *AccountService) SetBcryptCost(cost int) { s.bcryptCost = cost }

// Register creates the account together with its "users" record; both share
// one id. A taken username yields common.ErrorAlreadyExists.
func (s *AccountService) Register(ctx context.Context, username, email, password string) (int64, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return 0, fmt.Errorf("%w: username and password are required", common.ErrorValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}

	profile, err := json.Marshal(map[string]string{
		"username":   username,
		"email":      email,
		"updated_at": s.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.repos.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		recs := s.repos.Records(tx)

		var err error
		if id, err = recs.NextID(ctx); err != nil {
			return err
		}
		account := &models.Account{ID: id, Username: username, Email: email, PasswordHash: hash}
		if _, err := s.repos.Accounts(tx).Create(ctx, account); err != nil {
			return err
		}
		_, _, err = recs.Create(ctx, &models.Record{
			ID:         id,
			OwnerID:    id,
			EntityType: profileType,
			ClientKey:  "account:" + strconv.FormatInt(id, 10),
			Body:       profile,
		})
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Login checks the password and returns the account id with a fresh access
// token. Unknown users and wrong passwords both yield common.ErrorUnauthorized.
func (s *AccountService) Login(ctx context.Context, username, password string) (int64, string, error) {
	account, err := s.repos.Accounts(s.repos.Conn()).GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return 0, "", common.ErrorUnauthorized
		}
		return 0, "", err
	}

	if bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)) != nil {
		return 0, "", common.ErrorUnauthorized
	}

	token, err := auth.GenerateToken(account.ID, s.jwtSecret, s.tokenValidity)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return account.ID, token, nil
}
