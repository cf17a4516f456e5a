package auth

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitoshi/sociallogin/internal/model"
	"github.com/hitoshi/sociallogin/internal/repository"
	"github.com/hitoshi/sociallogin/internal/security"
)

// --- モック定義 ---

// memoryAccountRepo はメールアドレスをキーにしたインメモリのAccountRepository。
// 書き込み回数を記録し、永続化が起きないことの検証に使う。
// tokensが設定されている場合、CreateWithRefreshTokenはトークンの保存に成功したときだけ
// アカウントを残す（トランザクションのロールバックを模す）。
type memoryAccountRepo struct {
	mu        sync.Mutex
	byEmail   map[string]*model.Account
	tokens    *mockRefreshTokenRepo
	saves     int
	updates   int
	saveErr   error
	findErr   error
	existErr  error
	updateErr error
}

func newMemoryAccountRepo() *memoryAccountRepo {
	return &memoryAccountRepo{byEmail: make(map[string]*model.Account)}
}

func (m *memoryAccountRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existErr != nil {
		return false, m.existErr
	}
	_, ok := m.byEmail[email]
	return ok, nil
}

func (m *memoryAccountRepo) FindByEmail(_ context.Context, email string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	a, ok := m.byEmail[email]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memoryAccountRepo) FindByID(_ context.Context, id string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, a := range m.byEmail {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memoryAccountRepo) Save(_ context.Context, account *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if _, ok := m.byEmail[account.Email]; ok {
		return model.ErrPersistenceConflict
	}
	cp := *account
	m.byEmail[account.Email] = &cp
	m.saves++
	return nil
}

func (m *memoryAccountRepo) CreateWithRefreshToken(ctx context.Context, account *model.Account, token *model.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if _, ok := m.byEmail[account.Email]; ok {
		return model.ErrPersistenceConflict
	}
	if m.tokens != nil {
		if err := m.tokens.Create(ctx, token); err != nil {
			return err
		}
	}
	cp := *account
	m.byEmail[account.Email] = &cp
	m.saves++
	return nil
}

func (m *memoryAccountRepo) Update(_ context.Context, account *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	cp := *account
	m.byEmail[account.Email] = &cp
	m.updates++
	return nil
}

func (m *memoryAccountRepo) get(email string) *model.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byEmail[email]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

func (m *memoryAccountRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byEmail)
}

type mockRefreshTokenRepo struct {
	mu                  sync.Mutex
	tokens              map[string]*model.RefreshToken
	createFn            func(ctx context.Context, token *model.RefreshToken) error
	consumeFn           func(ctx context.Context, hash string) (*model.RefreshToken, error)
	deleteByHashFn      func(ctx context.Context, hash string) error
	deleteByAccountIDFn func(ctx context.Context, accountID string) error
}

func newMockRefreshTokenRepo() *mockRefreshTokenRepo {
	return &mockRefreshTokenRepo{tokens: make(map[string]*model.RefreshToken)}
}

func (m *mockRefreshTokenRepo) Create(ctx context.Context, token *model.RefreshToken) error {
	if m.createFn != nil {
		return m.createFn(ctx, token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *token
	m.tokens[token.TokenHash] = &cp
	return nil
}

func (m *mockRefreshTokenRepo) ConsumeByHash(ctx context.Context, hash string) (*model.RefreshToken, error) {
	if m.consumeFn != nil {
		return m.consumeFn(ctx, hash)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[hash]
	if !ok || !t.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	delete(m.tokens, hash)
	cp := *t
	return &cp, nil
}

// get は消費せずにトークンを参照する。
func (m *mockRefreshTokenRepo) get(hash string) *model.RefreshToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[hash]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

func (m *mockRefreshTokenRepo) DeleteByHash(ctx context.Context, hash string) error {
	if m.deleteByHashFn != nil {
		return m.deleteByHashFn(ctx, hash)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, hash)
	return nil
}

func (m *mockRefreshTokenRepo) DeleteByAccountID(ctx context.Context, accountID string) error {
	if m.deleteByAccountIDFn != nil {
		return m.deleteByAccountIDFn(ctx, accountID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for hash, t := range m.tokens {
		if t.AccountID == accountID {
			delete(m.tokens, hash)
		}
	}
	return nil
}

func (m *mockRefreshTokenRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

type mockProvider struct {
	name           string
	fetchProfileFn func(ctx context.Context, token string) (*model.RemoteProfile, error)
	calls          atomic.Int32
}

func (m *mockProvider) Name() string {
	return m.name
}

func (m *mockProvider) FetchProfile(ctx context.Context, token string) (*model.RemoteProfile, error) {
	m.calls.Add(1)
	if m.fetchProfileFn != nil {
		return m.fetchProfileFn(ctx, token)
	}
	return nil, nil
}

type mockIssuer struct {
	generateAccessFn  func(subject model.TokenSubject) (string, error)
	generateRefreshFn func() (string, error)
	seq               int
	mu                sync.Mutex
}

func (m *mockIssuer) GenerateAccessToken(subject model.TokenSubject) (string, error) {
	if m.generateAccessFn != nil {
		return m.generateAccessFn(subject)
	}
	return "jwt-for-" + subject.AccountID, nil
}

func (m *mockIssuer) GenerateRefreshToken() (string, error) {
	if m.generateRefreshFn != nil {
		return m.generateRefreshFn()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return fmt.Sprintf("refresh-%d", m.seq), nil
}

func (m *mockIssuer) RefreshTTL() time.Duration {
	return time.Hour
}

// --- compile-time interface checks ---
var _ repository.AccountRepository = (*memoryAccountRepo)(nil)
var _ repository.RefreshTokenRepository = (*mockRefreshTokenRepo)(nil)
var _ IdentityProvider = (*mockProvider)(nil)
var _ TokenIssuer = (*mockIssuer)(nil)

func newTestSanitizer() security.ProfileSanitizerService {
	return security.NewProfileSanitizer(security.NewSSRFGuard())
}
