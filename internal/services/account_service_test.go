package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"

	"github.com/medzoom/accounts-be/internal/auth"
	"github.com/medzoom/accounts-be/internal/database"
	"github.com/medzoom/accounts-be/internal/otp"
	"github.com/medzoom/accounts-be/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMailer records sends and can be told to fail a number of times.
type fakeMailer struct {
	mu        sync.Mutex
	failures  int
	sends     int
	lastTo    string
	lastBody  string
	lastTitle string
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends++
	if m.failures > 0 {
		m.failures--
		return errors.New("smtp unavailable")
	}
	m.lastTo = to
	m.lastTitle = subject
	m.lastBody = body
	return nil
}

var codePattern = regexp.MustCompile(`[0-9]{6}`)

func (m *fakeMailer) deliveredCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return codePattern.FindString(m.lastBody)
}

// fakeRegistry returns canned results, for exercising OTP failure paths.
type fakeRegistry struct {
	consumeErr error
}

func (r *fakeRegistry) Issue(email string) (string, error) { return "123456", nil }
func (r *fakeRegistry) Consume(email, code string) error   { return r.consumeErr }

func newTestService(t *testing.T) (*AccountService, *fakeMailer) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	mail := &fakeMailer{}
	svc := NewAccountService(store.NewSQLite(db), mail, otp.NewRegistry(), auth.NewTokens("test-secret"))
	return svc, mail
}

// signUp drives the full request-then-complete flow for a fresh account.
func signUp(t *testing.T, svc *AccountService, mail *fakeMailer, username, email, password string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, svc.RequestSignup(ctx, email))
	code := mail.deliveredCode()
	require.Len(t, code, 6)

	_, err := svc.CompleteSignup(ctx, username, email, password, code)
	require.NoError(t, err)
}

func TestSignupFlow(t *testing.T) {
	svc, mail := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.RequestSignup(ctx, "a@x.com"))
	assert.Equal(t, "a@x.com", mail.lastTo)

	code := mail.deliveredCode()
	require.Len(t, code, 6)

	user, err := svc.CompleteSignup(ctx, "alice", "a@x.com", "hunter2", code)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "a@x.com", user.Email)
	assert.Empty(t, user.PasswordHash)

	// Password round-trips through login.
	token, loggedIn, err := svc.Login(ctx, "alice", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, loggedIn.ID)

	// The code was consumed by the successful signup.
	_, err = svc.CompleteSignup(ctx, "alice2", "a@x.com", "hunter2", code)
	assert.ErrorIs(t, err, ErrOTPInvalid)
}

func TestRequestSignupDuplicateEmail(t *testing.T) {
	svc, mail := newTestService(t)
	ctx := context.Background()

	signUp(t, svc, mail, "alice", "a@x.com", "hunter2")

	assert.ErrorIs(t, svc.RequestSignup(ctx, "a@x.com"), ErrDuplicateAccount)
}

func TestRequestSignupInvalidEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.RequestSignup(ctx, ""), ErrValidation)
	assert.ErrorIs(t, svc.RequestSignup(ctx, "not-an-email"), ErrValidation)
}

func TestRequestSignupRetriesDeliveryOnce(t *testing.T) {
	svc, mail := newTestService(t)
	ctx := context.Background()

	mail.failures = 1
	require.NoError(t, svc.RequestSignup(ctx, "a@x.com"))
	assert.Equal(t, 2, mail.sends)
}

func TestRequestSignupDeliveryFailedRetainsEntry(t *testing.T) {
	svc, mail := newTestService(t)
	ctx := context.Background()

	mail.failures = 2
	assert.ErrorIs(t, svc.RequestSignup(ctx, "a@x.com"), ErrDeliveryFailed)

	// A retried request succeeds and issues a usable code.
	require.NoError(t, svc.RequestSignup(ctx, "a@x.com"))
	code := mail.deliveredCode()
	_, err := svc.CompleteSignup(ctx, "alice", "a@x.com", "hunter2", code)
	require.NoError(t, err)
}

func TestCompleteSignupWrongCode(t *testing.T) {
	svc, mail := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.RequestSignup(ctx, "a@x.com"))
	code := mail.deliveredCode()

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	_, err := svc.CompleteSignup(ctx, "alice", "a@x.com", "hunter2", wrong)
	assert.ErrorIs(t, err, ErrOTPInvalid)
}

func TestCompleteSignupNoRequest(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CompleteSignup(context.Background(), "alice", "a@x.com", "hunter2", "123456")
	assert.ErrorIs(t, err, ErrOTPInvalid)
}

func TestCompleteSignupExpiredCode(t *testing.T) {
	svc, _ := newTestService(t)
	svc.otps = &fakeRegistry{consumeErr: otp.ErrExpired}

	_, err := svc.CompleteSignup(context.Background(), "alice", "a@x.com", "hunter2", "123456")
	assert.ErrorIs(t, err, ErrOTPInvalid)
}

func TestCompleteSignupUsernameTaken(t *testing.T) {
	svc, mail := newTestService(t)
	ctx := context.Background()

	signUp(t, svc, mail, "alice", "a@x.com", "hunter2")

	require.NoError(t, svc.RequestSignup(ctx, "b@x.com"))
	code := mail.deliveredCode()

	_, err := svc.CompleteSignup(ctx, "alice", "b@x.com", "hunter2", code)
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestCompleteSignupMissingFields(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CompleteSignup(ctx, "", "a@x.com", "hunter2", "123456")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.CompleteSignup(ctx, "alice", "a@x.com", "", "123456")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.CompleteSignup(ctx, "alice", "a@x.com", "hunter2", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestConcurrentCompleteSignupSameEmail(t *testing.T) {
	svc, _ := newTestService(t)
	// Registry always accepts so the store's unique index is what settles the race.
	svc.otps = &fakeRegistry{}
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CompleteSignup(ctx, fmt.Sprintf("user-%d", i), "a@x.com", "hunter2", "123456")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrDuplicateAccount)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestLoginUnknownUser(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.Login(context.Background(), "nobody", "hunter2")
	assert.ErrorIs(t, err, ErrNoSuchUser)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, mail := newTestService(t)

	signUp(t, svc, mail, "alice", "a@x.com", "hunter2")

	_, _, err := svc.Login(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestResolveSession(t *testing.T) {
	svc, mail := newTestService(t)
	ctx := context.Background()

	signUp(t, svc, mail, "alice", "a@x.com", "hunter2")
	token, user, err := svc.Login(ctx, "alice", "hunter2")
	require.NoError(t, err)

	resolved := svc.ResolveSession(ctx, token)
	require.NotNil(t, resolved)
	assert.Equal(t, user.ID, resolved.ID)
	assert.Equal(t, "alice", resolved.Username)
	assert.Empty(t, resolved.PasswordHash)
}

func TestResolveSessionAnonymous(t *testing.T) {
	svc, mail := newTestService(t)
	ctx := context.Background()

	// No token, malformed token, and a validly-signed token for a user that
	// does not exist all resolve to anonymous without error.
	assert.Nil(t, svc.ResolveSession(ctx, ""))
	assert.Nil(t, svc.ResolveSession(ctx, "not-a-token"))

	ghost, err := auth.NewTokens("test-secret").Issue("no-such-user")
	require.NoError(t, err)
	assert.Nil(t, svc.ResolveSession(ctx, ghost))

	// A token signed with the wrong secret is anonymous too.
	signUp(t, svc, mail, "alice", "a@x.com", "hunter2")
	user := svc.ResolveSession(ctx, mustIssue(t, "other-secret", "any"))
	assert.Nil(t, user)
}

func mustIssue(t *testing.T, secret, userID string) string {
	t.Helper()
	token, err := auth.NewTokens(secret).Issue(userID)
	require.NoError(t, err)
	return token
}
