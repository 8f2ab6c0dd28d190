package application_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/viralforge/account-service/internal/adapters/memory"
	"github.com/viralforge/account-service/internal/adapters/security"
	"github.com/viralforge/account-service/internal/application"
	"github.com/viralforge/account-service/internal/domain"
	"github.com/viralforge/account-service/internal/ports"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentMail struct {
	kind  string
	login string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

func (n *recordingNotifier) SendActivationEmail(_ context.Context, u domain.User) {
	n.record("activation", u)
}

func (n *recordingNotifier) SendPasswordResetMail(_ context.Context, u domain.User) {
	n.record("password_reset", u)
}

func (n *recordingNotifier) record(kind string, u domain.User) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{kind: kind, login: u.Login})
}

func (n *recordingNotifier) Sent() []sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMail(nil), n.sent...)
}

type fixture struct {
	svc      *application.Service
	users    *memory.UserRepository
	outbox   *memory.OutboxRepository
	clock    *fakeClock
	notifier *recordingNotifier
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	signer, err := security.NewEphemeralJWTSigner("test-key")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	outbox := memory.NewOutboxRepository()
	users := memory.NewUserRepository(outbox)
	clock := &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
	notifier := &recordingNotifier{}
	svc := application.NewService(application.Dependencies{
		Config:      application.DefaultConfig(),
		Users:       users,
		Lockouts:    memory.NewLockoutStore(),
		Notifier:    notifier,
		Hasher:      security.NewBcryptHasher(bcrypt.MinCost),
		TokenSigner: signer,
		Clock:       clock.Now,
	})
	return fixture{svc: svc, users: users, outbox: outbox, clock: clock, notifier: notifier}
}

func registerRequest(login, ip string) application.RegisterRequest {
	return application.RegisterRequest{
		Login:     login,
		Password:  "secret",
		FirstName: "Roger",
		Email:     login + "@example.com",
		IPAddress: ip,
	}
}

func (f fixture) registerActive(t *testing.T, login string) domain.User {
	t.Helper()
	user, err := f.svc.Register(context.Background(), registerRequest(login, ""))
	if err != nil {
		t.Fatalf("register %s: %v", login, err)
	}
	activated, err := f.svc.ActivateRegistration(context.Background(), user.ActivationKey)
	if err != nil {
		t.Fatalf("activate %s: %v", login, err)
	}
	return activated
}

func TestRegisterCreatesInactiveAccountAndQueuesActivationMail(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	user, err := f.svc.Register(context.Background(), registerRequest("Roger", "10.0.0.1"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Login != "roger" || user.Email != "roger@example.com" {
		t.Fatalf("login/email not normalized: %+v", user)
	}
	if user.Activated || len(user.ActivationKey) != 20 {
		t.Fatalf("expected inactive account with a 20 char key, got %+v", user)
	}
	if user.LangKey != domain.DefaultLangKey || !user.HasAuthority(domain.AuthorityUser) {
		t.Fatalf("defaults not applied: %+v", user)
	}
	if user.PasswordHash == "" || user.PasswordHash == "secret" {
		t.Fatalf("password must be stored hashed")
	}
	if !user.CreatedDate.Equal(f.clock.Now()) || user.IPAddress != "10.0.0.1" {
		t.Fatalf("creation metadata missing: %+v", user)
	}

	sent := f.notifier.Sent()
	if len(sent) != 1 || sent[0].kind != "activation" || sent[0].login != "roger" {
		t.Fatalf("expected one activation mail, got %+v", sent)
	}
	records := f.outbox.Records()
	if len(records) != 1 || records[0].EventType != application.EventTypeAccountRegistered {
		t.Fatalf("expected registered event, got %+v", records)
	}
	if strings.Contains(string(records[0].Payload), user.ActivationKey) {
		t.Fatalf("outbox payload leaks the activation key")
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, registerRequest("roger", "")); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := f.svc.Register(ctx, registerRequest("ROGER", ""))
	if !errors.Is(err, domain.ErrDuplicateLogin) {
		t.Fatalf("expected duplicate login, got %v", err)
	}

	req := registerRequest("jane", "")
	req.Email = "Roger@Example.com"
	_, err = f.svc.Register(ctx, req)
	if !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected duplicate email, got %v", err)
	}
	if got := len(f.notifier.Sent()); got != 1 {
		t.Fatalf("rejected registrations must not send mail, sent %d", got)
	}
}

func TestEmailMustBeABareAddress(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.CreateAccount(ctx, application.NewAccount{
		Login: "a", Password: "secret", Email: " Roger@X.com ",
	}, f.clock.Now()); err != nil {
		t.Fatalf("create account: %v", err)
	}

	for _, email := range []string{"Roger <roger@x.com>", "<roger@x.com>", `"roger" <roger@x.com>`} {
		_, err := f.svc.CreateAccount(ctx, application.NewAccount{
			Login: "b", Password: "secret", Email: email,
		}, f.clock.Now())
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("create with %q: expected ErrInvalidInput, got %v", email, err)
		}
		if _, err := f.svc.UpdateUser(ctx, "a", application.ProfileUpdate{Email: "Other <roger@x.com>"}); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("update with display name: expected ErrInvalidInput, got %v", err)
		}
	}

	users := f.users.All()
	if len(users) != 1 || users[0].Email != "roger@x.com" {
		t.Fatalf("expected a single account owning roger@x.com, got %+v", users)
	}
}

func TestRegisterChecksPasswordBeforeAnythingElse(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	req := registerRequest("roger", "")
	req.Password = "abc"
	if _, err := f.svc.Register(context.Background(), req); !errors.Is(err, domain.ErrWeakPassword) {
		t.Fatalf("expected weak password, got %v", err)
	}
	if len(f.users.All()) != 0 {
		t.Fatalf("no account may be created for a weak password")
	}
}

func TestRegistrationGateAllowsThreePerIPPerDay(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	for i, login := range []string{"a1", "a2", "a3"} {
		if _, err := f.svc.Register(ctx, registerRequest(login, "192.0.2.7")); err != nil {
			t.Fatalf("registration %d: %v", i+1, err)
		}
		f.clock.Advance(time.Minute)
	}

	_, err := f.svc.Register(ctx, registerRequest("a4", "192.0.2.7"))
	if !errors.Is(err, domain.ErrRegistrationThrottled) {
		t.Fatalf("expected the fourth registration to be throttled, got %v", err)
	}
	if _, err := f.svc.Register(ctx, registerRequest("b1", "192.0.2.8")); err != nil {
		t.Fatalf("other ip must not be throttled: %v", err)
	}

	// The first account leaves the window 24h after it was created.
	f.clock.Advance(24*time.Hour - 2*time.Minute)
	if _, err := f.svc.Register(ctx, registerRequest("a4", "192.0.2.7")); err != nil {
		t.Fatalf("expected registration after the window moved: %v", err)
	}
}

func TestCheckRegistrationAllowedIgnoresEmptyIP(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	for _, login := range []string{"n1", "n2", "n3", "n4"} {
		if _, err := f.svc.Register(ctx, registerRequest(login, "")); err != nil {
			t.Fatalf("register %s: %v", login, err)
		}
	}
	if err := f.svc.CheckRegistrationAllowed(ctx, "", f.clock.Now()); err != nil {
		t.Fatalf("unexpected gate error: %v", err)
	}
}

func TestCreateAccountDoesNotNotify(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	user, err := f.svc.CreateAccount(context.Background(), application.NewAccount{
		Login:    "admin-made",
		Password: "secret",
		Email:    "made@example.com",
	}, f.clock.Now())
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if user.Activated || user.ActivationKey == "" {
		t.Fatalf("expected inactive account: %+v", user)
	}
	if got := len(f.notifier.Sent()); got != 0 {
		t.Fatalf("create account must not send mail, sent %d", got)
	}
}

func TestActivationKeyWorksOnceAndNeverExpires(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, registerRequest("roger", ""))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	f.clock.Advance(400 * 24 * time.Hour)

	activated, err := f.svc.ActivateRegistration(ctx, user.ActivationKey)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if !activated.Activated || activated.ActivationKey != "" {
		t.Fatalf("activation did not persist: %+v", activated)
	}

	if _, err := f.svc.ActivateRegistration(ctx, user.ActivationKey); !errors.Is(err, domain.ErrActivationFailed) {
		t.Fatalf("expected second activation to fail, got %v", err)
	}
	if _, err := f.svc.ActivateRegistration(ctx, "unknown"); !errors.Is(err, domain.ErrActivationFailed) {
		t.Fatalf("expected unknown key to fail, got %v", err)
	}
	if _, err := f.svc.ActivateRegistration(ctx, ""); !errors.Is(err, domain.ErrActivationFailed) {
		t.Fatalf("expected empty key to fail, got %v", err)
	}
}

func TestPasswordResetKeyBoundaries(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		elapsed time.Duration
		wantErr error
	}{
		{name: "one hour", elapsed: time.Hour},
		{name: "exactly 24h", elapsed: 24 * time.Hour},
		{name: "25h", elapsed: 25 * time.Hour, wantErr: domain.ErrResetFailed},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			ctx := context.Background()
			f.registerActive(t, "roger")

			if err := f.svc.InitPasswordReset(ctx, "roger@example.com"); err != nil {
				t.Fatalf("init reset: %v", err)
			}
			stored, err := f.users.GetByLogin(ctx, "roger")
			if err != nil {
				t.Fatalf("load user: %v", err)
			}
			f.clock.Advance(tc.elapsed)

			_, err = f.svc.CompletePasswordReset(ctx, "newsecret", stored.ResetKey)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("complete reset: %v", err)
			}
			if _, err := f.svc.Authenticate(ctx, application.LoginRequest{Username: "roger", Password: "newsecret"}); err != nil {
				t.Fatalf("new password rejected: %v", err)
			}
		})
	}
}

func TestPasswordResetFlowRules(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.InitPasswordReset(ctx, "nobody@example.com"); !errors.Is(err, domain.ErrUnknownEmail) {
		t.Fatalf("expected unknown email, got %v", err)
	}

	if _, err := f.svc.Register(ctx, registerRequest("pending", "")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := f.svc.InitPasswordReset(ctx, "pending@example.com"); !errors.Is(err, domain.ErrUnknownEmail) {
		t.Fatalf("inactive account must not get a reset, got %v", err)
	}

	f.registerActive(t, "roger")
	if err := f.svc.InitPasswordReset(ctx, "ROGER@example.com"); err != nil {
		t.Fatalf("first init: %v", err)
	}
	first, _ := f.users.GetByLogin(ctx, "roger")
	if err := f.svc.InitPasswordReset(ctx, "roger@example.com"); err != nil {
		t.Fatalf("second init: %v", err)
	}
	second, _ := f.users.GetByLogin(ctx, "roger")
	if first.ResetKey == second.ResetKey {
		t.Fatalf("second request must issue a new key")
	}

	if _, err := f.svc.CompletePasswordReset(ctx, "newsecret", first.ResetKey); !errors.Is(err, domain.ErrResetFailed) {
		t.Fatalf("overwritten key must fail, got %v", err)
	}
	if _, err := f.svc.CompletePasswordReset(ctx, "abc", second.ResetKey); !errors.Is(err, domain.ErrWeakPassword) {
		t.Fatalf("expected weak password, got %v", err)
	}
	if _, err := f.svc.CompletePasswordReset(ctx, "newsecret", second.ResetKey); err != nil {
		t.Fatalf("complete reset: %v", err)
	}
	if _, err := f.svc.CompletePasswordReset(ctx, "another", second.ResetKey); !errors.Is(err, domain.ErrResetFailed) {
		t.Fatalf("reset key must be single use, got %v", err)
	}

	var resets int
	for _, m := range f.notifier.Sent() {
		if m.kind == "password_reset" {
			resets++
		}
	}
	if resets != 2 {
		t.Fatalf("expected two reset mails, got %d", resets)
	}
}

func TestChangePassword(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.registerActive(t, "roger")

	if err := f.svc.ChangePassword(ctx, "roger", "abc"); !errors.Is(err, domain.ErrWeakPassword) {
		t.Fatalf("expected weak password, got %v", err)
	}
	if err := f.svc.ChangePassword(ctx, "roger", "changed-secret"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, application.LoginRequest{Username: "roger", Password: "secret"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, application.LoginRequest{Username: "roger", Password: "changed-secret"}); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
	if err := f.svc.ChangePassword(ctx, "ghost", "whatever"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.registerActive(t, "roger")
	f.registerActive(t, "jane")

	_, err := f.svc.UpdateUser(ctx, "roger", application.ProfileUpdate{Email: "jane@example.com"})
	if !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected duplicate email, got %v", err)
	}

	updated, err := f.svc.UpdateUser(ctx, "roger", application.ProfileUpdate{
		FirstName: " Rog ",
		LastName:  "Smith",
		Email:     "Roger.Smith@Example.com",
		LangKey:   "fr",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.FirstName != "Rog" || updated.Email != "roger.smith@example.com" || updated.LangKey != "fr" {
		t.Fatalf("profile not updated: %+v", updated)
	}
	if updated.Login != "roger" || !updated.Activated {
		t.Fatalf("login and activation must be untouched: %+v", updated)
	}

	if _, err := f.svc.UpdateUser(ctx, "roger", application.ProfileUpdate{Email: "roger.smith@example.com"}); err != nil {
		t.Fatalf("keeping own email must be allowed: %v", err)
	}
}

func TestAuthenticateLocksAfterRepeatedFailures(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.registerActive(t, "roger")

	threshold := application.DefaultConfig().FailedLoginThreshold
	for i := 1; i < threshold; i++ {
		_, err := f.svc.Authenticate(ctx, application.LoginRequest{Username: "roger", Password: "wrong"})
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i, err)
		}
	}
	if _, err := f.svc.Authenticate(ctx, application.LoginRequest{Username: "roger", Password: "wrong"}); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected lockout, got %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, application.LoginRequest{Username: "roger", Password: "secret"}); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("lockout must block correct password too, got %v", err)
	}

	f.clock.Advance(application.DefaultConfig().LockoutDuration + time.Second)
	if _, err := f.svc.Authenticate(ctx, application.LoginRequest{Username: "roger", Password: "wrong"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("one failure after an expired lockout must not lock again, got %v", err)
	}
	resp, err := f.svc.Authenticate(ctx, application.LoginRequest{Username: "roger", Password: "secret"})
	if err != nil {
		t.Fatalf("expected login after lockout expired: %v", err)
	}
	if resp.IDToken == "" || resp.ExpiresIn != int64(application.DefaultConfig().TokenTTL.Seconds()) {
		t.Fatalf("unexpected login response: %+v", resp)
	}
}

type unavailableLockouts struct{}

func (unavailableLockouts) Get(context.Context, string) (ports.LockoutState, error) {
	return ports.LockoutState{}, errors.New("redis: connection refused")
}

func (unavailableLockouts) RecordFailure(context.Context, string, time.Time, int, time.Duration) (ports.LockoutState, error) {
	return ports.LockoutState{}, errors.New("redis: connection refused")
}

func (unavailableLockouts) Clear(context.Context, string) error { return nil }

// Not parallel: swaps the default logger.
func TestAuthenticateLogsWhenLockoutStateIsUnavailable(t *testing.T) {
	var logs bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })

	signer, err := security.NewEphemeralJWTSigner("test-key")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	users := memory.NewUserRepository(memory.NewOutboxRepository())
	svc := application.NewService(application.Dependencies{
		Config:      application.DefaultConfig(),
		Users:       users,
		Lockouts:    unavailableLockouts{},
		Notifier:    &recordingNotifier{},
		Hasher:      security.NewBcryptHasher(bcrypt.MinCost),
		TokenSigner: signer,
	})
	ctx := context.Background()
	user, err := svc.Register(ctx, registerRequest("roger", ""))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.ActivateRegistration(ctx, user.ActivationKey); err != nil {
		t.Fatalf("activate: %v", err)
	}

	if _, err := svc.Authenticate(ctx, application.LoginRequest{Username: "roger", Password: "secret"}); err != nil {
		t.Fatalf("login must proceed without lockout state: %v", err)
	}
	if !strings.Contains(logs.String(), `"msg":"lockout state unavailable"`) {
		t.Fatalf("expected lockout warning in logs, got %s", logs.String())
	}
	if _, err := svc.Authenticate(ctx, application.LoginRequest{Username: "roger", Password: "wrong"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestAuthenticateIssuesValidToken(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	pending, err := f.svc.Register(ctx, registerRequest("pending", ""))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, application.LoginRequest{Username: "pending", Password: "secret"}); !errors.Is(err, domain.ErrNotActivated) {
		t.Fatalf("expected not activated, got %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, application.LoginRequest{Username: "nobody", Password: "secret"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}

	if _, err := f.svc.ActivateRegistration(ctx, pending.ActivationKey); err != nil {
		t.Fatalf("activate: %v", err)
	}
	resp, err := f.svc.Authenticate(ctx, application.LoginRequest{Username: "Pending", Password: "secret", RememberMe: true})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if resp.ExpiresIn != int64(application.DefaultConfig().RememberMeTokenTTL.Seconds()) {
		t.Fatalf("remember me ttl not applied: %d", resp.ExpiresIn)
	}

	claims, err := f.svc.ValidateToken(ctx, resp.IDToken)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Login != "pending" || claims.UserID != pending.ID || claims.KeyID != "test-key" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if _, err := f.svc.ValidateToken(ctx, resp.IDToken+"x"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for tampered token, got %v", err)
	}
}
