package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tendant/myauth/pkg/domain"
	"github.com/tendant/myauth/pkg/registry"
	"github.com/tendant/myauth/pkg/repository"
	"github.com/tendant/myauth/pkg/token"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// fastHasher keeps argon2 cheap in tests.
func fastHasher() *Argon2Hasher {
	return NewArgon2HasherWithParams(Argon2Params{Time: 1, Memory: 64, Threads: 1, KeyLen: 32})
}

type sentMail struct {
	To, Subject, Body string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (n *recordingNotifier) last(t *testing.T) sentMail {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent, "no email sent")
	return n.sent[len(n.sent)-1]
}

var linkRe = regexp.MustCompile(`href="([^"]+)"`)

// tokenFromMail extracts the verification token from the link in an email body.
func tokenFromMail(t *testing.T, m sentMail) string {
	t.Helper()
	match := linkRe.FindStringSubmatch(m.Body)
	require.Len(t, match, 2, "no link in body")
	link := strings.ReplaceAll(match[1], "&amp;", "&")
	idx := strings.Index(link, VerifyEmailPath)
	require.GreaterOrEqual(t, idx, 0, "unexpected link %q", link)
	raw, err := url.PathUnescape(link[idx+len(VerifyEmailPath):])
	require.NoError(t, err)
	return raw
}

// failingRegistry simulates an unreachable shared store.
type failingRegistry struct{}

var errStoreDown = domain.StorageError("registry", errors.New("connection refused"))

func (failingRegistry) Insert(context.Context, string) error { return errStoreDown }
func (failingRegistry) Contains(context.Context, string) (bool, error) {
	return false, errStoreDown
}
func (failingRegistry) Remove(context.Context, string) error { return errStoreDown }

type fixture struct {
	clock    *time.Time
	codec    *token.Codec
	users    *repository.MemoryUsersRepository
	registry *registry.Memory
	notifier *recordingNotifier
	sessions *SessionService
	verify   *VerificationService
}

func newFixture(t *testing.T, uniqueFields ...domain.UniqueField) *fixture {
	t.Helper()

	now := time.Unix(1_700_000_000, 0)
	clock := &now
	nowFn := func() time.Time { return *clock }

	codec, err := token.NewCodec(token.Config{Secret: []byte(testSecret), Issuer: "myauth-test", Now: nowFn})
	require.NoError(t, err)

	users := repository.NewMemoryUsersRepository()
	reg := registry.NewMemory(DefaultRefreshTokenTTL)
	notifier := &recordingNotifier{}
	hasher := fastHasher()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &fixture{
		clock:    clock,
		codec:    codec,
		users:    users,
		registry: reg,
		notifier: notifier,
		sessions: NewSessionService(SessionConfig{}, codec, reg, users, hasher),
		verify: NewVerificationService(VerificationConfig{
			AppBaseURL:   "https://auth.example.com/",
			UniqueFields: uniqueFields,
			Now:          nowFn,
		}, codec, users, hasher, notifier, logger),
	}
}

func (f *fixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

// registerAndVerify creates a verified account.
func (f *fixture) registerAndVerify(t *testing.T, email, password string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.verify.Register(ctx, RegisterInput{Email: email, Password: password, FirstName: "Ada"})
	require.NoError(t, err)
	_, err = f.verify.VerifyEmail(ctx, tokenFromMail(t, f.notifier.last(t)))
	require.NoError(t, err)
}
