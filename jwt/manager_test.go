package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/portalauth/permission"
)

var (
	testSessionSecret = []byte("session-secret-session-secret-0001")
	testRenewSecret   = []byte("renewal-secret-renewal-secret-0002")
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newSessionManager(t *testing.T, clock *fakeClock) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		Use:           UseAccess,
		SigningMethod: MethodHS256,
		PrivateKey:    testSessionSecret,
		Issuer:        "portalauth",
		Audience:      "portal",
		RequireIAT:    true,
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func employerClaims() Claims {
	return Claims{
		SubjectID:  "acct-1",
		Attributes: Employer{CompanyProfileID: "company-9"},
		Status:     permission.StatusApproved,
		Verified:   true,
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_800_000_000, 0)}
	m := newSessionManager(t, clock)

	token, err := m.Issue(employerClaims(), 15*time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	clock.Advance(time.Minute)
	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if claims.SubjectID != "acct-1" || claims.Role() != permission.RoleEmployer {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	emp, ok := claims.Attributes.(Employer)
	if !ok || emp.CompanyProfileID != "company-9" {
		t.Fatalf("expected employer attributes, got %#v", claims.Attributes)
	}
	if claims.Status != permission.StatusApproved || !claims.Verified {
		t.Fatalf("status not carried: %+v", claims)
	}
	if want := time.Unix(1_800_000_000, 0).Add(15 * time.Minute); !claims.ExpiresAt.Equal(want) {
		t.Fatalf("expiresAt = %v, want %v", claims.ExpiresAt, want)
	}
}

func TestZeroTTLIsRejectedAfterAnyDelay(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_800_000_000, 0)}
	m := newSessionManager(t, clock)

	token, err := m.Issue(employerClaims(), 0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	clock.Advance(time.Millisecond)
	if _, err := m.Verify(token); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for ttl=0 credential, got %v", err)
	}
}

func TestIssueRejectsNegativeTTL(t *testing.T) {
	m := newSessionManager(t, &fakeClock{now: time.Now()})
	if _, err := m.Issue(employerClaims(), -time.Second); err == nil {
		t.Fatal("expected negative ttl to fail")
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newSessionManager(t, clock)

	token, err := m.Issue(employerClaims(), time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	b := []byte(token)
	last := len(b) - 2
	if b[last] == 'A' {
		b[last] = 'B'
	} else {
		b[last] = 'A'
	}

	if _, err := m.Verify(string(b)); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for tampered token, got %v", err)
	}
}

func TestVerifyRejectsOtherKeyAndUse(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	session := newSessionManager(t, clock)

	renewal, err := NewManager(Config{
		Use:           UseRefresh,
		SigningMethod: MethodHS256,
		PrivateKey:    testRenewSecret,
		Issuer:        "portalauth",
		Audience:      "portal",
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("new renewal manager: %v", err)
	}

	renewalToken, err := renewal.Issue(Claims{SubjectID: "acct-1", TokenID: "tok-1"}, time.Hour)
	if err != nil {
		t.Fatalf("issue renewal: %v", err)
	}
	if _, err := session.Verify(renewalToken); !errors.Is(err, ErrInvalid) {
		t.Fatalf("renewal credential accepted as session credential: %v", err)
	}

	sameKeyWrongUse, err := NewManager(Config{
		Use:           UseRefresh,
		SigningMethod: MethodHS256,
		PrivateKey:    testSessionSecret,
		Issuer:        "portalauth",
		Audience:      "portal",
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	crossToken, err := sameKeyWrongUse.Issue(Claims{SubjectID: "acct-1", TokenID: "tok-2"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := session.Verify(crossToken); !errors.Is(err, ErrInvalid) {
		t.Fatalf("token use was not enforced: %v", err)
	}

	claims, err := renewal.Verify(renewalToken)
	if err != nil {
		t.Fatalf("verify renewal: %v", err)
	}
	if claims.TokenID != "tok-1" || claims.Attributes != nil {
		t.Fatalf("unexpected renewal claims: %+v", claims)
	}
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{Use: UseAccess, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	wire := wireClaims{Use: UseAccess, Role: "ADMIN", Status: "APPROVED", RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "acct-1",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, wire)
	token, err := tok.SignedString(testSessionSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.Verify(token); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected wrong algorithm to be rejected, got %v", err)
	}
}

func TestVerifyIssuerAudienceAndLeeway(t *testing.T) {
	_, priv := newEdKeys(t)
	clock := &fakeClock{now: time.Now().Truncate(time.Second)}
	m, err := NewManager(Config{
		Use:           UseAccess,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     priv.Public().(ed25519.PublicKey),
		Issuer:        "portalauth",
		Audience:      "portal",
		Leeway:        30 * time.Second,
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	sign := func(issuer, audience string, notBefore, exp time.Time) string {
		t.Helper()
		wire := wireClaims{Use: UseAccess, Role: "STUDENT", Status: "APPROVED", RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "acct-1",
			Issuer:    issuer,
			Audience:  gjwt.ClaimStrings{audience},
			NotBefore: gjwt.NewNumericDate(notBefore),
			ExpiresAt: gjwt.NewNumericDate(exp),
			IssuedAt:  gjwt.NewNumericDate(exp.Add(-time.Minute)),
		}}
		s, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, wire).SignedString(priv)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}

	now := clock.now
	if _, err := m.Verify(sign("other", "portal", now, now.Add(time.Minute))); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}
	if _, err := m.Verify(sign("portalauth", "other", now, now.Add(time.Minute))); err == nil {
		t.Fatal("expected wrong audience to fail")
	}
	if _, err := m.Verify(sign("portalauth", "portal", now.Add(15*time.Second), now.Add(time.Minute))); err != nil {
		t.Fatalf("expected not-before within leeway to pass: %v", err)
	}
	if _, err := m.Verify(sign("portalauth", "portal", now.Add(-time.Minute), now.Add(-time.Second))); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected credential one second past expiry to fail despite leeway, got %v", err)
	}
	if _, err := m.Verify(sign("portalauth", "portal", now.Add(-time.Minute), now)); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected credential at its expiry instant to fail, got %v", err)
	}
}

func TestLeewayNeverExtendsExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Now().Truncate(time.Second)}
	m, err := NewManager(Config{
		Use:           UseAccess,
		SigningMethod: MethodHS256,
		PrivateKey:    testSessionSecret,
		Leeway:        2 * time.Minute,
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, err := m.Issue(employerClaims(), time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	clock.Advance(59 * time.Second)
	if _, err := m.Verify(token); err != nil {
		t.Fatalf("expected credential before expiry to pass: %v", err)
	}
	clock.Advance(2 * time.Second)
	if _, err := m.Verify(token); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected expired credential to fail, got %v", err)
	}
}

func TestVerifyUnknownKidFails(t *testing.T) {
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{
		Use:           UseAccess,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pub},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	good, err := m.Issue(Claims{SubjectID: "acct-1", Attributes: Admin{}, Status: permission.StatusApproved, Verified: true}, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(good); err != nil {
		t.Fatalf("expected known kid token to pass: %v", err)
	}

	wire := wireClaims{Use: UseAccess, Role: "ADMIN", Status: "APPROVED", RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "acct-1",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, wire)
	tok.Header["kid"] = "k2"
	other, _ := tok.SignedString(priv)
	if _, err := m.Verify(other); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected unknown kid failure, got %v", err)
	}
}

func TestVerifyRejectsUnknownRole(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newSessionManager(t, clock)

	wire := wireClaims{Use: UseAccess, Role: "ROOT", Status: "APPROVED", RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "acct-1",
		Issuer:    "portalauth",
		Audience:  gjwt.ClaimStrings{"portal"},
		IssuedAt:  gjwt.NewNumericDate(clock.now),
		ExpiresAt: gjwt.NewNumericDate(clock.now.Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, wire).SignedString(testSessionSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected unknown role to fail, got %v", err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	cases := []Config{
		{SigningMethod: MethodHS256, PrivateKey: testSessionSecret},
		{Use: UseAccess, SigningMethod: MethodHS256, PrivateKey: []byte("short")},
		{Use: UseAccess, SigningMethod: "rs256", PrivateKey: testSessionSecret},
		{Use: UseAccess, SigningMethod: MethodHS256, PrivateKey: testSessionSecret, Leeway: time.Hour},
		{Use: UseAccess, SigningMethod: MethodEd25519},
	}
	for i, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("case %d: expected config error", i)
		}
	}
}

func TestAttributesForExhaustive(t *testing.T) {
	for _, role := range permission.Roles() {
		attrs, err := AttributesFor(role, "c1")
		if err != nil {
			t.Fatalf("AttributesFor(%s): %v", role, err)
		}
		if attrs.Role() != role {
			t.Fatalf("AttributesFor(%s).Role() = %s", role, attrs.Role())
		}
		switch a := attrs.(type) {
		case Employer:
			if a.CompanyProfileID != "c1" {
				t.Fatalf("employer lost company profile id")
			}
		case Student, Professor, Admin:
		default:
			t.Fatalf("unexpected variant %T", a)
		}
	}
	if _, err := AttributesFor(permission.RoleUnknown, ""); err == nil {
		t.Fatal("expected unknown role error")
	}
}
