package portalauth_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrEthical07/portalauth"
	"github.com/MrEthical07/portalauth/permission"
)

func TestRegisterCreatesPendingUnverifiedAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acct, err := env.engine.Register(ctx, portalauth.CreateAccountRequest{
		Email:            "New.Employer@Portal.test",
		Password:         testPassword,
		Role:             permission.RoleEmployer,
		CompanyProfileID: " cp-77 ",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if acct.Status != permission.StatusPending || acct.Verified {
		t.Fatalf("new account standing = %s/%v", acct.Status, acct.Verified)
	}
	if acct.Email != "new.employer@portal.test" || acct.CompanyProfileID != "cp-77" {
		t.Fatalf("unexpected account %+v", acct)
	}
	if acct.PasswordHash != "" {
		t.Fatal("register result leaked password hash")
	}

	stored, err := env.store.GetAccountByID(ctx, acct.ID)
	if err != nil {
		t.Fatalf("stored lookup: %v", err)
	}
	if !strings.HasPrefix(stored.PasswordHash, "$argon2id$") {
		t.Fatalf("stored hash = %q", stored.PasswordHash)
	}

	res, err := env.engine.Login(ctx, "new.employer@portal.test", testPassword)
	if err != nil {
		t.Fatalf("login after register: %v", err)
	}
	auth, err := env.engine.Authenticate(res.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if auth.Capabilities.Has(permission.CapPostJobs) {
		t.Fatal("pending employer must not post jobs")
	}
}

func TestRegisterRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.engine.Register(ctx, portalauth.CreateAccountRequest{
		Email: "taken@portal.test", Password: testPassword, Role: permission.RoleStudent,
	}); err != nil {
		t.Fatalf("seed register: %v", err)
	}

	cases := []struct {
		name string
		req  portalauth.CreateAccountRequest
		want error
	}{
		{"admin", portalauth.CreateAccountRequest{Email: "a@portal.test", Password: testPassword, Role: permission.RoleAdmin}, portalauth.ErrInvalidRequest},
		{"unknown role", portalauth.CreateAccountRequest{Email: "b@portal.test", Password: testPassword}, portalauth.ErrInvalidRequest},
		{"bad email", portalauth.CreateAccountRequest{Email: "no-at-sign", Password: testPassword, Role: permission.RoleStudent}, portalauth.ErrInvalidRequest},
		{"short password", portalauth.CreateAccountRequest{Email: "c@portal.test", Password: "short", Role: permission.RoleStudent}, portalauth.ErrInvalidRequest},
		{"duplicate", portalauth.CreateAccountRequest{Email: "TAKEN@portal.test", Password: testPassword, Role: permission.RoleProfessor}, portalauth.ErrAccountExists},
	}
	for _, tc := range cases {
		if _, err := env.engine.Register(ctx, tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestRegisterDropsCompanyProfileForNonEmployers(t *testing.T) {
	env := newTestEnv(t)
	acct, err := env.engine.Register(context.Background(), portalauth.CreateAccountRequest{
		Email:            "stu@portal.test",
		Password:         testPassword,
		Role:             permission.RoleStudent,
		CompanyProfileID: "cp-1",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if acct.CompanyProfileID != "" {
		t.Fatalf("student carries company profile %q", acct.CompanyProfileID)
	}
}

func TestListAccountsClampsAndStripsHashes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		env.seed(t, "list-"+string(rune('a'+i)), permission.RoleStudent, permission.StatusPending, false)
	}

	got, err := env.engine.ListAccounts(ctx, portalauth.AccountFilter{Limit: 1000})
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for _, a := range got {
		if a.PasswordHash != "" {
			t.Fatal("list leaked password hash")
		}
	}

	if _, err := env.engine.ListAccounts(ctx, portalauth.AccountFilter{Offset: -1}); !errors.Is(err, portalauth.ErrInvalidRequest) {
		t.Fatalf("negative offset: err = %v", err)
	}
}
