package main

import (
	"context"
	"strings"
	"testing"
)

func TestAccountAddListRemove(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	stdout, _, err := runCLI(t, env, "account", "add", "marketing", "linkedin", "--token", "tok-1")
	if err != nil {
		t.Fatalf("account add: %v", err)
	}
	if !strings.Contains(stdout, "Stored credentials") {
		t.Fatalf("unexpected add output: %q", stdout)
	}

	stdout, _, err = runCLI(t, env, "account", "list")
	if err != nil {
		t.Fatalf("account list: %v", err)
	}
	if !strings.Contains(stdout, "marketing") || !strings.Contains(stdout, "linkedin") {
		t.Fatalf("unexpected list output: %q", stdout)
	}
	if strings.Contains(stdout, "tok-1") {
		t.Fatal("access token must not appear in list output")
	}

	if _, _, err := runCLI(t, env, "account", "remove", "marketing", "linkedin"); err != nil {
		t.Fatalf("account remove: %v", err)
	}
	account, err := env.store.GetAccount(ctx, "marketing", "linkedin")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if account != nil {
		t.Fatal("expected account to be removed")
	}
}

func TestAccountAddRequiresToken(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env, "account", "add", "marketing", "linkedin")
	if err == nil || !strings.Contains(err.Error(), "--token is required") {
		t.Fatalf("expected token requirement, got %v", err)
	}
}
