package oauth2

import "testing"

func TestHashAndVerifyClientSecret(t *testing.T) {
	hash, err := HashClientSecret("super-secret-value")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err := VerifyClientSecret(hash, "super-secret-value")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected correct secret to verify")
	}

	ok, err = VerifyClientSecret(hash, "wrong-value")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected incorrect secret to fail verification")
	}
}

func TestHashClientSecretIsSalted(t *testing.T) {
	h1, _ := HashClientSecret("same-secret")
	h2, _ := HashClientSecret("same-secret")
	if h1 == h2 {
		t.Fatal("expected two hashes of the same secret to differ due to random salt")
	}
}
