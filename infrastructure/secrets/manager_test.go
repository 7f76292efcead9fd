package secrets

import (
	"context"
	"testing"
)

type memRepo struct {
	secrets map[string]*Secret
	allowed map[string][]string
	audits  []*AuditLog
}

func newMemRepo() *memRepo {
	return &memRepo{secrets: make(map[string]*Secret), allowed: make(map[string][]string)}
}

func key(userID, name string) string { return userID + "/" + name }

func (r *memRepo) GetSecretByName(ctx context.Context, userID, name string) (*Secret, error) {
	s, ok := r.secrets[key(userID, name)]
	if !ok {
		return nil, nil
	}
	return s, nil
}

func (r *memRepo) PutSecret(ctx context.Context, secret *Secret) error {
	r.secrets[key(secret.UserID, secret.Name)] = secret
	return nil
}

func (r *memRepo) GetAllowedServices(ctx context.Context, userID, secretName string) ([]string, error) {
	return r.allowed[key(userID, secretName)], nil
}

func (r *memRepo) CreateAuditLog(ctx context.Context, log *AuditLog) error {
	r.audits = append(r.audits, log)
	return nil
}

func testMasterKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")[:32]
}

func TestManagerEscrowAndResolveDatabaseKey(t *testing.T) {
	repo := newMemRepo()
	mgr, err := NewManager(repo, testMasterKey())
	if err != nil {
		t.Fatalf("NewManager() err = %v", err)
	}

	if err := mgr.EscrowDatabaseKey(context.Background(), "user-1", "super-secret-passphrase"); err != nil {
		t.Fatalf("EscrowDatabaseKey() err = %v", err)
	}

	got, err := mgr.ResolveDatabaseKey(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ResolveDatabaseKey() err = %v", err)
	}
	if got != "super-secret-passphrase" {
		t.Errorf("ResolveDatabaseKey() = %q, want %q", got, "super-secret-passphrase")
	}

	if len(repo.audits) == 0 || !repo.audits[len(repo.audits)-1].Success {
		t.Error("expected a successful audit log entry for the resolve")
	}
}

func TestManagerDatabaseKeyCiphertextIsBoundToAccount(t *testing.T) {
	repo := newMemRepo()
	mgr, _ := NewManager(repo, testMasterKey())

	if err := mgr.EscrowDatabaseKey(context.Background(), "user-1", "user-1-passphrase"); err != nil {
		t.Fatalf("EscrowDatabaseKey() err = %v", err)
	}

	// Splice user-1's escrowed ciphertext into user-2's row: envelope
	// encryption binds the user ID into the AEAD's AAD, so decrypting
	// under user-2's derived key must fail rather than silently return
	// user-1's passphrase.
	stolen := repo.secrets[key("user-1", databaseKeySecretName)]
	repo.secrets[key("user-2", databaseKeySecretName)] = &Secret{
		UserID:         "user-2",
		Name:           databaseKeySecretName,
		EncryptedValue: stolen.EncryptedValue,
	}

	if _, err := mgr.ResolveDatabaseKey(context.Background(), "user-2"); err == nil {
		t.Error("expected ResolveDatabaseKey() to fail decrypting a ciphertext escrowed for a different account")
	}
}

func TestManagerGetSecretForServiceRejectsEmptyServiceID(t *testing.T) {
	repo := newMemRepo()
	mgr, _ := NewManager(repo, testMasterKey())
	_ = mgr.EscrowDatabaseKey(context.Background(), "user-1", "p")

	_, err := mgr.GetSecretForService(context.Background(), "user-1", databaseKeySecretName, "", false)
	if err != ErrForbidden {
		t.Errorf("err = %v, want %v", err, ErrForbidden)
	}
}

func TestManagerGetSecretForServiceEnforcesStrictAllowlist(t *testing.T) {
	repo := newMemRepo()
	mgr, _ := NewManager(repo, testMasterKey())
	_ = mgr.EscrowDatabaseKey(context.Background(), "user-1", "p")
	repo.allowed[key("user-1", databaseKeySecretName)] = []string{"other-service"}

	_, err := mgr.GetSecretForService(context.Background(), "user-1", databaseKeySecretName, "pulsearc-agent", true)
	if err != ErrForbidden {
		t.Errorf("err = %v, want %v", err, ErrForbidden)
	}
}

func TestManagerGetSecretForServiceNotFound(t *testing.T) {
	repo := newMemRepo()
	mgr, _ := NewManager(repo, testMasterKey())

	_, err := mgr.GetSecretForService(context.Background(), "user-1", "missing", "pulsearc-agent", false)
	if err != ErrNotFound {
		t.Errorf("err = %v, want %v", err, ErrNotFound)
	}
}
