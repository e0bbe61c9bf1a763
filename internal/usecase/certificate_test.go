package usecase

import (
	"context"
	"testing"

	talentchain "github.com/kbunet/talentchain"
	"github.com/kbunet/talentchain/internal/domain"
)

// --- mocks ---

type mockCertRepo struct {
	byHash   map[string]domain.Certificate
	byID     map[string]domain.Certificate
	log      []domain.VerificationLog
	failNext error
}

func newMockCertRepo() *mockCertRepo {
	return &mockCertRepo{
		byHash: map[string]domain.Certificate{},
		byID:   map[string]domain.Certificate{},
	}
}

func (m *mockCertRepo) Create(ctx context.Context, cert domain.Certificate) error {
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	if _, ok := m.byHash[cert.Hash]; ok {
		return domain.DuplicateError{Resource: "certificate", Key: cert.Hash}
	}
	m.byHash[cert.Hash] = cert
	m.byID[cert.ID] = cert
	return nil
}

func (m *mockCertRepo) Get(ctx context.Context, id string) (domain.Certificate, error) {
	cert, ok := m.byID[id]
	if !ok {
		return domain.Certificate{}, domain.NotFoundError{Resource: "certificate"}
	}
	return cert, nil
}

func (m *mockCertRepo) GetByHash(ctx context.Context, hash string) (domain.Certificate, error) {
	cert, ok := m.byHash[hash]
	if !ok {
		return domain.Certificate{}, domain.NotFoundError{Resource: "certificate"}
	}
	return cert, nil
}

func (m *mockCertRepo) List(ctx context.Context) ([]domain.Certificate, error) { return nil, nil }
func (m *mockCertRepo) ListByHolder(ctx context.Context, did string) ([]domain.Certificate, error) {
	var out []domain.Certificate
	for _, c := range m.byHash {
		if c.HolderDID == did {
			out = append(out, c)
		}
	}
	return out, nil
}
func (m *mockCertRepo) ListByIssuer(ctx context.Context, did string) ([]domain.Certificate, error) {
	return nil, nil
}
func (m *mockCertRepo) Update(ctx context.Context, id string, patch CertificatePatch) (domain.Certificate, error) {
	cert, ok := m.byID[id]
	if !ok {
		return domain.Certificate{}, domain.NotFoundError{Resource: "certificate"}
	}
	if patch.Title != nil {
		cert.Title = *patch.Title
	}
	m.byID[id] = cert
	m.byHash[cert.Hash] = cert
	return cert, nil
}
func (m *mockCertRepo) Delete(ctx context.Context, id string) error {
	cert, ok := m.byID[id]
	if !ok {
		return domain.NotFoundError{Resource: "certificate"}
	}
	delete(m.byID, id)
	delete(m.byHash, cert.Hash)
	return nil
}
func (m *mockCertRepo) AppendVerification(ctx context.Context, entry domain.VerificationLog) error {
	m.log = append(m.log, entry)
	return nil
}
func (m *mockCertRepo) ListVerifications(ctx context.Context, certificateID string) ([]domain.VerificationLog, error) {
	var out []domain.VerificationLog
	for _, e := range m.log {
		if e.CertificateID == certificateID {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockMetadataStore struct {
	uploads int
	err     error
}

func (m *mockMetadataStore) Upload(ctx context.Context, value any) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.uploads++
	return "QmTestAddr", nil
}
func (m *mockMetadataStore) Fetch(ctx context.Context, address string) (map[string]any, error) {
	return map[string]any{"title": "B.Sc. Diploma"}, nil
}

type mockLedger struct {
	records  int
	checks   int
	checkOK  bool
	checkErr error
	recErr   error
}

func (m *mockLedger) Record(ctx context.Context, holderDid, metadataURI, hash string) (string, error) {
	if m.recErr != nil {
		return "", m.recErr
	}
	m.records++
	return "0xtx" + hash[:8], nil
}
func (m *mockLedger) Check(ctx context.Context, holderDid, hash string) (bool, error) {
	m.checks++
	return m.checkOK, m.checkErr
}
func (m *mockLedger) Details(ctx context.Context, holderDid, hash string) (*domain.LedgerRecord, error) {
	return &domain.LedgerRecord{RecordRef: "ref", Owner: holderDid, MetadataURI: "QmTestAddr"}, nil
}

type mockEvents struct {
	published []talentchain.Event
}

func (m *mockEvents) Publish(ctx context.Context, event talentchain.Event) error {
	m.published = append(m.published, event)
	return nil
}

type mockIssuers struct {
	institutions map[string]domain.Institution
}

func (m *mockIssuers) GetByDID(ctx context.Context, did string) (domain.Institution, error) {
	inst, ok := m.institutions[did]
	if !ok {
		return domain.Institution{}, domain.NotFoundError{Resource: "institution"}
	}
	return inst, nil
}

// --- tests ---

const (
	issuerDid   = "did:kbu:0x1111111111111111111111111111111111111111"
	holderDid   = "did:kbu:0x2222222222222222222222222222222222222222"
	verifierDid = "did:kbu:0x3333333333333333333333333333333333333333"
)

func issueInput() IssueInput {
	return IssueInput{
		Title:     "B.Sc. Diploma",
		Type:      talentchain.CertificateTypeAcademic,
		IssuerDID: issuerDid,
		HolderDID: holderDid,
		Extra:     map[string]any{"grade": "A"},
	}
}

func newUsecase(repo *mockCertRepo, store *mockMetadataStore, ledger *mockLedger, events *mockEvents) *CertificateUsecase {
	var pub EventPublisher
	if events != nil {
		pub = events
	}
	return NewCertificateUsecase(repo, store, ledger, nil, pub)
}

func TestIssueSuccess(t *testing.T) {
	repo := newMockCertRepo()
	store := &mockMetadataStore{}
	ledger := &mockLedger{checkOK: true}
	events := &mockEvents{}
	uc := newUsecase(repo, store, ledger, events)

	cert, err := uc.Issue(context.Background(), issueInput())
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if !cert.Verified {
		t.Fatalf("expected issued certificate to be auto-verified")
	}
	if !talentchain.IsContentHash(cert.Hash) {
		t.Fatalf("expected sha256 hash, got %q", cert.Hash)
	}
	if cert.MetadataURI == "" || cert.TxHash == "" {
		t.Fatalf("expected metadata address and record reference")
	}
	if store.uploads != 1 || ledger.records != 1 {
		t.Fatalf("expected one upload and one ledger record")
	}
	if len(events.published) != 1 || events.published[0].Type != talentchain.EventCertificateIssued {
		t.Fatalf("expected one issued event")
	}
}

func TestIssueDuplicateRejected(t *testing.T) {
	repo := newMockCertRepo()
	uc := newUsecase(repo, &mockMetadataStore{}, &mockLedger{}, nil)

	first, err := uc.Issue(context.Background(), issueInput())
	if err != nil {
		t.Fatalf("first issue failed: %v", err)
	}

	// Identical metadata within the same second hashes identically and trips
	// the early check; across a second boundary the unique index is the
	// authority, simulated here by the repository conflict.
	repo.failNext = domain.DuplicateError{Resource: "certificate", Key: first.Hash}
	_, err = uc.Issue(context.Background(), issueInput())
	if err == nil {
		t.Fatalf("expected duplicate error")
	}
	if _, ok := err.(domain.DuplicateError); !ok {
		t.Fatalf("expected DuplicateError, got %T", err)
	}

	// first certificate is unaffected
	kept, err := uc.FindByHash(context.Background(), first.Hash)
	if err != nil || kept.ID != first.ID {
		t.Fatalf("first certificate must survive the rejected duplicate")
	}
}

func TestIssueValidation(t *testing.T) {
	uc := newUsecase(newMockCertRepo(), &mockMetadataStore{}, &mockLedger{}, nil)

	cases := []IssueInput{
		{Title: "", Type: talentchain.CertificateTypeAcademic, IssuerDID: issuerDid, HolderDID: holderDid},
		{Title: "x", Type: "diploma", IssuerDID: issuerDid, HolderDID: holderDid},
		{Title: "x", Type: talentchain.CertificateTypeAcademic, IssuerDID: "not-a-did", HolderDID: holderDid},
		{Title: "x", Type: talentchain.CertificateTypeAcademic, IssuerDID: issuerDid, HolderDID: "nope"},
	}
	for i, input := range cases {
		if _, err := uc.Issue(context.Background(), input); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestIssueRejectsUnapprovedInstitution(t *testing.T) {
	issuers := &mockIssuers{institutions: map[string]domain.Institution{
		issuerDid: {DID: issuerDid, Approved: false},
	}}
	uc := NewCertificateUsecase(newMockCertRepo(), &mockMetadataStore{}, &mockLedger{}, issuers, nil)

	if _, err := uc.Issue(context.Background(), issueInput()); err == nil {
		t.Fatalf("expected unapproved institution to be rejected")
	}
}

func TestIssueAbortsOnMetadataFailure(t *testing.T) {
	repo := newMockCertRepo()
	store := &mockMetadataStore{err: domain.ExternalServiceError{Service: "ipfs"}}
	uc := newUsecase(repo, store, &mockLedger{}, nil)

	if _, err := uc.Issue(context.Background(), issueInput()); err == nil {
		t.Fatalf("expected issuance to abort")
	}
	if len(repo.byHash) != 0 {
		t.Fatalf("no partial certificate row may be committed")
	}
}

func TestIssueAbortsOnLedgerFailure(t *testing.T) {
	repo := newMockCertRepo()
	ledger := &mockLedger{recErr: domain.ExternalServiceError{Service: "ledger"}}
	uc := newUsecase(repo, &mockMetadataStore{}, ledger, nil)

	if _, err := uc.Issue(context.Background(), issueInput()); err == nil {
		t.Fatalf("expected issuance to abort")
	}
	if len(repo.byHash) != 0 {
		t.Fatalf("no partial certificate row may be committed")
	}
}

func TestVerifyUnknownHash(t *testing.T) {
	repo := newMockCertRepo()
	ledger := &mockLedger{checkOK: true}
	uc := newUsecase(repo, &mockMetadataStore{}, ledger, nil)

	hash := "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"
	out, err := uc.Verify(context.Background(), hash, verifierDid)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if out.Valid {
		t.Fatalf("unknown hash must be invalid")
	}
	if ledger.checks != 0 {
		t.Fatalf("ledger must not be consulted for unknown hashes")
	}
	if len(repo.log) != 0 {
		t.Fatalf("no log entry may reference a nonexistent certificate")
	}
}

func TestVerifyValid(t *testing.T) {
	repo := newMockCertRepo()
	ledger := &mockLedger{checkOK: true}
	events := &mockEvents{}
	uc := newUsecase(repo, &mockMetadataStore{}, ledger, events)

	cert, err := uc.Issue(context.Background(), issueInput())
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	out, err := uc.Verify(context.Background(), cert.Hash, verifierDid)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !out.Valid || out.Certificate == nil || out.Certificate.ID != cert.ID {
		t.Fatalf("expected valid result with certificate")
	}

	if len(repo.log) != 1 {
		t.Fatalf("expected exactly one verification log entry, got %d", len(repo.log))
	}
	entry := repo.log[0]
	if entry.Result != talentchain.VerificationResultValid || entry.VerifierDID != verifierDid {
		t.Fatalf("unexpected log entry: %+v", entry)
	}
}

func TestVerifyLedgerRejects(t *testing.T) {
	repo := newMockCertRepo()
	ledger := &mockLedger{checkOK: true}
	uc := newUsecase(repo, &mockMetadataStore{}, ledger, nil)

	cert, _ := uc.Issue(context.Background(), issueInput())

	ledger.checkOK = false
	out, err := uc.Verify(context.Background(), cert.Hash, verifierDid)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if out.Valid || out.Certificate != nil {
		t.Fatalf("ledger rejection must yield invalid without certificate")
	}
	if len(repo.log) != 1 || repo.log[0].Result != talentchain.VerificationResultInvalid {
		t.Fatalf("expected one invalid log entry")
	}
}

func TestVerifyLedgerErrorLoggedInvalid(t *testing.T) {
	repo := newMockCertRepo()
	ledger := &mockLedger{checkOK: true}
	uc := newUsecase(repo, &mockMetadataStore{}, ledger, nil)

	cert, _ := uc.Issue(context.Background(), issueInput())

	ledger.checkErr = domain.ExternalServiceError{Service: "ledger"}
	out, err := uc.Verify(context.Background(), cert.Hash, verifierDid)
	if err != nil {
		t.Fatalf("a ledger error must not fail the verification: %v", err)
	}
	if out.Valid {
		t.Fatalf("a ledger error must yield an invalid verdict")
	}
	if len(repo.log) != 1 || repo.log[0].Result != talentchain.VerificationResultInvalid {
		t.Fatalf("expected exactly one invalid log entry, got %+v", repo.log)
	}
}

func TestUpdateNeverTouchesHash(t *testing.T) {
	repo := newMockCertRepo()
	uc := newUsecase(repo, &mockMetadataStore{}, &mockLedger{}, nil)

	cert, _ := uc.Issue(context.Background(), issueInput())

	title := "Renamed Diploma"
	updated, err := uc.Update(context.Background(), cert.ID, CertificatePatch{Title: &title})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Title != title {
		t.Fatalf("title not updated")
	}
	if updated.Hash != cert.Hash || updated.TxHash != cert.TxHash {
		t.Fatalf("update must not touch hash or ledger reference")
	}
}
