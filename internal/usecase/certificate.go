package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	talentchain "github.com/kbunet/talentchain"
	"github.com/kbunet/talentchain/internal/domain"
)

// CertificateRepository defines persistence for certificates and their
// verification log. Create must enforce hash uniqueness at the storage layer
// and return DuplicateError on conflict.
type CertificateRepository interface {
	Create(ctx context.Context, cert domain.Certificate) error
	Get(ctx context.Context, id string) (domain.Certificate, error)
	GetByHash(ctx context.Context, hash string) (domain.Certificate, error)
	List(ctx context.Context) ([]domain.Certificate, error)
	ListByHolder(ctx context.Context, holderDid string) ([]domain.Certificate, error)
	ListByIssuer(ctx context.Context, issuerDid string) ([]domain.Certificate, error)
	Update(ctx context.Context, id string, patch CertificatePatch) (domain.Certificate, error)
	Delete(ctx context.Context, id string) error
	AppendVerification(ctx context.Context, entry domain.VerificationLog) error
	ListVerifications(ctx context.Context, certificateID string) ([]domain.VerificationLog, error)
}

// MetadataStore is the content-addressed store for certificate metadata.
type MetadataStore interface {
	Upload(ctx context.Context, value any) (string, error)
	Fetch(ctx context.Context, address string) (map[string]any, error)
}

// Ledger is the external system of record. Both backends take the holder DID
// so the profile variant can locate the holder's profile for hash scans.
type Ledger interface {
	Record(ctx context.Context, holderDid, metadataURI, hash string) (string, error)
	Check(ctx context.Context, holderDid, hash string) (bool, error)
	Details(ctx context.Context, holderDid, hash string) (*domain.LedgerRecord, error)
}

// EventPublisher fans out issuance/verification events to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event talentchain.Event) error
}

// IssuerDirectory resolves issuer DIDs that belong to registered institutions.
type IssuerDirectory interface {
	GetByDID(ctx context.Context, did string) (domain.Institution, error)
}

type IssueInput struct {
	Title     string
	Type      talentchain.CertificateType
	IssuerDID string
	HolderDID string
	Extra     map[string]any
}

type CertificatePatch struct {
	Title    *string
	Verified *bool
}

type VerifyOutput struct {
	Valid       bool
	Certificate *domain.Certificate
}

type CertificateUsecase struct {
	repo     CertificateRepository
	metadata MetadataStore
	ledger   Ledger
	issuers  IssuerDirectory
	events   EventPublisher
}

func NewCertificateUsecase(
	repo CertificateRepository,
	metadata MetadataStore,
	ledger Ledger,
	issuers IssuerDirectory,
	events EventPublisher,
) *CertificateUsecase {
	return &CertificateUsecase{
		repo:     repo,
		metadata: metadata,
		ledger:   ledger,
		issuers:  issuers,
		events:   events,
	}
}

// Issue computes the content hash, uploads the metadata, records the hash on
// the ledger and persists the certificate with verified=true. Any failure
// aborts without leaving a partial row; metadata or ledger writes that
// already happened are not retracted because neither system has a delete.
func (uc *CertificateUsecase) Issue(ctx context.Context, input IssueInput) (domain.Certificate, error) {
	if input.Title == "" {
		return domain.Certificate{}, domain.ValidationError{Message: "title is required"}
	}
	if !input.Type.Valid() {
		return domain.Certificate{}, domain.ValidationError{Message: "type must be academic or experience"}
	}
	if !talentchain.IsDID(input.IssuerDID) {
		return domain.Certificate{}, domain.ValidationError{Message: "invalid issuer did"}
	}
	if !talentchain.IsDID(input.HolderDID) {
		return domain.Certificate{}, domain.ValidationError{Message: "invalid holder did"}
	}

	if uc.issuers != nil {
		institution, err := uc.issuers.GetByDID(ctx, input.IssuerDID)
		if err == nil && !institution.Approved {
			return domain.Certificate{}, domain.ValidationError{Message: "issuer institution is not approved"}
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return domain.Certificate{}, err
		}
	}

	meta := talentchain.CertificateMetadata{
		Title:     input.Title,
		Type:      input.Type,
		IssuerDID: input.IssuerDID,
		HolderDID: input.HolderDID,
		IssuedAt:  time.Now().UTC().Truncate(time.Second),
		Extra:     input.Extra,
	}

	hash, err := meta.Hash()
	if err != nil {
		return domain.Certificate{}, err
	}

	// Early duplicate check for a friendly error. The unique index on hash
	// remains the authority: a concurrent issuance that slips past this
	// check still fails at Create with DuplicateError.
	if _, err := uc.repo.GetByHash(ctx, hash); err == nil {
		return domain.Certificate{}, domain.DuplicateError{Resource: "certificate", Key: hash}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Certificate{}, err
	}

	metadataURI, err := uc.metadata.Upload(ctx, meta)
	if err != nil {
		return domain.Certificate{}, err
	}

	txHash, err := uc.ledger.Record(ctx, input.HolderDID, metadataURI, hash)
	if err != nil {
		return domain.Certificate{}, err
	}

	cert := domain.Certificate{
		ID:          uuid.NewString(),
		Title:       input.Title,
		Type:        input.Type,
		IssuerDID:   input.IssuerDID,
		HolderDID:   input.HolderDID,
		Hash:        hash,
		MetadataURI: metadataURI,
		TxHash:      txHash,
		Verified:    true, // successful ledger recording doubles as verification
		IssuedAt:    meta.IssuedAt,
	}

	if err := uc.repo.Create(ctx, cert); err != nil {
		return domain.Certificate{}, err
	}

	uc.publish(ctx, talentchain.Event{
		Type:      talentchain.EventCertificateIssued,
		Dids:      []string{cert.IssuerDID, cert.HolderDID},
		Payload:   cert,
		Timestamp: time.Now().UTC(),
	})

	return cert, nil
}

// Verify re-checks a hash against the ledger and appends one verification
// log entry. A hash that was never issued returns invalid without touching
// the ledger or the log.
func (uc *CertificateUsecase) Verify(ctx context.Context, hash, verifierDid string) (VerifyOutput, error) {
	if !talentchain.IsContentHash(hash) {
		return VerifyOutput{}, domain.ValidationError{Message: "invalid certificate hash"}
	}
	if !talentchain.IsDID(verifierDid) {
		return VerifyOutput{}, domain.ValidationError{Message: "invalid verifier did"}
	}

	cert, err := uc.repo.GetByHash(ctx, hash)
	if errors.Is(err, domain.ErrNotFound) {
		return VerifyOutput{Valid: false}, nil
	}
	if err != nil {
		return VerifyOutput{}, err
	}

	valid, err := uc.ledger.Check(ctx, cert.HolderDID, hash)
	if err != nil {
		// The ledger answered with an error rather than a verdict. Record
		// the attempt as invalid so the audit trail keeps it.
		slog.Warn("ledger check failed",
			slog.String("hash", hash),
			slog.String("error", err.Error()),
			slog.String("module", "certificate"),
		)
		valid = false
	}

	result := talentchain.VerificationResultInvalid
	if valid {
		result = talentchain.VerificationResultValid
	}

	entry := domain.VerificationLog{
		ID:            uuid.NewString(),
		CertificateID: cert.ID,
		VerifierDID:   verifierDid,
		Result:        result,
		Timestamp:     time.Now().UTC(),
	}
	if err := uc.repo.AppendVerification(ctx, entry); err != nil {
		return VerifyOutput{}, err
	}

	uc.publish(ctx, talentchain.Event{
		Type:      talentchain.EventCertificateVerified,
		Dids:      []string{cert.IssuerDID, cert.HolderDID, verifierDid},
		Payload:   entry,
		Timestamp: entry.Timestamp,
	})

	if !valid {
		return VerifyOutput{Valid: false}, nil
	}
	return VerifyOutput{Valid: true, Certificate: &cert}, nil
}

func (uc *CertificateUsecase) Get(ctx context.Context, id string) (domain.Certificate, error) {
	return uc.repo.Get(ctx, id)
}

func (uc *CertificateUsecase) List(ctx context.Context) ([]domain.Certificate, error) {
	return uc.repo.List(ctx)
}

func (uc *CertificateUsecase) FindByHash(ctx context.Context, hash string) (domain.Certificate, error) {
	return uc.repo.GetByHash(ctx, hash)
}

func (uc *CertificateUsecase) FindByHolder(ctx context.Context, holderDid string) ([]domain.Certificate, error) {
	return uc.repo.ListByHolder(ctx, holderDid)
}

func (uc *CertificateUsecase) FindByIssuer(ctx context.Context, issuerDid string) ([]domain.Certificate, error) {
	return uc.repo.ListByIssuer(ctx, issuerDid)
}

// Update mutates presentation fields only. The hash is never recomputed and
// the ledger and metadata store are never touched.
func (uc *CertificateUsecase) Update(ctx context.Context, id string, patch CertificatePatch) (domain.Certificate, error) {
	return uc.repo.Update(ctx, id, patch)
}

func (uc *CertificateUsecase) Remove(ctx context.Context, id string) error {
	return uc.repo.Delete(ctx, id)
}

// Metadata fetches the stored metadata document for a certificate.
func (uc *CertificateUsecase) Metadata(ctx context.Context, id string) (map[string]any, error) {
	cert, err := uc.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return uc.metadata.Fetch(ctx, cert.MetadataURI)
}

func (uc *CertificateUsecase) Verifications(ctx context.Context, certificateID string) ([]domain.VerificationLog, error) {
	if _, err := uc.repo.Get(ctx, certificateID); err != nil {
		return nil, err
	}
	return uc.repo.ListVerifications(ctx, certificateID)
}

// Details returns the ledger's view of a recorded hash.
func (uc *CertificateUsecase) LedgerDetails(ctx context.Context, hash string) (*domain.LedgerRecord, error) {
	cert, err := uc.repo.GetByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	return uc.ledger.Details(ctx, cert.HolderDID, hash)
}

func (uc *CertificateUsecase) publish(ctx context.Context, event talentchain.Event) {
	if uc.events == nil {
		return
	}
	if err := uc.events.Publish(ctx, event); err != nil {
		slog.Warn("failed to publish event",
			slog.String("type", event.Type),
			slog.String("error", err.Error()),
			slog.String("module", "certificate"),
		)
	}
}
