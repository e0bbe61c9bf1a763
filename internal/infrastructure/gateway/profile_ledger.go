package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/kbunet/talentchain"
	"github.com/kbunet/talentchain/client"
	"github.com/kbunet/talentchain/internal/domain"
)

var ledgerTracer = otel.Tracer("ledger")

const (
	profileCacheTTL  = 30 * time.Second
	degradedRefSpace = "deg-"
)

// kbuProfile is the subset of the KBU profile document this ledger reads
// and writes. AppData carries the certificate descriptors as raw JSON.
type kbuProfile struct {
	ID      string `json:"id"`
	Creator string `json:"creator"`
	Owner   string `json:"owner"`
	Name    string `json:"name"`
	Link    string `json:"link"`
	AppData string `json:"appData"`
	RPS     string `json:"rps"`
	Balance int    `json:"balance"`
}

// certificateDescriptor is the entry appended to a holder profile's appData
// for every recorded certificate.
type certificateDescriptor struct {
	Kind        string `json:"kind"`
	Hash        string `json:"hash"`
	MetadataURI string `json:"tokenURI"`
	RecordRef   string `json:"txHash"`
	IssuedAt    string `json:"issuedAt"`
}

type profileAppData struct {
	Certificates []certificateDescriptor `json:"certificates"`
}

// ProfileLedger anchors certificates in holder profiles on a KBU node over
// JSON-RPC. Profiles are created on demand the first time a holder receives
// a certificate.
type ProfileLedger struct {
	rpc      *client.Client
	creator  string
	profiles *gocache.Cache
	policy   domain.FailPolicy
}

func NewProfileLedger(rpcURL, creatorAddress string, policy domain.FailPolicy) *ProfileLedger {
	return &ProfileLedger{
		rpc:      client.New(rpcURL),
		creator:  creatorAddress,
		profiles: gocache.New(profileCacheTTL, time.Minute),
		policy:   policy,
	}
}

// Record appends a certificate descriptor to the holder's profile and
// returns the record reference. In fail-open mode RPC failures degrade to a
// synthetic reference with a recognizable prefix.
func (l *ProfileLedger) Record(ctx context.Context, holderDid, metadataURI, hash string) (string, error) {
	ctx, span := ledgerTracer.Start(ctx, "ProfileLedger.Record")
	defer span.End()

	profileID, err := holderProfileID(holderDid)
	if err != nil {
		return "", err
	}

	recordRef := fmt.Sprintf("0x%s%x", hash[:24], time.Now().Unix())

	profile, err := l.getProfile(ctx, profileID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			profile, err = l.createProfile(ctx, profileID, holderDid)
		}
		if err != nil {
			span.RecordError(err)
			return l.degradedRef("record", recordRef, err)
		}
	}

	var appData profileAppData
	if profile.AppData != "" {
		// a profile whose appData we cannot parse gets it rebuilt
		json.Unmarshal([]byte(profile.AppData), &appData)
	}
	appData.Certificates = append(appData.Certificates, certificateDescriptor{
		Kind:        "certificate",
		Hash:        hash,
		MetadataURI: metadataURI,
		RecordRef:   recordRef,
		IssuedAt:    time.Now().UTC().Format(time.RFC3339),
	})

	raw, err := json.Marshal(appData)
	if err != nil {
		return "", err
	}

	err = l.rpc.Call(ctx, "updateprofile", []any{profileID, profile.Name, profile.Link, string(raw)}, nil)
	if err != nil {
		span.RecordError(err)
		return l.degradedRef("record", recordRef, err)
	}

	l.profiles.Delete(profileID)
	return recordRef, nil
}

// Check reports whether the holder's profile contains the given hash.
func (l *ProfileLedger) Check(ctx context.Context, holderDid, hash string) (bool, error) {
	ctx, span := ledgerTracer.Start(ctx, "ProfileLedger.Check")
	defer span.End()

	descriptor, err := l.find(ctx, holderDid, hash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		span.RecordError(err)
		if l.policy == domain.FailOpen {
			slog.Warn("Ledger unreachable, passing verification open",
				slog.String("hash", hash),
				slog.String("error", err.Error()),
				slog.String("module", "ledger"),
			)
			return true, nil
		}
		return false, err
	}
	return descriptor != nil, nil
}

// Details returns the on-ledger record for a hash.
func (l *ProfileLedger) Details(ctx context.Context, holderDid, hash string) (*domain.LedgerRecord, error) {
	ctx, span := ledgerTracer.Start(ctx, "ProfileLedger.Details")
	defer span.End()

	descriptor, err := l.find(ctx, holderDid, hash)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if descriptor == nil {
		return nil, domain.NotFoundError{Resource: "ledger record"}
	}

	address, _ := talentchain.AddressFromDID(holderDid)
	return &domain.LedgerRecord{
		RecordRef:   descriptor.RecordRef,
		Owner:       address,
		MetadataURI: descriptor.MetadataURI,
	}, nil
}

// find scans the holder profile's appData for a descriptor with the hash.
// A nil descriptor with nil error means the profile exists without the hash.
func (l *ProfileLedger) find(ctx context.Context, holderDid, hash string) (*certificateDescriptor, error) {
	profileID, err := holderProfileID(holderDid)
	if err != nil {
		return nil, err
	}

	profile, err := l.getProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	var appData profileAppData
	if profile.AppData != "" {
		if err := json.Unmarshal([]byte(profile.AppData), &appData); err != nil {
			return nil, nil
		}
	}
	for i := range appData.Certificates {
		if appData.Certificates[i].Hash == hash {
			return &appData.Certificates[i], nil
		}
	}
	return nil, nil
}

func (l *ProfileLedger) getProfile(ctx context.Context, profileID string) (kbuProfile, error) {
	if cached, ok := l.profiles.Get(profileID); ok {
		return cached.(kbuProfile), nil
	}

	var profile kbuProfile
	err := l.rpc.Call(ctx, "getprofile", []any{profileID}, &profile)
	if err != nil {
		return kbuProfile{}, errors.Wrap(err, "failed to get profile")
	}
	if profile.ID == "" {
		return kbuProfile{}, domain.NotFoundError{Resource: "profile"}
	}

	l.profiles.Set(profileID, profile, gocache.DefaultExpiration)
	return profile, nil
}

func (l *ProfileLedger) createProfile(ctx context.Context, profileID, holderDid string) (kbuProfile, error) {
	address, err := talentchain.AddressFromDID(holderDid)
	if err != nil {
		return kbuProfile{}, err
	}

	err = l.rpc.Call(ctx, "createprofile", []any{l.creator, address, "TalentChain Holder", "", "{}"}, nil)
	if err != nil {
		return kbuProfile{}, errors.Wrap(err, "failed to create profile")
	}

	return kbuProfile{
		ID:      profileID,
		Creator: l.creator,
		Owner:   address,
		Name:    "TalentChain Holder",
	}, nil
}

func (l *ProfileLedger) degradedRef(op, ref string, err error) (string, error) {
	if l.policy != domain.FailOpen {
		return "", domain.ExternalServiceError{Service: "ledger", Err: err}
	}
	slog.Warn("Ledger call failed, issuing degraded record reference",
		slog.String("op", op),
		slog.String("error", err.Error()),
		slog.String("module", "ledger"),
	)
	return degradedRefSpace + ref, nil
}

func holderProfileID(holderDid string) (string, error) {
	address, err := talentchain.AddressFromDID(holderDid)
	if err != nil {
		return "", domain.ValidationError{Message: "invalid holder did"}
	}
	return talentchain.ProfileIDFromAddress(address), nil
}
